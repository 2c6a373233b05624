package cli

import (
	"github.com/spf13/cobra"

	"github.com/Tarun553/study-coach/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the study coach service",
	Long: `Run the study coach service in the foreground: the HTTP ingress,
the trigger dispatcher, and the agent run orchestrator. Pending delayed
triggers are re-armed on startup, so reminders scheduled before a restart
still fire.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(daemon.Options{
		ConfigPath: cfgFile,
		LogLevel:   logLevel,
	})
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}
