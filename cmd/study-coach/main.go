package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Tarun553/study-coach/internal/cli"
)

func main() {
	// Secrets (API keys, SMTP credentials) typically arrive via .env in
	// development. Absence is fine: the environment carries them in prod.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
