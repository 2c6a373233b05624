// Package daemon wires the service together: config, logging, store,
// trigger dispatcher, orchestrator, reminder workflow, and HTTP ingress.
package daemon

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/config"
	"github.com/Tarun553/study-coach/internal/logger"
	"github.com/Tarun553/study-coach/internal/server"
	"github.com/Tarun553/study-coach/internal/store"
	"github.com/Tarun553/study-coach/pkg/notifier"
	"github.com/Tarun553/study-coach/pkg/orchestrator"
	"github.com/Tarun553/study-coach/pkg/planner"
	"github.com/Tarun553/study-coach/pkg/reminder"
	"github.com/Tarun553/study-coach/pkg/steps"
	"github.com/Tarun553/study-coach/pkg/trigger"
)

// shutdownTimeout bounds how long in-flight HTTP requests may drain.
const shutdownTimeout = 10 * time.Second

// Options selects the config file and log level for one daemon instance.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// Daemon is the assembled service.
type Daemon struct {
	cfg        *config.Config
	logger     *logger.Logger
	store      *store.Store
	dispatcher *trigger.Dispatcher
	server     *server.Server
}

// New loads config and constructs every component. Nothing starts running
// until Run.
func New(opts Options) (*Daemon, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs[0])
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := log.GetZerolog()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	retry := steps.RetryPolicy{
		MaxAttempts:    cfg.Agent.Retry.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Agent.Retry.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Agent.Retry.MaxBackoffMs) * time.Millisecond,
	}

	exec, err := steps.NewExecutor(st, retry, zl)
	if err != nil {
		return nil, err
	}

	dispatcher, err := trigger.NewDispatcher(st, retry, zl)
	if err != nil {
		return nil, err
	}

	p, err := buildPlanner(cfg, zl)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(st, p, exec, dispatcher, orchestrator.Config{
		MaxIterations:             cfg.Agent.MaxIterations,
		DefaultRemindAfterMinutes: cfg.Agent.DefaultRemindAfterMinutes,
		ContinueDelay:             time.Duration(cfg.Agent.ContinueDelaySeconds) * time.Second,
	}, zl)
	if err != nil {
		return nil, err
	}

	channels := []notifier.Notifier{notifier.NewMailer(cfg.Mail, zl)}
	if cfg.Telegram.Enabled {
		tg, err := notifier.NewTelegram(cfg.Telegram.BotToken, zl)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram channel: %w", err)
		}
		channels = append(channels, tg)
	}

	rem, err := reminder.New(st, exec, notifier.NewFanout(zl, channels...), zl)
	if err != nil {
		return nil, err
	}

	dispatcher.Register(trigger.RunRequested, orch.HandleTrigger)
	dispatcher.Register(trigger.ReminderRequested, rem.HandleTrigger)

	srv, err := server.New(cfg.Server.Host, cfg.Server.Port, st, dispatcher,
		cfg.Agent.DefaultRemindAfterMinutes, zl)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:        cfg,
		logger:     log,
		store:      st,
		dispatcher: dispatcher,
		server:     srv,
	}, nil
}

// buildPlanner selects the planner implementation. The "rule" provider
// applies the decision policy locally and needs no API key, which carries
// offline development.
func buildPlanner(cfg *config.Config, zl zerolog.Logger) (planner.Planner, error) {
	if cfg.Planner.Provider == "rule" {
		return planner.NewRulePlanner(), nil
	}

	provider, err := planner.NewProvider(cfg.Planner.Provider, cfg.Planner.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner provider: %w", err)
	}
	p, err := planner.NewLLMPlanner(planner.Config{
		Provider:    provider,
		Model:       cfg.Planner.Model,
		Temperature: cfg.Planner.Temperature,
		MaxTokens:   cfg.Planner.MaxTokens,
		Logger:      zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}
	return p, nil
}

// Run starts the dispatcher and HTTP server and blocks until the context
// is cancelled or a termination signal arrives, then shuts down cleanly.
func (d *Daemon) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.dispatcher.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- d.server.Start()
	}()

	d.logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", d.cfg.Server.Host, d.cfg.Server.Port)).
		Str("provider", d.cfg.Planner.Provider).
		Msg("Study coach service started")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}

	d.shutdown()
	return runErr
}

func (d *Daemon) shutdown() {
	d.logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	d.dispatcher.Stop()

	if err := d.store.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close store")
	}
	if err := d.logger.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close logger")
	}
}
