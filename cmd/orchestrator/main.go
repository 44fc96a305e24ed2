// Package main implements the orchestrator CLI: the process that drives
// one project's backlog through the workflow engine (spec.md §4.6).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ma-collective/orchestrator/config"
	"github.com/ma-collective/orchestrator/coordinator"
	"github.com/ma-collective/orchestrator/dashboard"
	"github.com/ma-collective/orchestrator/gitworkspace"
	"github.com/ma-collective/orchestrator/messenger"
	"github.com/ma-collective/orchestrator/transport"
	"github.com/ma-collective/orchestrator/workflow"
	"github.com/ma-collective/orchestrator/workflow/steps"
)

// Build information (set via ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		workflowsDir string
		logLevel     string
	)

	rootCmd := &cobra.Command{
		Use:   "orchestrator [project-id]",
		Short: "Drives a project's task backlog through persona workflows",
		Long: `orchestrator pulls the next actionable task for a project, prepares its
feature branch, and runs it through the configured workflow until the
task reaches review or the project's backlog is exhausted.`,
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd.Context(), workflowsDir, logLevel, args[0])
		},
	}

	rootCmd.Flags().StringVar(&workflowsDir, "workflows-dir", "workflows", "Directory of workflow definition YAML files")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func runProject(ctx context.Context, workflowsDir, logLevel, projectID string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(logLevel)}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	tport, err := buildTransport(cfg, logger)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}
	if err := tport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	msgr := messenger.New(tport, cfg.RequestStream, cfg.EventStream, cfg.GroupPrefix, cfg.ConsumerID, "orchestrator", logger)

	ws := gitworkspace.New(cfg.ProjectBase, gitworkspace.Credentials{
		SSHKeyPath:      cfg.Git.SSHKeyPath,
		Username:        cfg.Git.Username,
		Password:        cfg.Git.Password,
		Token:           cfg.Git.Token,
		CredentialsPath: cfg.Git.CredentialsPath,
	}, cfg.Git.UserName, cfg.Git.UserEmail, cfg.AllowWorkspaceGit, logger)

	dashboardClient := dashboard.NewClient(cfg.DashboardBaseURL, dashboard.WithLogger(logger))

	loader, err := workflow.NewLoader(workflowsDir, logger)
	if err != nil {
		return fmt.Errorf("load workflow definitions: %w", err)
	}

	stepDeps := steps.Deps{
		Messenger:          msgr,
		Dashboard:          dashboardClient,
		Workspace:          ws,
		Logger:             logger,
		PersonaTimeouts:    cfg.Persona.Timeouts,
		PersonaMaxRetries:  cfg.Persona.MaxRetries,
		DefaultTimeoutMs:   cfg.Persona.DefaultTimeoutMS,
		DefaultMaxRetries:  cfg.Persona.DefaultMaxRetries,
		BackoffIncrementMs: cfg.Persona.RetryBackoffIncrMS,
		SkipPersonaOps:     cfg.SkipPersonaOperations,
		SkipGitOps:         cfg.SkipGitOperations,
	}

	coord := coordinator.New(dashboardClient, ws, loader, tport, stepDeps, logger)
	coord.DefaultBranch = cfg.Git.DefaultBranch

	return coord.RunProject(ctx, projectID)
}

func buildTransport(cfg *config.RuntimeConfig, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.TransportType {
	case config.TransportLocal:
		return transport.NewLocalTransport(logger)
	case config.TransportRedis:
		return transport.NewRedisTransport(cfg.BrokerURL, 0, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.TransportType)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
