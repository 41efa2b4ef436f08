package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/event"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/server"
	"github.com/meridian-labs/meridian/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket command daemon",
	Long: `Start the daemon the desktop UI connects to. All registered projects
are watched for external ref changes, and branch/merge/release events are
pushed to connected clients.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logDir := ""
	if cfg.Logging.Enabled {
		logDir = cfg.Paths.ResolveDataDir()
	}
	logger, err := logging.NewLogger(logDir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Close() }()

	fs, registry, tasks, err := stores(cfg)
	if err != nil {
		return err
	}

	bus := event.NewBus()

	watcher, err := watch.New(bus, logger)
	if err != nil {
		return fmt.Errorf("failed to create refs watcher: %w", err)
	}
	projects, err := registry.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, p := range projects {
		if err := watcher.AddProject(p.ID, p.Path); err != nil {
			logger.Warn("cannot watch project refs", "project_id", p.ID, "error", err.Error())
		}
	}
	watcher.Start()
	defer watcher.Stop()

	// Projects registered over the command channel get watched as they
	// appear, without restarting the daemon.
	bus.Subscribe("project.added", func(e event.Event) {
		added, ok := e.(event.ProjectAddedEvent)
		if !ok {
			return
		}
		if err := watcher.AddProject(added.ProjectID, added.Path); err != nil {
			logger.Warn("cannot watch project refs", "project_id", added.ProjectID, "error", err.Error())
		}
	})
	bus.Subscribe("project.removed", func(e event.Event) {
		removed, ok := e.(event.ProjectRemovedEvent)
		if !ok {
			return
		}
		watcher.RemoveProject(removed.ProjectID)
	})

	srv := server.New(server.Deps{
		Config:   cfg,
		Registry: registry,
		Tasks:    tasks,
		Store:    fs,
		Bus:      bus,
		Logger:   logger,
	})
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("meridian listening on ws://%s/ws\n", srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
