package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/database"
	"github.com/cloo-solutions/bookmind/internal/jobs"
	"github.com/cloo-solutions/bookmind/internal/server"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the bookmind API server and the background embedding worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides BOOKMIND_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the embedding worker")
	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Migrations directory")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		a.cfg.Port = port
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		dir, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(a.cfg.DatabaseURL, dir, a.logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	agent, hybrid, semantic, err := a.retrieval()
	if err != nil {
		return err
	}

	var worker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker && semantic.IsAvailable() {
		queued, err := a.jobs.EnqueueStale(ctx, semantic.ModelKey())
		if err != nil {
			return fmt.Errorf("failed to queue stale embeddings: %w", err)
		}
		if queued > 0 {
			a.logger.WithField("count", queued).Info("Queued bookmarks without a current embedding")
		}

		processor := jobs.NewEmbeddingWorker(a.jobs, a.embeddingService(), a.logger)
		worker = jobs.NewWorker(processor, a.cfg.EmbedPollInterval, a.logger)
		go worker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:        a.logger,
		ChatHandler:   handlers.NewChatHandler(agent),
		SearchHandler: handlers.NewSearchHandler(hybrid, semantic, a.bookmarks),
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("Server exited")
	return nil
}
