package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"messenger-connector/internal/config"
	"messenger-connector/internal/infra/logger"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Messenger webhook server",
	Long: `Start the HTTP server.

Routes:
  GET  /webhook      - Messenger subscription verification
  POST /webhook      - Messenger events
  GET  /healthCheck  - health check
  GET  /metrics      - Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}

		log := logger.NewLogger(ctx, cfg.LogLevel, cfg.LogFormat == "json")

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			log.Error(fmt.Sprintf("Failed to start: %v", err))
			return err
		}
		defer a.close(log)

		if a.retrieval != nil {
			go func() {
				if err := a.retrieval.Watch(ctx); err != nil {
					log.Warn(fmt.Sprintf("Knowledge folder is not watched: %v", err))
				}
			}()
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Port),
			Handler:           a.router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info(fmt.Sprintf("Server is running on port %s", cfg.Port))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				log.Error(fmt.Sprintf("Error running HTTP server: %s", err))
				return err
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
		a.webhooks.Wait()
		if err != nil {
			log.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
			return err
		}
		log.Info("Server stopped gracefully.")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (overrides PORT)")
}
