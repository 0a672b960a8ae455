package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-portal/internal"
	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/portal"
	"github.com/frahmantamala/payment-portal/internal/session"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const sessionSweepInterval = 5 * time.Minute

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Start the browser portal",
	Long:  `Serve the payment request portal pages. Talks to the API configured under portal.api_base_url.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startPortal(); err != nil {
			fmt.Fprintf(os.Stderr, "Portal failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func startPortal() error {
	cfg := mustLoadConfig()
	lg := logger.LoggerWrapper()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := sessionBackend(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeBackend()

	api := apiclient.New(apiclient.Config{
		BaseURL: cfg.Portal.APIBaseURL,
		Timeout: cfg.Portal.APITimeout,
	}, &http.Client{}, lg)

	srv, err := portal.NewServer(portal.ConfigFrom(cfg.Portal, cfg.Observability.Metrics), backend, api, lg)
	if err != nil {
		return fmt.Errorf("build portal: %w", err)
	}
	go srv.Run(ctx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Portal.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("Starting portal", "address", httpServer.Addr, "api", cfg.Portal.APIBaseURL, "session_backend", cfg.Portal.SessionBackend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info("Shutting down portal...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("Portal shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	lg.Info("Portal stopped")
	return nil
}

func sessionBackend(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (session.Backend, func(), error) {
	switch cfg.Portal.SessionBackend {
	case internal.SessionBackendRedis:
		client, err := session.ConnectRedis(ctx, session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				lg.Error("redis close error", "error", err)
			}
		}
		return session.NewRedisBackend(client, cfg.Redis.KeyPrefix, cfg.Portal.SessionTTL), closeFn, nil
	default:
		mem := session.NewMemoryBackend(cfg.Portal.SessionTTL)
		go mem.RunSweeper(ctx, sessionSweepInterval)
		return mem, func() {}, nil
	}
}
