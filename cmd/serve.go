package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/guild-roster/internal/handler"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
	"github.com/Shivanand-hulikatti/guild-roster/internal/printer"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the roster HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create the PostgreSQL schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, serveMigrate)
	if err != nil {
		return err
	}
	defer a.close()

	h := handler.NewRosterHandler(a.svc, a.surface)
	router := handler.NewRouter(h, a.log, map[string]handler.HealthCheck{
		"store": a.pingStore,
		"redis": a.surface.Ping,
	})

	go runSweeper(ctx, a)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return logging.WithContext(context.Background(), a.log) },
	}

	errCh := make(chan error, 1)
	go func() {
		printer.Success("Server listening on http://localhost:%s", a.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until SIGINT or SIGTERM.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return printer.Error("Server error", err.Error())
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return printer.Error("Graceful shutdown failed", err.Error())
	}
	printer.Success("Server stopped")
	return nil
}

// runSweeper deletes expired rosters every engine.sweep_interval until ctx
// is done. A zero interval disables it.
func runSweeper(ctx context.Context, a *app) {
	interval := a.cfg.Engine.SweepInterval
	if interval <= 0 {
		return
	}
	log := a.log.With("component", "sweeper")
	ctx = logging.WithContext(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.svc.SweepExpired(ctx, a.cfg.Engine.Retention()); err != nil {
				log.Error("sweep failed", "error", err)
			}
		}
	}
}
