package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ganot/dataqc/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger server and the stale-routine watchdog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runServer(a)
	},
}

func runServer(a *app) error {
	var allowlist func(http.Handler) http.Handler
	if path := a.cfg.Server.AllowlistPath; path != "" {
		list, err := transport.LoadAllowlist(path)
		if err != nil {
			return err
		}
		allowlist = list.Middleware
	}

	router := transport.NewServer(a.coordinator, allowlist, a.logger)

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// The watchdog runs outside the routine so a dead periodic trigger is
	// still noticed.
	watchdogCtx, stopWatchdog := context.WithCancel(context.Background())
	defer stopWatchdog()
	go runWatchdog(watchdogCtx, a)

	go func() {
		a.logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(a, httpServer)
	return nil
}

func runWatchdog(ctx context.Context, a *app) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.coordinator.CheckStale(ctx); err != nil {
				a.logger.Error("stale-routine check failed", "error", err)
			}
		}
	}
}

func waitForShutdown(a *app, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		a.logger.Error("shutdown error", "error", err)
	}
}
