package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"donation-gate/internal/config"
	"donation-gate/internal/server"
	"donation-gate/internal/service"
	"donation-gate/internal/token"
	"donation-gate/internal/worker"
)

func serveCmd() *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the reconciliation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg, !noSweep)
		},
	}
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "disable the background reconciliation sweep")
	return cmd
}

func runServe(cfg *config.Config, sweep bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
		log.Println("Store closed")
	}()

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	intents := service.NewIntentService(store, gateway, token.NewIssuer(), service.IntentOptions{
		BaseURL:  cfg.BaseURL,
		Currency: cfg.Currency,
	})
	access := service.NewAccessService(store, cfg.ContentURL)

	if sweep {
		rw := worker.NewReconciliationWorker(store, intents, cfg.SweepInterval, cfg.SweepAge, cfg.SweepBatch)
		go rw.Run(ctx)
	}

	srv := server.NewServer(intents, access, store, server.Options{
		AdminUser:   cfg.AdminUser,
		AdminPass:   cfg.AdminPass,
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on port %s (%s)", cfg.Port, cfg.BaseURL)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
