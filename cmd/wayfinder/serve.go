package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/internal/cli"
	wfhttp "github.com/aretw0/wayfinder/pkg/adapters/http"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Starts the engine as a long-running service. Guides are driven through a JSON API,
engine events stream over Server-Sent Events on /events and Prometheus metrics are
exposed on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("ui") {
			cfg.UI, _ = cmd.Flags().GetString("ui")
		}

		logger := getLogger(cfg)
		ctx := context.Background()

		// 1. Metrics
		bus := event.NewBus(event.WithLogger(logger))
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)
		metrics.Attach(bus)

		// 2. Engine
		backend := getBackend(ctx, cfg, logger)
		defer backend.Close()
		engine := getEngine(ctx, cmd, cli.EngineOptions{
			Config:  cfg,
			Backend: backend,
			Bus:     bus,
			Logger:  logger,
		})

		// 3. HTTP
		opts := []wfhttp.Option{
			wfhttp.WithCommandWait(cfg.Server.CommandWait),
			wfhttp.WithLogger(logger),
			wfhttp.WithVersion(wayfinder.Version),
		}
		if engine.UI != nil {
			opts = append(opts, wfhttp.WithInteractor(engine.UI.Interact))
		}
		if cfg.Server.Metrics {
			opts = append(opts, wfhttp.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		}
		handler, stop := wfhttp.NewHandler(engine, opts...)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Wayfinder Server on %s\n", srv.Addr)
			fmt.Printf("Serving %d guides, state in %s store\n", len(engine.Guides()), backend.Kind)
			serverErrors <- srv.ListenAndServe()
		}()

		sc := cli.NewSignalContext(ctx)
		defer sc.Cancel()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			stop()
			_ = engine.Close(ctx)
			os.Exit(1)

		case <-sc.Done():
			fmt.Printf("\nStart shutdown... Signal: %v\n", sc.Signal())

			// Event streams never finish on their own.
			stop()

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			if err := engine.Close(shutdownCtx); err != nil {
				logger.Warn("engine close failed", "err", err)
			}
			fmt.Println("Wayfinder Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("ui", "", "Element fixture file simulating the interface")
}
