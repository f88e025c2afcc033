package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/metrics"
	httpadapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve the merged tree over HTTP",
	Long: `Merges the manifests and exposes the tree as a read-only JSON API, with
Prometheus metrics on /metrics and merge events on /events (SSE).
With --watch the tree is rebuilt whenever a manifest changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		src, err := openSource(cfg)
		if err != nil {
			return err
		}
		client := newRedisClient(cfg)
		if client != nil {
			defer client.Close()
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collected := metrics.New(reg)

		live := &liveTree{}
		server := httpadapter.NewServer(live,
			httpadapter.WithVersion(arbor.Version),
			httpadapter.WithLogger(logger),
			httpadapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		)
		hooks := domain.JoinHooks(collected.Hooks(), server.Hooks())

		rebuild := func(ctx context.Context) (*arbor.Tree, error) {
			return buildTree(ctx, cfg, src, client, "serve", hooks)
		}
		t, err := rebuild(ctx)
		if err != nil {
			return err
		}
		live.Store(t)

		if watch {
			if err := watchAndRebuild(ctx, src, rebuild, live); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("arbor server listening", "address", srv.Addr, "dir", cfg.Dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", cfg.Dir, srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete in %v: %w", 5*time.Second, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "arbor server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("watch", false, "Rebuild the tree when a manifest changes")
	bind(v, "http.addr", serveCmd.Flags().Lookup("addr"))
}
