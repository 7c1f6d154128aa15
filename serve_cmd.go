package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openucra/ucra-go/internal/cache"
	"github.com/openucra/ucra-go/ucra"
	"github.com/openucra/ucra-go/ucra/adapter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve engines over websocket",
	Long: paragraph(fmt.Sprintf("\n%s engines to other processes. Every connection gets its own engine; clients render, open pull streams and answer the server's pull requests over one websocket.", keyword("Serve"))),
	Example: paragraph("ucra serve\nucra serve --addr :7070 --cache"),
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newAdapterServer()
	if cfg.Cache.Enabled {
		store, err := openCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("Could not save render cache", "error", err)
			}
		}()
		srv.Wrap = func(r ucra.Renderer) ucra.Renderer {
			return cache.NewRenderer(r, store)
		}
		log.Info("Render cache enabled", "stats", store.Stats())
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Serve.Path, srv)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "ok %d active, %d served\n", srv.Active(), srv.Served())
	})

	hs := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Serving engines", "addr", cfg.Serve.Addr, "path", cfg.Serve.Path)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down", "active", srv.Active())
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("Server stopped", "served", srv.Served())
	return nil
}

func newAdapterServer() *adapter.Server {
	srv := adapter.NewServer(cfg.EngineOptions())
	srv.IdleTimeout = cfg.Serve.ReadTimeout
	srv.MaxMessage = int64(cfg.Serve.MaxMessageMB) << 20
	return srv
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().String("path", "", "websocket path")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("serve.path", serveCmd.Flags().Lookup("path"))
}
