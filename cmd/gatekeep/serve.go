package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/jg-phare/gatekeep/pkg/config"
	"github.com/jg-phare/gatekeep/pkg/transport"
)

var (
	serveAddr  string
	serveStdio bool
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over WebSocket or stdio",
	Long: `Serve chat sessions.

By default a WebSocket endpoint is exposed at /ws?user=ID. Each frame is one
JSON envelope (see the transport package). With --stdio a single session for
--user is served as JSON lines on stdin and stdout.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve one session over stdin/stdout")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload permission rules and log level when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveStdio {
		if err := requireUser(); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var ln net.Listener
	if !serveStdio {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		if ln, err = net.Listen("tcp", addr); err != nil {
			return err
		}
		if n := cfg.Server.MaxConnections; n > 0 {
			ln = netutil.LimitListener(ln, n)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if serveWatch {
		g.Go(func() error {
			err := config.Watch(ctx, configPath, logger, a.reload)
			if err != nil && !errors.Is(err, context.Canceled) {
				// A missing config directory is not fatal for serving.
				logger.Warn("config watch stopped", zap.Error(err))
			}
			return nil
		})
	}

	if serveStdio {
		g.Go(func() error {
			defer stop()
			tr := transport.NewStdioTransport(cmd.InOrStdin(), cmd.OutOrStdout())
			return transport.NewRouter(tr, a.manager, userID, logger).Run(ctx)
		})
	} else {
		mux := http.NewServeMux()
		mux.Handle("/ws", &transport.Handler{Sessions: a.manager, Logger: logger})
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		g.Go(func() error {
			logger.Info("listening", zap.String("addr", ln.Addr().String()),
				zap.Int("max_connections", cfg.Server.MaxConnections))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
