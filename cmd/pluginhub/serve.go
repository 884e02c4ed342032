package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/config"
	"github.com/leeforge/pluginhub/logging"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin management API and serve mounted plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, conf, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, conf)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// serve runs until ctx ends, then drains in-flight requests for at most
// the configured shutdown timeout.
func serve(ctx context.Context, cfg *config.AppConfig, conf *config.Config) error {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.Logger

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	if cfg.Server.Watch {
		watchLogLevel(ctx, conf, log)
	}
	a.runBridge(ctx)

	summary, err := a.ctrl.Restore(ctx)
	if err != nil {
		logger.Error("restore finished with errors", zap.Error(err))
	}
	logger.Info("plugins restored",
		zap.Strings("restored", summary.Restored),
		zap.Strings("failed", summary.Failed))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.handler(buildVersion().Version),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("plugins", a.loader.Prefix()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchLogLevel re-applies the logging level whenever a config file
// changes. Other settings need a restart.
func watchLogLevel(ctx context.Context, conf *config.Config, log *logging.Logger) {
	err := conf.Watch(ctx, func(err error) {
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		next, err := conf.App()
		if err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			return
		}
		if err := log.SetLevel(next.Logging.Level); err != nil {
			log.Warn("log level not applied", zap.Error(err))
			return
		}
		log.Info("log level reloaded", zap.String("level", next.Logging.Level))
	})
	if err != nil {
		log.Warn("config watch disabled", zap.Error(err))
	}
}
