package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/simctl/internal/broker"
	"github.com/danmuck/simctl/internal/launcher"
	"github.com/danmuck/simctl/internal/logging"
	"github.com/danmuck/simctl/internal/observability"
	"github.com/danmuck/simctl/internal/status"
)

func main() {
	configPath := flag.String("config", "", "path to simctl config.toml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "simctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logging.ConfigureRuntime()
	logger := observability.InitLogger("simctl")

	cfg, err := loadRuntimeConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := broker.New(cfg.Broker, logger.With().Str("component", "broker").Logger())
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return err
	}

	if cfg.Translator.Path != "" {
		cfg.Translator.MiddlewarePort = cfg.Broker.ListenPort
		l, err := launcher.New(cfg.Translator, logger.With().Str("component", "launcher").Logger())
		if err != nil {
			return err
		}
		if err := l.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := l.Stop(); err != nil {
				logger.Warn().Err(err).Msg("translator stop")
			}
		}()
	}

	statusErr := make(chan error, 1)
	if cfg.StatusAddr != "" {
		srv := status.New("simctl", cfg.StatusAddr, b, cfg.CorsOrigins, logger.With().Str("component", "status").Logger())
		srv.RegisterRoutes()
		go func() {
			statusErr <- srv.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-statusErr:
		if err != nil {
			return err
		}
	}

	if err := b.Stop(context.Background()); err != nil {
		// A run with no completed handshake has nothing to stop.
		logger.Warn().Err(err).Msg("broker stop")
	}
	return nil
}
