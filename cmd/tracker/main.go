package main

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

	"github.com/WendelHime/goswarm/internal/config"
	"github.com/WendelHime/goswarm/internal/discovery"
	"github.com/WendelHime/goswarm/internal/tracker"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.ParseTrackerArgs(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg.Log, os.Stderr).With(slog.String("session", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tracker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.TrackerConfig, logger *slog.Logger) error {
	registry := tracker.NewRegistry()
	server, err := tracker.Listen(fmt.Sprintf(":%d", cfg.ListenPort), registry, logger)
	if err != nil {
		return err
	}

	if cfg.MDNS {
		published, err := discovery.Publish(cfg.ListenPort)
		if err != nil {
			return err
		}
		defer published.Shutdown()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx)
	})
	if cfg.StatusAddr != "" {
		status := &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           tracker.NewStatusHandler(registry, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := status.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return status.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
