package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WendelHime/goswarm/internal/config"
	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/discovery"
	"github.com/WendelHime/goswarm/internal/logic"
	"github.com/WendelHime/goswarm/internal/p2p"
	"github.com/WendelHime/goswarm/internal/storage"
	"github.com/WendelHime/goswarm/internal/tracker"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.ParsePeerArgs(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg.Log, os.Stderr).With(
		slog.String("session", uuid.NewString()),
		slog.Int("port", cfg.ListenPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("peer stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.PeerConfig, logger *slog.Logger) error {
	outputName, err := outputName(cfg.MetaPath)
	if err != nil {
		return err
	}

	trackerAddr := cfg.Tracker
	if trackerAddr == "" {
		dctx, cancel := context.WithTimeout(ctx, cfg.NetworkTimeout)
		trackerAddr, err = discovery.Discover(dctx)
		cancel()
		if err != nil {
			return fmt.Errorf("discover tracker: %w", err)
		}
		logger.Info("tracker discovered", slog.String("tracker", trackerAddr))
	}

	store, err := storage.NewStore(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		return err
	}
	rebuild := storage.NewReconstructor(store, outputName, logger)

	server, err := p2p.Listen(fmt.Sprintf(":%d", cfg.ListenPort), store, p2p.ServerOptions{
		Timeout:        cfg.NetworkTimeout,
		MaxConnections: cfg.MaxConnections,
	}, logger)
	if err != nil {
		return err
	}

	t, err := tracker.NewUDPClient(trackerAddr, cfg.ListenPort, tracker.UDPOptions{
		Timeout:        cfg.NetworkTimeout,
		JoinMaxElapsed: cfg.JoinMaxElapsed,
		AdvertiseHost:  cfg.AdvertiseHost,
	}, logger)
	if err != nil {
		return err
	}
	defer t.Close()

	var progress io.Writer
	if cfg.Progress {
		progress = os.Stderr
	}

	logger.Info("peer starting",
		slog.String("tracker", trackerAddr),
		slog.String("data_dir", store.Dir()),
		slog.Int("pieces", len(store.Pieces())),
	)
	peer := logic.NewPeer(t, p2p.NewClient(cfg.NetworkTimeout), server, store, rebuild, logic.Options{
		UpdateInterval:      cfg.UpdateInterval,
		RefreshDelay:        cfg.RefreshDelay,
		RefreshInterval:     cfg.RefreshInterval,
		FetchInterval:       cfg.FetchInterval,
		ReconstructDelay:    cfg.ReconstructDelay,
		ReconstructInterval: cfg.ReconstructInterval,
		Progress:            progress,
	}, logger)
	err = peer.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// outputName reads the file name from a swarm.meta file, if one is given.
func outputName(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open metainfo: %w", err)
	}
	defer f.Close()

	meta, err := decoder.NewDecoder().Decode(f)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}
