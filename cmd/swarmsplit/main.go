// Command swarmsplit cuts a text file into the swarm's pieces, writes the
// matching swarm.meta and seeds the data directories of the given peers.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/WendelHime/goswarm/internal/config"
	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/WendelHime/goswarm/internal/storage"
	"github.com/spf13/pflag"
)

const metaFilename = "swarm.meta"

func main() {
	fs := pflag.NewFlagSet("swarmsplit", pflag.ContinueOnError)
	seeds := fs.IntSlice("seed", nil, "peer ports whose peer_data_<port> directories get seeded")
	perPeer := fs.Int("per-peer", models.TotalPieces/2, "pieces copied into each seeded directory")
	var logCfg config.LogConfig
	fs.StringVar(&logCfg.Level, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&logCfg.JSON, "log-json", false, "log as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: swarmsplit [flags] <file> <pieces-dir>")
		fs.PrintDefaults()
	}

	err := fs.Parse(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil || fs.NArg() != 2 {
		fs.Usage()
		os.Exit(2)
	}

	logger := config.NewLogger(logCfg, os.Stderr)
	if err := split(fs.Arg(0), fs.Arg(1), ".", *seeds, *perPeer, logger); err != nil {
		logger.Error("split failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// split writes every piece and swarm.meta to outDir and seeds
// <peerRoot>/peer_data_<port> for each port.
func split(path, outDir, peerRoot string, seeds []int, perPeer int, logger *slog.Logger) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	all, err := storage.NewStore(outDir, logger)
	if err != nil {
		return err
	}
	for _, piece := range storage.SplitLines(content) {
		if err := all.Save(piece.Index, piece.Content); err != nil {
			return err
		}
	}

	meta := models.Metainfo{
		Name:   filepath.Base(path),
		Pieces: models.TotalPieces,
		Length: len(content),
	}
	if err := writeMeta(filepath.Join(outDir, metaFilename), meta); err != nil {
		return err
	}
	logger.Info("file split", slog.String("name", meta.Name), slog.String("dir", outDir))

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, port := range seeds {
		if !models.ValidPort(port) {
			return fmt.Errorf("invalid seed port %d", port)
		}
		dst, err := storage.NewStore(filepath.Join(peerRoot, "peer_data_"+strconv.Itoa(port)), logger)
		if err != nil {
			return err
		}
		seeded, err := storage.Seed(all, dst, perPeer, r)
		if err != nil {
			return err
		}
		logger.Info("peer seeded", slog.Int("port", port), slog.Any("pieces", seeded.Sorted()))
	}
	return nil
}

func writeMeta(path string, meta models.Metainfo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := decoder.EncodeMetainfo(f, meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
