package storage

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

const DefaultOutputName = "final.txt"

var ErrIncomplete = errors.New("store does not hold every piece")

// Reconstructor concatenates pieces 1..TotalPieces into one output file once
// the store is complete. A successful run is remembered and later calls do
// nothing until Reset.
type Reconstructor struct {
	store  *Store
	output string
	log    *slog.Logger

	mu   sync.Mutex
	done bool
}

func NewReconstructor(store *Store, outputName string, logger *slog.Logger) *Reconstructor {
	if outputName == "" {
		outputName = DefaultOutputName
	}
	return &Reconstructor{
		store:  store,
		output: filepath.Join(store.Dir(), outputName),
		log:    logger,
	}
}

func (r *Reconstructor) OutputPath() string {
	return r.output
}

func (r *Reconstructor) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Reset forgets a previous success so the next Reconstruct re-reads every
// piece.
func (r *Reconstructor) Reset() {
	r.mu.Lock()
	r.done = false
	r.mu.Unlock()
}

// Reconstruct writes the output file. It fails with ErrIncomplete when a
// piece is not held and with ErrMissingPiece when a held piece cannot be
// read; in both cases no output is written and a later call retries.
// Each piece is followed by a line break unless it already ends with one.
func (r *Reconstructor) Reconstruct() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil
	}
	if !r.store.Complete() {
		return ErrIncomplete
	}

	var out bytes.Buffer
	for i := models.PieceIndex(1); i <= models.TotalPieces; i++ {
		content, err := r.store.Read(i)
		if err != nil {
			r.log.Warn("reconstruction aborted", slog.Int("piece", int(i)), slog.Any("error", err))
			return err
		}
		out.Write(content)
		if len(content) == 0 || content[len(content)-1] != '\n' {
			out.WriteByte('\n')
		}
	}

	if err := writeFileAtomic(r.output, out.Bytes()); err != nil {
		return fmt.Errorf("write reconstructed file: %w", err)
	}
	r.done = true
	r.log.Info("file reconstructed", slog.String("path", r.output), slog.Int("bytes", out.Len()))
	return nil
}
