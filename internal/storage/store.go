package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

const pieceExt = ".txt"

var (
	ErrInvalidIndex = errors.New("piece index out of range")
	ErrMissingPiece = errors.New("missing piece")
)

// Store is the set of pieces a peer holds, each persisted as <dir>/<n>.txt.
// It is safe for concurrent use.
type Store struct {
	dir    string
	log    *slog.Logger
	mu     sync.RWMutex
	pieces models.PieceSet
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create piece directory: %w", err)
	}
	return &Store{dir: dir, log: logger, pieces: models.PieceSet{}}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Load scans the directory and adds every valid piece file to the set.
// Other files are ignored.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan piece directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ok := parsePieceFilename(e.Name())
		if !ok {
			continue
		}
		s.pieces.Add(idx)
	}
	s.log.Info("loaded local pieces", slog.String("dir", s.dir), slog.Any("pieces", s.pieces.Sorted()))
	return nil
}

// Save writes content to the piece's slot, replacing any previous content,
// and adds the index to the set.
func (s *Store) Save(index models.PieceIndex, content []byte) error {
	if !index.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if err := writeFileAtomic(s.path(index), content); err != nil {
		return fmt.Errorf("save piece %d: %w", index, err)
	}

	s.mu.Lock()
	s.pieces.Add(index)
	s.mu.Unlock()
	s.log.Info("piece saved", slog.Int("piece", int(index)), slog.String("path", s.path(index)))
	return nil
}

// Read returns a held piece's content. ErrMissingPiece is returned when the
// piece is not held or its file disappeared.
func (s *Store) Read(index models.PieceIndex) ([]byte, error) {
	if !s.Has(index) {
		return nil, fmt.Errorf("%w: %d", ErrMissingPiece, index)
	}
	content, err := os.ReadFile(s.path(index))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", ErrMissingPiece, index)
	}
	if err != nil {
		return nil, fmt.Errorf("read piece %d: %w", index, err)
	}
	return content, nil
}

func (s *Store) Has(index models.PieceIndex) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pieces.Has(index)
}

// Pieces returns a copy of the held set.
func (s *Store) Pieces() models.PieceSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pieces.Clone()
}

// Complete reports whether every index in [1, TotalPieces] is held.
func (s *Store) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pieces.ContainsAll(models.AllPieces())
}

func (s *Store) path(index models.PieceIndex) string {
	return filepath.Join(s.dir, PieceFilename(index))
}

func PieceFilename(index models.PieceIndex) string {
	return strconv.Itoa(int(index)) + pieceExt
}

func parsePieceFilename(name string) (models.PieceIndex, bool) {
	stem, ok := strings.CutSuffix(name, pieceExt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0, false
	}
	idx := models.PieceIndex(n)
	return idx, idx.Valid()
}

// writeFileAtomic writes to a temporary file in the same directory and
// renames it over path.
func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
