package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/WendelHime/goswarm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSplit(t *testing.T) {
	content := strings.Repeat("line\n", 23)

	var tests = []struct {
		name    string
		seeds   []int
		perPeer int
		assert  func(t *testing.T, err error, outDir, peerRoot string)
	}{
		{
			name: "pieces and metainfo are written",
			assert: func(t *testing.T, err error, outDir, peerRoot string) {
				require.NoError(t, err)
				for i := 1; i <= models.TotalPieces; i++ {
					assert.FileExists(t, filepath.Join(outDir, storage.PieceFilename(models.PieceIndex(i))))
				}

				f, err := os.Open(filepath.Join(outDir, metaFilename))
				require.NoError(t, err)
				defer f.Close()
				meta, err := decoder.NewDecoder().Decode(f)
				require.NoError(t, err)
				assert.Equal(t, models.Metainfo{Name: "book.txt", Pieces: models.TotalPieces, Length: len(content)}, meta)

				entries, err := os.ReadDir(peerRoot)
				require.NoError(t, err)
				assert.Empty(t, entries)
			},
		},
		{
			name:    "seeded peer receives copies of its pieces",
			seeds:   []int{7001},
			perPeer: 3,
			assert: func(t *testing.T, err error, outDir, peerRoot string) {
				require.NoError(t, err)
				peer, err := storage.NewStore(filepath.Join(peerRoot, "peer_data_7001"), discardLogger())
				require.NoError(t, err)
				require.NoError(t, peer.Load())
				require.Len(t, peer.Pieces(), 3)

				all, err := storage.NewStore(outDir, discardLogger())
				require.NoError(t, err)
				require.NoError(t, all.Load())
				for _, idx := range peer.Pieces().Sorted() {
					want, err := all.Read(idx)
					require.NoError(t, err)
					got, err := peer.Read(idx)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				}
			},
		},
		{
			name:    "invalid seed port",
			seeds:   []int{0},
			perPeer: 3,
			assert: func(t *testing.T, err error, outDir, peerRoot string) {
				assert.ErrorContains(t, err, "invalid seed port")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "book.txt")
			require.NoError(t, os.WriteFile(src, []byte(content), 0o644))
			outDir := filepath.Join(t.TempDir(), "pieces")
			peerRoot := t.TempDir()

			err := split(src, outDir, peerRoot, tt.seeds, tt.perPeer, discardLogger())
			tt.assert(t, err, outDir, peerRoot)
		})
	}
}
