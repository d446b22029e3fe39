package storage

import (
	"bytes"
	"math/rand"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

// SplitLines divides content into TotalPieces pieces of whole lines, the
// first pieces taking one extra line when the count does not divide evenly.
// Pieces past the last line are empty.
func SplitLines(content []byte) []models.Piece {
	lines := bytes.SplitAfter(content, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}

	base, extra := len(lines)/models.TotalPieces, len(lines)%models.TotalPieces
	pieces := make([]models.Piece, 0, models.TotalPieces)
	next := 0
	for i := 0; i < models.TotalPieces; i++ {
		size := base
		if i < extra {
			size++
		}
		pieces = append(pieces, models.Piece{
			Index:   models.PieceIndex(i + 1),
			Content: bytes.Join(lines[next:next+size], nil),
		})
		next += size
	}
	return pieces
}

// Seed copies k randomly chosen pieces from src into dst.
func Seed(src, dst *Store, k int, r *rand.Rand) (models.PieceSet, error) {
	held := src.Pieces().Sorted()
	r.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })
	if k > len(held) {
		k = len(held)
	}

	seeded := models.PieceSet{}
	for _, idx := range held[:k] {
		content, err := src.Read(idx)
		if err != nil {
			return seeded, err
		}
		if err := dst.Save(idx, content); err != nil {
			return seeded, err
		}
		seeded.Add(idx)
	}
	return seeded, nil
}
