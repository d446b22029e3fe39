package logic

import (
	"github.com/WendelHime/goswarm/internal/shared/models"
)

// ChooseRarestPiece returns the piece missing from own that the fewest peers
// in snap advertise. Ties go to the lowest index so the choice is
// reproducible. It returns false when no peer advertises a missing piece.
func ChooseRarestPiece(snap models.Snapshot, own models.PieceSet) (models.PieceIndex, bool) {
	counts := make(map[models.PieceIndex]int)
	for _, e := range snap {
		for idx := range e.Pieces {
			if own.Has(idx) {
				continue
			}
			counts[idx]++
		}
	}

	var (
		rarest models.PieceIndex
		fewest int
		found  bool
	)
	for idx, n := range counts {
		if !found || n < fewest || (n == fewest && idx < rarest) {
			rarest, fewest, found = idx, n, true
		}
	}
	return rarest, found
}
