package models

import (
	"slices"

	"github.com/samber/lo"
)

// TotalPieces is the number of pieces every shared file is split into.
const TotalPieces = 10

// PieceIndex identifies one fragment of the shared file, in [1, TotalPieces].
type PieceIndex int

func (i PieceIndex) Valid() bool {
	return i >= 1 && i <= TotalPieces
}

// PieceSet is a set of piece indices. A nil or empty set means the peer
// holds nothing.
type PieceSet map[PieceIndex]struct{}

func NewPieceSet(indices ...PieceIndex) PieceSet {
	s := make(PieceSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// AllPieces returns {1..TotalPieces}.
func AllPieces() PieceSet {
	s := make(PieceSet, TotalPieces)
	for i := PieceIndex(1); i <= TotalPieces; i++ {
		s[i] = struct{}{}
	}
	return s
}

func (s PieceSet) Has(i PieceIndex) bool {
	_, ok := s[i]
	return ok
}

func (s PieceSet) Add(i PieceIndex) {
	s[i] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s PieceSet) Sorted() []PieceIndex {
	keys := lo.Keys(s)
	slices.Sort(keys)
	return keys
}

func (s PieceSet) Clone() PieceSet {
	c := make(PieceSet, len(s))
	for i := range s {
		c[i] = struct{}{}
	}
	return c
}

// ContainsAll reports whether every member of other is in s.
func (s PieceSet) ContainsAll(other PieceSet) bool {
	return lo.EveryBy(lo.Keys(other), s.Has)
}

// Piece is one fragment's index and content.
type Piece struct {
	Index   PieceIndex
	Content []byte
}
