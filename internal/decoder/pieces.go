package decoder

import (
	"errors"
	"strconv"
	"strings"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

// ErrMalformed is returned for any message that does not follow the wire
// format.
var ErrMalformed = errors.New("malformed message")

const emptyPieces = "none"

// EncodePieceSet writes indices in ascending order separated by commas, or
// "none" for the empty set.
func EncodePieceSet(s models.PieceSet) string {
	if len(s) == 0 {
		return emptyPieces
	}
	var b strings.Builder
	for i, idx := range s.Sorted() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(idx)))
	}
	return b.String()
}

// ParsePieceSet is the inverse of EncodePieceSet. Indices outside
// [1, TotalPieces] are rejected.
func ParsePieceSet(s string) (models.PieceSet, error) {
	if strings.EqualFold(s, emptyPieces) {
		return models.PieceSet{}, nil
	}
	if s == "" {
		return nil, ErrMalformed
	}
	parts := strings.Split(s, ",")
	set := make(models.PieceSet, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, ErrMalformed
		}
		idx := models.PieceIndex(n)
		if !idx.Valid() {
			return nil, ErrMalformed
		}
		set.Add(idx)
	}
	return set, nil
}

// parsePeerEntry reads "<ip>:<port>:<pieces>".
func parsePeerEntry(s string) (models.PeerEntry, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return models.PeerEntry{}, ErrMalformed
	}
	addr, err := models.ParseAddr(s[:i])
	if err != nil {
		return models.PeerEntry{}, ErrMalformed
	}
	pieces, err := ParsePieceSet(s[i+1:])
	if err != nil {
		return models.PeerEntry{}, err
	}
	return models.PeerEntry{Addr: addr, Pieces: pieces}, nil
}

func encodePeerEntry(b *strings.Builder, e models.PeerEntry) {
	b.WriteString(e.Addr.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(e.Addr.Port))
	b.WriteByte(':')
	b.WriteString(EncodePieceSet(e.Pieces))
}
