package logic

import (
	"sync"

	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/samber/lo"
)

// SwarmView is a peer's copy of which remote peer holds which pieces. Every
// snapshot received from the tracker replaces it wholesale.
type SwarmView struct {
	mu       sync.RWMutex
	snapshot models.Snapshot
}

func NewSwarmView() *SwarmView {
	return &SwarmView{}
}

// Replace discards every known peer and adopts snap. A nil snapshot is
// ignored since it means nothing was received.
func (v *SwarmView) Replace(snap models.Snapshot) {
	if snap == nil {
		return
	}
	c := make(models.Snapshot, len(snap))
	for i, e := range snap {
		c[i] = models.PeerEntry{Addr: e.Addr, Pieces: e.Pieces.Clone()}
	}
	v.mu.Lock()
	v.snapshot = c
	v.mu.Unlock()
}

// Snapshot returns a copy of the current view. It is nil until a snapshot
// has been received.
func (v *SwarmView) Snapshot() models.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.snapshot == nil {
		return nil
	}
	c := make(models.Snapshot, len(v.snapshot))
	for i, e := range v.snapshot {
		c[i] = models.PeerEntry{Addr: e.Addr, Pieces: e.Pieces.Clone()}
	}
	return c
}

// Holders returns the peers advertising index, in snapshot order.
func (v *SwarmView) Holders(index models.PieceIndex) []models.Addr {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return lo.FilterMap(v.snapshot, func(e models.PeerEntry, _ int) (models.Addr, bool) {
		return e.Addr, e.Pieces.Has(index)
	})
}

func (v *SwarmView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.snapshot)
}

// ChooseRarestPiece runs the rarest-first selection against the current view.
func (v *SwarmView) ChooseRarestPiece(own models.PieceSet) (models.PieceIndex, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ChooseRarestPiece(v.snapshot, own)
}
