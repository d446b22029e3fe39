package tracker

import (
	"sync"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

// JoinSnapshotLimit caps the number of entries returned to a joining peer.
// GETPEERS is not capped; the asymmetry is kept for wire compatibility with
// existing peers, and a joining peer fills in the rest on its first refresh.
const JoinSnapshotLimit = 3

// Registry records the last piece set each peer announced. Entries are kept
// in registration order and are never removed.
type Registry struct {
	mu     sync.Mutex
	order  []models.Addr
	pieces map[models.Addr]models.PieceSet
}

func NewRegistry() *Registry {
	return &Registry{pieces: make(map[models.Addr]models.PieceSet)}
}

// Join registers addr with no pieces unless it is already known, and returns
// at most JoinSnapshotLimit entries, possibly including addr itself.
func (r *Registry) Join(addr models.Addr) models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pieces[addr]; !ok {
		r.add(addr, models.PieceSet{})
	}
	return r.snapshot(models.Addr{}, JoinSnapshotLimit)
}

// Update replaces the piece set recorded for addr.
func (r *Registry) Update(addr models.Addr, pieces models.PieceSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pieces[addr]; !ok {
		r.add(addr, pieces.Clone())
		return
	}
	r.pieces[addr] = pieces.Clone()
}

// ListPeers returns every entry except exclude.
func (r *Registry) ListPeers(exclude models.Addr) models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(exclude, 0)
}

// Snapshot returns every entry.
func (r *Registry) Snapshot() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(models.Addr{}, 0)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Registry) add(addr models.Addr, pieces models.PieceSet) {
	r.order = append(r.order, addr)
	r.pieces[addr] = pieces
}

// snapshot must be called with mu held. limit <= 0 means no limit.
func (r *Registry) snapshot(exclude models.Addr, limit int) models.Snapshot {
	snap := make(models.Snapshot, 0, len(r.order))
	for _, addr := range r.order {
		if addr == exclude {
			continue
		}
		if limit > 0 && len(snap) >= limit {
			break
		}
		snap = append(snap, models.PeerEntry{Addr: addr, Pieces: r.pieces[addr].Clone()})
	}
	return snap
}
