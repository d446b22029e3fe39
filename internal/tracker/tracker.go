package tracker

import (
	"context"
	"errors"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

// ErrNoReply is returned when the tracker did not answer in time.
var ErrNoReply = errors.New("no reply from tracker")

// Tracker is the peer side of the tracker protocol.
type Tracker interface {
	// Join registers the peer and returns its initial swarm snapshot.
	Join(ctx context.Context) (models.Snapshot, error)
	// Update announces the pieces the peer holds. No reply is expected.
	Update(ctx context.Context, pieces models.PieceSet) error
	// GetPeers returns every other registered peer.
	GetPeers(ctx context.Context) (models.Snapshot, error)
	// Identity is the address the tracker knows this peer by.
	Identity() models.Addr
	Close() error
}
