package logic

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/WendelHime/goswarm/internal/p2p"
	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/WendelHime/goswarm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var self = models.Addr{Host: "127.0.0.1", Port: 5000}

type fakeTracker struct {
	mu      sync.Mutex
	join    models.Snapshot
	peers   models.Snapshot
	joinErr error
	updates []models.PieceSet
}

func (f *fakeTracker) Join(ctx context.Context) (models.Snapshot, error) {
	return f.join, f.joinErr
}

func (f *fakeTracker) Update(ctx context.Context, pieces models.PieceSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, pieces)
	return nil
}

func (f *fakeTracker) GetPeers(ctx context.Context) (models.Snapshot, error) {
	return f.peers, nil
}

func (f *fakeTracker) Identity() models.Addr { return self }

func (f *fakeTracker) Close() error { return nil }

func (f *fakeTracker) lastUpdate() models.PieceSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

// fakeTransfer serves pieces per peer from memory.
type fakeTransfer struct {
	mu       sync.Mutex
	pieces   map[models.Addr]map[models.PieceIndex]string
	requests []models.Addr
}

func (f *fakeTransfer) FetchPiece(ctx context.Context, addr models.Addr, index models.PieceIndex) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, addr)
	content, ok := f.pieces[addr][index]
	if !ok {
		return nil, p2p.ErrPieceUnavailable
	}
	return []byte(content), nil
}

type idleServer struct{}

func (idleServer) Serve(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPeer(t *testing.T, tr *fakeTracker, transfer p2p.P2PClient, opts Options) (*peer, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir(), discardLogger())
	require.NoError(t, err)
	rebuild := storage.NewReconstructor(store, "", discardLogger())
	p := NewPeer(tr, transfer, idleServer{}, store, rebuild, opts, discardLogger()).(*peer)
	return p, store
}

func TestFetchOnce(t *testing.T) {
	var tests = []struct {
		name   string
		view   models.Snapshot
		pieces map[models.Addr]map[models.PieceIndex]string
		assert func(t *testing.T, fetched bool, store *storage.Store, transfer *fakeTransfer)
	}{
		{
			name: "rarest piece is fetched and stored",
			view: models.Snapshot{
				{Addr: peerA, Pieces: models.NewPieceSet(1, 2)},
				{Addr: peerB, Pieces: models.NewPieceSet(2)},
			},
			pieces: map[models.Addr]map[models.PieceIndex]string{
				peerA: {1: "one", 2: "two"},
				peerB: {2: "two"},
			},
			assert: func(t *testing.T, fetched bool, store *storage.Store, transfer *fakeTransfer) {
				assert.True(t, fetched)
				content, err := store.Read(1)
				require.NoError(t, err)
				assert.Equal(t, []byte("one"), content)
				assert.Equal(t, []models.Addr{peerA}, transfer.requests)
			},
		},
		{
			name: "failed fetch leaves the store untouched",
			view: models.Snapshot{
				{Addr: peerA, Pieces: models.NewPieceSet(3)},
			},
			pieces: map[models.Addr]map[models.PieceIndex]string{},
			assert: func(t *testing.T, fetched bool, store *storage.Store, transfer *fakeTransfer) {
				assert.False(t, fetched)
				assert.False(t, store.Has(3))
			},
		},
		{
			name: "own entry is never a source",
			view: models.Snapshot{
				{Addr: self, Pieces: models.NewPieceSet(4)},
			},
			pieces: map[models.Addr]map[models.PieceIndex]string{
				self: {4: "four"},
			},
			assert: func(t *testing.T, fetched bool, store *storage.Store, transfer *fakeTransfer) {
				assert.False(t, fetched)
				assert.Empty(t, transfer.requests)
			},
		},
		{
			name: "nothing to fetch",
			view: models.Snapshot{},
			assert: func(t *testing.T, fetched bool, store *storage.Store, transfer *fakeTransfer) {
				assert.False(t, fetched)
				assert.Empty(t, transfer.requests)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer := &fakeTransfer{pieces: tt.pieces}
			p, store := newTestPeer(t, &fakeTracker{}, transfer, Options{})
			p.view.Replace(tt.view)
			fetched := p.fetchOnce(context.Background())
			tt.assert(t, fetched, store, transfer)
		})
	}
}

func TestFetchCompletesReconstruction(t *testing.T) {
	seed := make(map[models.PieceIndex]string)
	all := models.PieceSet{}
	for i := models.PieceIndex(1); i <= models.TotalPieces; i++ {
		seed[i] = "piece " + strconv.Itoa(int(i))
		all.Add(i)
	}
	transfer := &fakeTransfer{pieces: map[models.Addr]map[models.PieceIndex]string{peerA: seed}}
	p, _ := newTestPeer(t, &fakeTracker{}, transfer, Options{})
	p.view.Replace(models.Snapshot{{Addr: peerA, Pieces: all}})

	for i := 0; i < models.TotalPieces; i++ {
		require.True(t, p.fetchOnce(context.Background()))
	}
	assert.False(t, p.fetchOnce(context.Background()))
	assert.True(t, p.rebuild.Done())

	content, err := os.ReadFile(p.rebuild.OutputPath())
	require.NoError(t, err)
	assert.Equal(t, "piece 1\npiece 2\npiece 3\npiece 4\npiece 5\npiece 6\npiece 7\npiece 8\npiece 9\npiece 10\n", string(content))
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("terminal gone")
}

func TestProgressFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := storage.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	transfer := &fakeTransfer{pieces: map[models.Addr]map[models.PieceIndex]string{peerA: {3: "three"}}}
	rebuild := storage.NewReconstructor(store, "", logger)
	p := NewPeer(&fakeTracker{}, transfer, idleServer{}, store, rebuild, Options{Progress: brokenWriter{}}, logger).(*peer)
	p.view.Replace(models.Snapshot{{Addr: peerA, Pieces: models.NewPieceSet(3)}})

	assert.True(t, p.fetchOnce(context.Background()))
	assert.True(t, store.Has(3))
	assert.Contains(t, logs.String(), "failed to render progress")
	assert.Contains(t, logs.String(), "terminal gone")
}

func TestRun(t *testing.T) {
	seed := map[models.PieceIndex]string{}
	all := models.PieceSet{}
	for i := models.PieceIndex(1); i <= models.TotalPieces; i++ {
		seed[i] = strconv.Itoa(int(i))
		all.Add(i)
	}
	tr := &fakeTracker{
		// The JOIN snapshot knows nobody useful, the refresh does.
		join:  models.Snapshot{{Addr: self, Pieces: models.PieceSet{}}},
		peers: models.Snapshot{{Addr: peerA, Pieces: all}},
	}
	transfer := &fakeTransfer{pieces: map[models.Addr]map[models.PieceIndex]string{peerA: seed}}
	p, store := newTestPeer(t, tr, transfer, Options{
		UpdateInterval:      5 * time.Millisecond,
		RefreshDelay:        time.Millisecond,
		RefreshInterval:     5 * time.Millisecond,
		FetchInterval:       time.Millisecond,
		ReconstructDelay:    time.Millisecond,
		ReconstructInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, p.rebuild.Done, 5*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return tr.lastUpdate().ContainsAll(models.AllPieces())
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, store.Complete())

	cancel()
	assert.NoError(t, <-done)
}

func TestRunSurvivesJoinFailure(t *testing.T) {
	tr := &fakeTracker{joinErr: errors.New("tracker down")}
	p, _ := newTestPeer(t, tr, &fakeTransfer{}, Options{
		UpdateInterval:      5 * time.Millisecond,
		RefreshInterval:     5 * time.Millisecond,
		FetchInterval:       5 * time.Millisecond,
		ReconstructInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return tr.lastUpdate() != nil }, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
