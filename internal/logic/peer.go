package logic

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/WendelHime/goswarm/internal/p2p"
	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/WendelHime/goswarm/internal/storage"
	"github.com/WendelHime/goswarm/internal/tracker"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Peer joins the swarm, keeps the tracker informed, fetches missing pieces
// and rebuilds the file once every piece is held.
type Peer interface {
	Run(ctx context.Context) error
}

// Server is the transfer server a peer keeps running while it is in the
// swarm.
type Server interface {
	Serve(ctx context.Context) error
}

type Options struct {
	UpdateInterval      time.Duration
	RefreshDelay        time.Duration
	RefreshInterval     time.Duration
	FetchInterval       time.Duration
	ReconstructDelay    time.Duration
	ReconstructInterval time.Duration
	// Progress receives the progress bar; nil hides it.
	Progress io.Writer
}

type peer struct {
	tracker  tracker.Tracker
	transfer p2p.P2PClient
	server   Server
	store    *storage.Store
	rebuild  *storage.Reconstructor
	view     *SwarmView
	opts     Options
	log      *slog.Logger
	bar      *progressbar.ProgressBar
	rand     *rand.Rand
}

func NewPeer(t tracker.Tracker, transfer p2p.P2PClient, server Server, store *storage.Store, rebuild *storage.Reconstructor, opts Options, logger *slog.Logger) Peer {
	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	bar := progressbar.NewOptions(models.TotalPieces,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("pieces"),
		progressbar.OptionShowCount(),
	)

	p := &peer{
		tracker:  t,
		transfer: transfer,
		server:   server,
		store:    store,
		rebuild:  rebuild,
		view:     NewSwarmView(),
		opts:     opts,
		log:      logger,
		bar:      bar,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.showProgress()
	return p
}

// Run blocks until ctx is cancelled or the transfer server fails.
func (p *peer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.server.Serve(ctx)
	})

	p.log.Info("joining swarm", slog.String("identity", p.tracker.Identity().String()), slog.Any("pieces", p.store.Pieces().Sorted()))
	snap, err := p.tracker.Join(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return g.Wait()
		}
		p.log.Warn("join failed, waiting for the next refresh", slog.Any("error", err))
	} else {
		p.view.Replace(snap)
		p.log.Info("joined swarm", slog.Int("known_peers", len(snap)))
	}

	g.Go(func() error {
		every(ctx, 0, p.opts.UpdateInterval, p.sendUpdate)
		return nil
	})
	g.Go(func() error {
		every(ctx, p.opts.RefreshDelay, p.opts.RefreshInterval, p.refresh)
		return nil
	})
	g.Go(func() error {
		every(ctx, p.opts.FetchInterval, p.opts.FetchInterval, func(ctx context.Context) {
			p.fetchOnce(ctx)
		})
		return nil
	})
	g.Go(func() error {
		every(ctx, p.opts.ReconstructDelay, p.opts.ReconstructInterval, func(context.Context) {
			p.tryReconstruct()
		})
		return nil
	})
	return g.Wait()
}

// every calls fn after delay and then again interval after each call
// returns, until ctx is done.
func every(ctx context.Context, delay, interval time.Duration, fn func(context.Context)) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		fn(ctx)
		timer.Reset(interval)
	}
}

func (p *peer) sendUpdate(ctx context.Context) {
	pieces := p.store.Pieces()
	if err := p.tracker.Update(ctx, pieces); err != nil {
		p.log.Warn("failed to send update", slog.Any("error", err))
		return
	}
	p.log.Debug("update sent", slog.Any("pieces", pieces.Sorted()))
}

func (p *peer) refresh(ctx context.Context) {
	snap, err := p.tracker.GetPeers(ctx)
	if err != nil {
		p.log.Warn("failed to refresh peers", slog.Any("error", err))
		return
	}
	p.view.Replace(snap)
	p.log.Debug("peers refreshed", slog.Int("known_peers", len(snap)))
}

// fetchOnce requests the rarest missing piece from one of its holders and
// reports whether a piece was stored.
func (p *peer) fetchOnce(ctx context.Context) bool {
	index, ok := p.view.ChooseRarestPiece(p.store.Pieces())
	if !ok {
		p.log.Debug("no missing piece is available")
		return false
	}

	holders := p.remoteHolders(index)
	if len(holders) == 0 {
		return false
	}
	target := holders[p.rand.Intn(len(holders))]

	p.log.Info("requesting piece", slog.Int("piece", int(index)), slog.String("peer", target.String()))
	content, err := p.transfer.FetchPiece(ctx, target, index)
	if err != nil {
		p.log.Warn("failed to fetch piece", slog.Int("piece", int(index)), slog.String("peer", target.String()), slog.Any("error", err))
		return false
	}
	if err := p.store.Save(index, content); err != nil {
		p.log.Error("failed to store piece", slog.Int("piece", int(index)), slog.Any("error", err))
		return false
	}
	p.showProgress()
	p.tryReconstruct()
	return true
}

func (p *peer) remoteHolders(index models.PieceIndex) []models.Addr {
	return lo.Without(p.view.Holders(index), p.tracker.Identity())
}

func (p *peer) tryReconstruct() {
	if p.rebuild.Done() || !p.store.Complete() {
		return
	}
	if err := p.rebuild.Reconstruct(); err != nil {
		p.log.Warn("reconstruction failed, will retry", slog.Any("error", err))
		return
	}
	if err := p.bar.Finish(); err != nil {
		p.log.Debug("failed to render progress", slog.Any("error", err))
	}
	p.log.Info("all pieces assembled", slog.String("path", p.rebuild.OutputPath()))
}

func (p *peer) showProgress() {
	if err := p.bar.Set(len(p.store.Pieces())); err != nil {
		p.log.Debug("failed to render progress", slog.Any("error", err))
	}
}
