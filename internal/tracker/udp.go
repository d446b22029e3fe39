package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/cenkalti/backoff"
)

type UDPOptions struct {
	// Timeout bounds every write and every wait for a reply.
	Timeout time.Duration
	// JoinInitialInterval and JoinMaxElapsed shape the JOIN retry backoff.
	// A zero JoinMaxElapsed retries until the context ends.
	JoinInitialInterval time.Duration
	JoinMaxElapsed      time.Duration
	// AdvertiseHost is sent in UPDATE messages. When empty the local address
	// of the socket connected to the tracker is used.
	AdvertiseHost string
}

type udpClient struct {
	conn     *net.UDPConn
	identity models.Addr
	opts     UDPOptions
	log      *slog.Logger

	// exchange serializes request/reply pairs on the shared socket.
	exchange sync.Mutex
}

// NewUDPClient connects a UDP socket to trackerAddr. listenPort is the port
// of this peer's transfer server, which the tracker uses as its identity.
func NewUDPClient(trackerAddr string, listenPort int, opts UDPOptions, logger *slog.Logger) (Tracker, error) {
	raddr, err := net.ResolveUDPAddr("udp", trackerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve tracker address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial tracker: %w", err)
	}

	host := opts.AdvertiseHost
	if host == "" {
		host = conn.LocalAddr().(*net.UDPAddr).IP.String()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.JoinInitialInterval <= 0 {
		opts.JoinInitialInterval = 500 * time.Millisecond
	}

	return &udpClient{
		conn:     conn,
		identity: models.Addr{Host: host, Port: listenPort},
		opts:     opts,
		log:      logger,
	}, nil
}

func (u *udpClient) Identity() models.Addr {
	return u.identity
}

func (u *udpClient) Close() error {
	return u.conn.Close()
}

func (u *udpClient) Join(ctx context.Context) (models.Snapshot, error) {
	msg := models.Message{Kind: models.MessageJoin, Port: u.identity.Port}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.opts.JoinInitialInterval
	b.MaxElapsedTime = u.opts.JoinMaxElapsed
	b.Reset()

	var snap models.Snapshot
	op := func() error {
		s, err := u.request(ctx, msg)
		if err != nil {
			return err
		}
		snap = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		u.log.Warn("join failed, retrying", slog.Any("error", err), slog.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("join tracker: %w", err)
	}
	return snap, nil
}

func (u *udpClient) GetPeers(ctx context.Context) (models.Snapshot, error) {
	return u.request(ctx, models.Message{Kind: models.MessageGetPeers, Port: u.identity.Port})
}

func (u *udpClient) Update(ctx context.Context, pieces models.PieceSet) error {
	payload, err := decoder.EncodeTrackerMessage(models.Message{
		Kind:   models.MessageUpdate,
		Addr:   u.identity,
		Pieces: pieces,
	})
	if err != nil {
		return err
	}
	if err := u.conn.SetWriteDeadline(u.deadline(ctx)); err != nil {
		return err
	}
	if _, err := u.conn.Write(payload); err != nil {
		return fmt.Errorf("send update: %w", err)
	}
	return nil
}

// request sends msg and waits for one PEERS reply. Datagrams that are not a
// valid snapshot are logged and skipped while the deadline allows.
func (u *udpClient) request(ctx context.Context, msg models.Message) (models.Snapshot, error) {
	payload, err := decoder.EncodeTrackerMessage(msg)
	if err != nil {
		return nil, err
	}

	u.exchange.Lock()
	defer u.exchange.Unlock()

	deadline := u.deadline(ctx)
	if err := u.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		u.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := u.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("send %s: %w", msg.Kind, err)
	}

	buf := make([]byte, maxDatagramSize)
	for {
		n, err := u.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrNoReply
			}
			return nil, fmt.Errorf("read %s reply: %w", msg.Kind, err)
		}

		reply, err := decoder.ParseTrackerMessage(buf[:n])
		if err != nil || reply.Kind != models.MessagePeers {
			u.log.Warn("ignoring unexpected tracker reply", slog.String("payload", string(buf[:n])))
			continue
		}
		return reply.Peers, nil
	}
}

func (u *udpClient) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(u.opts.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
