package p2p

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/shared/models"
)

// ErrPieceUnavailable is returned when the remote peer answered with an
// ERROR line.
var ErrPieceUnavailable = errors.New("piece unavailable on peer")

const maxReplyLine = 16 * 1024 * 1024

type P2PClient interface {
	// FetchPiece asks addr for one piece over a fresh connection.
	FetchPiece(ctx context.Context, addr models.Addr, index models.PieceIndex) ([]byte, error)
}

type client struct {
	timeout time.Duration
}

// NewClient returns a client whose dial, write and read each finish within
// timeout.
func NewClient(timeout time.Duration) P2PClient {
	return &client{timeout: timeout}
}

func (c *client) FetchPiece(ctx context.Context, addr models.Addr, index models.PieceIndex) ([]byte, error) {
	request, err := decoder.EncodeTransferMessage(models.Message{Kind: models.MessageGet, Index: index})
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(append(request, '\n')); err != nil {
		return nil, fmt.Errorf("send request to %s: %w", addr, err)
	}

	line, err := decoder.ReadLine(bufio.NewReader(conn), maxReplyLine)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read reply from %s: %w", addr, err)
	}

	reply, err := decoder.ParseTransferReply(line)
	if err != nil {
		return nil, fmt.Errorf("reply from %s: %w", addr, err)
	}
	if reply.Kind == models.MessageError {
		return nil, fmt.Errorf("%w: %s", ErrPieceUnavailable, reply.Text)
	}
	return reply.Content, nil
}
