package p2p

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/WendelHime/goswarm/internal/storage"
	"golang.org/x/sync/semaphore"
)

const maxRequestLine = 64

// PieceReader is the read side of the piece store.
type PieceReader interface {
	Read(index models.PieceIndex) ([]byte, error)
}

type ServerOptions struct {
	// Timeout bounds the whole exchange on one connection.
	Timeout time.Duration
	// MaxConnections caps the number of connections served at once.
	MaxConnections int64
}

// Server answers GET requests, one per connection, each connection on its
// own goroutine.
type Server struct {
	listener net.Listener
	pieces   PieceReader
	opts     ServerOptions
	sem      *semaphore.Weighted
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewServer(listener net.Listener, pieces PieceReader, opts ServerOptions, logger *slog.Logger) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 64
	}
	return &Server{
		listener: listener,
		pieces:   pieces,
		opts:     opts,
		sem:      semaphore.NewWeighted(opts.MaxConnections),
		log:      logger,
	}
}

// Listen binds a TCP listener on addr, e.g. ":5001".
func Listen(addr string, pieces PieceReader, opts ServerOptions, logger *slog.Logger) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewServer(l, pieces, opts, logger), nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled and waits for in-flight
// exchanges before returning.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.listener.Close()
	})
	defer stop()
	defer s.wg.Wait()

	s.log.Info("transfer server listening", slog.String("addr", s.listener.Addr().String()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Warn("accept failed", slog.Any("error", err))
			continue
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	if err := conn.SetDeadline(time.Now().Add(s.opts.Timeout)); err != nil {
		return
	}

	line, err := decoder.ReadLine(bufio.NewReader(conn), maxRequestLine)
	if err != nil && !errors.Is(err, decoder.ErrLineTooLong) {
		s.log.Warn("failed to read request", slog.String("from", remote), slog.Any("error", err))
		return
	}

	reply := s.reply(line, err)
	out, err := decoder.EncodeTransferMessage(reply)
	if err != nil {
		return
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		s.log.Warn("failed to write reply", slog.String("from", remote), slog.Any("error", err))
		return
	}
	if reply.Kind == models.MessageOK {
		s.log.Info("served piece", slog.String("to", remote), slog.Int("bytes", len(reply.Content)))
	}
}

func (s *Server) reply(line []byte, readErr error) models.Message {
	if readErr != nil {
		return errorMessage("bad request")
	}
	req, err := decoder.ParseTransferRequest(line)
	if err != nil {
		s.log.Warn("malformed transfer request", slog.String("request", string(line)))
		return errorMessage("bad request")
	}

	content, err := s.pieces.Read(req.Index)
	switch {
	case errors.Is(err, storage.ErrMissingPiece):
		return errorMessage(fmt.Sprintf("piece %d not found", req.Index))
	case err != nil:
		s.log.Warn("failed to read piece", slog.Int("piece", int(req.Index)), slog.Any("error", err))
		return errorMessage(fmt.Sprintf("piece %d unavailable", req.Index))
	}
	return models.Message{Kind: models.MessageOK, Content: content}
}

func errorMessage(text string) models.Message {
	return models.Message{Kind: models.MessageError, Text: text}
}
