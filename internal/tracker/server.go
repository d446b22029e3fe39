package tracker

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/WendelHime/goswarm/internal/decoder"
	"github.com/WendelHime/goswarm/internal/shared/models"
)

const maxDatagramSize = 64 * 1024

// Server answers JOIN, UPDATE and GETPEERS datagrams. Requests are handled
// one at a time in arrival order.
type Server struct {
	conn     net.PacketConn
	registry *Registry
	log      *slog.Logger
}

func NewServer(conn net.PacketConn, registry *Registry, logger *slog.Logger) *Server {
	return &Server{conn: conn, registry: registry, log: logger}
}

// Listen binds a UDP socket on addr, e.g. ":8888".
func Listen(addr string, registry *Registry, logger *slog.Logger) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return NewServer(conn, registry, logger), nil
}

func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Serve reads datagrams until ctx is cancelled, then closes the socket.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()

	s.log.Info("tracker listening", slog.String("addr", s.conn.LocalAddr().String()))
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.Warn("failed to read datagram", slog.Any("error", err))
			continue
		}

		reply := s.Handle(buf[:n], from)
		if reply == nil {
			continue
		}
		if _, err := s.conn.WriteTo(reply, from); err != nil {
			s.log.Warn("failed to send reply", slog.String("to", from.String()), slog.Any("error", err))
		}
	}
}

// Handle applies one request to the registry and returns the reply to send,
// or nil when no reply is due. Malformed requests are logged and dropped.
func (s *Server) Handle(payload []byte, from net.Addr) []byte {
	msg, err := decoder.ParseTrackerMessage(payload)
	if err != nil {
		s.log.Warn("dropping malformed request", slog.String("from", from.String()), slog.String("payload", string(payload)))
		return nil
	}

	switch msg.Kind {
	case models.MessageJoin:
		addr, err := senderAddr(from, msg.Port)
		if err != nil {
			s.log.Warn("dropping join from unknown sender", slog.String("from", from.String()))
			return nil
		}
		snap := s.registry.Join(addr)
		s.log.Info("peer joined", slog.String("peer", addr.String()), slog.Int("peers", s.registry.Len()))
		return []byte(decoder.EncodeSnapshot(snap))
	case models.MessageGetPeers:
		addr, err := senderAddr(from, msg.Port)
		if err != nil {
			s.log.Warn("dropping getpeers from unknown sender", slog.String("from", from.String()))
			return nil
		}
		return []byte(decoder.EncodeSnapshot(s.registry.ListPeers(addr)))
	case models.MessageUpdate:
		s.registry.Update(msg.Addr, msg.Pieces)
		s.log.Info("peer updated", slog.String("peer", msg.Addr.String()), slog.Any("pieces", msg.Pieces.Sorted()))
		return nil
	default:
		s.log.Warn("dropping unexpected message", slog.String("kind", msg.Kind.String()), slog.String("from", from.String()))
		return nil
	}
}

// senderAddr combines the datagram's source host with the port the peer
// declared for its transfer server.
func senderAddr(from net.Addr, port int) (models.Addr, error) {
	host, _, err := net.SplitHostPort(from.String())
	if err != nil {
		return models.Addr{}, err
	}
	return models.Addr{Host: host, Port: port}, nil
}
