package decoder

import (
	"strconv"
	"strings"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

const (
	prefixJoin     = "JOIN:"
	prefixUpdate   = "UPDATE:"
	prefixGetPeers = "GETPEERS:"
	prefixPeers    = "PEERS"
)

// EncodeTrackerMessage renders a JOIN, UPDATE, GETPEERS or PEERS message.
func EncodeTrackerMessage(msg models.Message) ([]byte, error) {
	switch msg.Kind {
	case models.MessageJoin:
		return []byte(prefixJoin + strconv.Itoa(msg.Port)), nil
	case models.MessageGetPeers:
		return []byte(prefixGetPeers + strconv.Itoa(msg.Port)), nil
	case models.MessageUpdate:
		var b strings.Builder
		b.WriteString(prefixUpdate)
		encodePeerEntry(&b, models.PeerEntry{Addr: msg.Addr, Pieces: msg.Pieces})
		return []byte(b.String()), nil
	case models.MessagePeers:
		return []byte(EncodeSnapshot(msg.Peers)), nil
	default:
		return nil, ErrMalformed
	}
}

// EncodeSnapshot renders "PEERS|ip:port:pieces|...".
func EncodeSnapshot(snap models.Snapshot) string {
	var b strings.Builder
	b.WriteString(prefixPeers)
	for _, e := range snap {
		b.WriteByte('|')
		encodePeerEntry(&b, e)
	}
	return b.String()
}

// ParseSnapshot reads a PEERS reply. A repeated peer makes the whole
// snapshot malformed.
func ParseSnapshot(s string) (models.Snapshot, error) {
	parts := strings.Split(s, "|")
	if parts[0] != prefixPeers {
		return nil, ErrMalformed
	}
	snap := make(models.Snapshot, 0, len(parts)-1)
	seen := make(map[models.Addr]struct{}, len(parts)-1)
	for _, p := range parts[1:] {
		entry, err := parsePeerEntry(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[entry.Addr]; dup {
			return nil, ErrMalformed
		}
		seen[entry.Addr] = struct{}{}
		snap = append(snap, entry)
	}
	return snap, nil
}

// ParseTrackerMessage reads one datagram. Surrounding whitespace is ignored.
func ParseTrackerMessage(b []byte) (models.Message, error) {
	s := strings.TrimSpace(string(b))
	switch {
	case strings.HasPrefix(s, prefixJoin):
		port, err := parsePort(s[len(prefixJoin):])
		if err != nil {
			return models.Message{}, err
		}
		return models.Message{Kind: models.MessageJoin, Port: port}, nil
	case strings.HasPrefix(s, prefixGetPeers):
		port, err := parsePort(s[len(prefixGetPeers):])
		if err != nil {
			return models.Message{}, err
		}
		return models.Message{Kind: models.MessageGetPeers, Port: port}, nil
	case strings.HasPrefix(s, prefixUpdate):
		entry, err := parsePeerEntry(s[len(prefixUpdate):])
		if err != nil {
			return models.Message{}, err
		}
		return models.Message{Kind: models.MessageUpdate, Addr: entry.Addr, Pieces: entry.Pieces}, nil
	case strings.HasPrefix(s, prefixPeers):
		snap, err := ParseSnapshot(s)
		if err != nil {
			return models.Message{}, err
		}
		return models.Message{Kind: models.MessagePeers, Peers: snap}, nil
	default:
		return models.Message{}, ErrMalformed
	}
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || !models.ValidPort(p) {
		return 0, ErrMalformed
	}
	return p, nil
}
