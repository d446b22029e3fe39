package models

type MessageKind uint8

const (
	MessageJoin MessageKind = iota + 1
	MessageUpdate
	MessageGetPeers
	MessagePeers
	MessageGet
	MessageOK
	MessageError
)

func (k MessageKind) String() string {
	switch k {
	case MessageJoin:
		return "JOIN"
	case MessageUpdate:
		return "UPDATE"
	case MessageGetPeers:
		return "GETPEERS"
	case MessagePeers:
		return "PEERS"
	case MessageGet:
		return "GET"
	case MessageOK:
		return "OK"
	case MessageError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Message is a parsed wire message. Only the fields relevant to Kind are set:
//
//	JOIN, GETPEERS: Port
//	UPDATE:         Addr, Pieces
//	PEERS:          Peers
//	GET:            Index
//	OK:             Content
//	ERROR:          Text
type Message struct {
	Kind    MessageKind
	Port    int
	Addr    Addr
	Pieces  PieceSet
	Peers   Snapshot
	Index   PieceIndex
	Content []byte
	Text    string
}
