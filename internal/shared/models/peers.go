package models

// PeerEntry is one line of a tracker snapshot: who holds which pieces.
type PeerEntry struct {
	Addr   Addr
	Pieces PieceSet
}

// Snapshot is an ordered list of registry entries as sent in a PEERS reply.
// A nil Snapshot means nothing was received; an empty one means the tracker
// knows no other peers.
type Snapshot []PeerEntry
