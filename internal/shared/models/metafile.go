package models

// Metainfo describes a shared file. It is stored bencoded next to the
// pieces it was split into.
type Metainfo struct {
	Name   string `bencode:"name"`
	Pieces int    `bencode:"pieces"`
	Length int    `bencode:"length"`
}
