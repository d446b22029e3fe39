package models

import (
	"errors"
	"net"
	"strconv"
)

// Addr identifies a peer by the host it is reachable on and the port its
// transfer server listens on. It is comparable and used as a map key.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

var ErrInvalidAddr = errors.New("invalid address")

// ParseAddr reads a "host:port" pair. IPv6 hosts may be bracketed or bare,
// the port is always taken after the last colon.
func ParseAddr(s string) (Addr, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		i := lastColon(s)
		if i < 0 {
			return Addr{}, ErrInvalidAddr
		}
		host, port = s[:i], s[i+1:]
	}
	return NewAddr(host, port)
}

// NewAddr validates host and port strings.
func NewAddr(host, port string) (Addr, error) {
	if host == "" {
		return Addr{}, ErrInvalidAddr
	}
	p, err := strconv.Atoi(port)
	if err != nil || !ValidPort(p) {
		return Addr{}, ErrInvalidAddr
	}
	return Addr{Host: host, Port: p}, nil
}

func ValidPort(p int) bool {
	return p > 0 && p <= 65535
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
