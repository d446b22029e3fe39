package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const (
	ServiceName   = "_goswarm-tracker._udp"
	ServiceDomain = "local."
	instanceName  = "goswarm-tracker"
)

var ErrNotFound = errors.New("tracker not found")

// Publish announces a tracker listening on port. Call Shutdown on the
// returned server to withdraw it.
func Publish(port int) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(instanceName, ServiceName, ServiceDomain, port, []string{"txtv=0"}, nil)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}
	return server, nil
}

// Discover browses the local network until a tracker with an IPv4 address
// answers or ctx ends, and returns its host:port.
func Discover(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return "", fmt.Errorf("initialize mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceName, ServiceDomain, entries); err != nil {
		return "", fmt.Errorf("browse mdns: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrNotFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			if addr, ok := EntryAddr(entry); ok {
				return addr, nil
			}
		}
	}
}

// EntryAddr returns the first IPv4 address of entry joined with its port.
func EntryAddr(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return "", false
	}
	return net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(entry.Port)), true
}
