// Package discovery finds peer-drop receivers on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	DefaultService     = "_peerdrop._udp"
	DefaultDomain      = "local."
	DefaultScanTimeout = 3 * time.Second
	version            = 1
)

var ErrPeerNotFound = errors.New("peer not found on local network")

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

type Config struct {
	Service     string
	Domain      string
	ScanTimeout time.Duration

	// PeerID and Name identify this node when advertising. Browsing skips
	// entries carrying PeerID.
	PeerID string
	Name   string
	Port   int

	registerFn registerFunc
	browseFn   browseFunc
}

func (c Config) withDefaults() Config {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = DefaultScanTimeout
	}
	if c.registerFn == nil {
		c.registerFn = zeroconf.Register
	}
	return c
}

// Peer is a receiver found on the network. Addr is a host:port suitable as a
// QUIC transport peer id.
type Peer struct {
	PeerID  string
	Name    string
	Version int
	Addr    string
}

type Advertiser struct {
	server *zeroconf.Server
}

// Advertise announces this node until Stop is called.
func Advertise(config Config) (*Advertiser, error) {
	cfg := config.withDefaults()
	if strings.TrimSpace(cfg.PeerID) == "" {
		return nil, errors.New("peer id is required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("name is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("port must be > 0")
	}

	txt := []string{
		"id=" + cfg.PeerID,
		"version=" + strconv.Itoa(version),
	}
	server, err := cfg.registerFn(cfg.Name, cfg.Service, cfg.Domain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Browse scans for ScanTimeout and returns the peers seen, sorted by name.
func Browse(ctx context.Context, config Config) ([]Peer, error) {
	cfg := config.withDefaults()

	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("create mDNS resolver: %w", err)
		}
		browse = resolver.Browse
	}

	scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	found := make(map[string]Peer)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				peer, ok := parseEntry(entry)
				if !ok || peer.PeerID == cfg.PeerID {
					continue
				}
				found[peer.PeerID] = peer
			case <-scanCtx.Done():
				return
			}
		}
	}()

	if err := browse(scanCtx, cfg.Service, cfg.Domain, entries); err != nil {
		return nil, fmt.Errorf("browse mDNS: %w", err)
	}
	<-scanCtx.Done()
	<-collected

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peers := make([]Peer, 0, len(found))
	for _, p := range found {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Name == peers[j].Name {
			return peers[i].PeerID < peers[j].PeerID
		}
		return peers[i].Name < peers[j].Name
	})
	return peers, nil
}

// Find browses for a peer whose id or name (ignoring case) is idOrName.
func Find(ctx context.Context, config Config, idOrName string) (Peer, error) {
	peers, err := Browse(ctx, config)
	if err != nil {
		return Peer{}, err
	}
	for _, p := range peers {
		if p.PeerID == idOrName {
			return p, nil
		}
	}
	for _, p := range peers {
		if strings.EqualFold(p.Name, idOrName) {
			return p, nil
		}
	}
	return Peer{}, fmt.Errorf("%w: %s", ErrPeerNotFound, idOrName)
}

func parseEntry(entry *zeroconf.ServiceEntry) (Peer, bool) {
	if entry == nil {
		return Peer{}, false
	}

	peer := Peer{Name: entry.Instance}
	for _, record := range entry.Text {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			continue
		}
		switch key {
		case "id":
			peer.PeerID = value
		case "version":
			peer.Version, _ = strconv.Atoi(value)
		}
	}
	if peer.PeerID == "" || entry.Port <= 0 {
		return Peer{}, false
	}

	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return Peer{}, false
	}
	peer.Addr = net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
	return peer, true
}
