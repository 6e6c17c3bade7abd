package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(id, name string, port int, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: name,
			Service:  DefaultService,
			Domain:   DefaultDomain,
		},
		HostName: name + ".local",
		Port:     port,
		Text:     []string{"id=" + id, "version=1"},
		AddrIPv4: []net.IP{net.ParseIP(ip)},
	}
}

func fakeBrowse(entries ...*zeroconf.ServiceEntry) browseFunc {
	return func(ctx context.Context, service, domain string, out chan<- *zeroconf.ServiceEntry) error {
		go func() {
			for _, e := range entries {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

func TestBrowseSkipsSelfAndSorts(t *testing.T) {
	cfg := Config{
		PeerID:      "self",
		ScanTimeout: 50 * time.Millisecond,
		browseFn: fakeBrowse(
			entry("self", "Me", 9000, "10.0.0.1"),
			entry("p2", "Zed", 9002, "10.0.0.3"),
			entry("p1", "Amy", 9001, "10.0.0.2"),
		),
	}

	peers, err := Browse(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Browse failed: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("Expected 2 peers, got %d: %+v", len(peers), peers)
	}
	if peers[0].Name != "Amy" || peers[0].Addr != "10.0.0.2:9001" || peers[0].Version != 1 {
		t.Errorf("Unexpected first peer %+v", peers[0])
	}
	if peers[1].PeerID != "p2" {
		t.Errorf("Expected p2 second, got %+v", peers[1])
	}
}

func TestFind(t *testing.T) {
	cfg := Config{
		ScanTimeout: 50 * time.Millisecond,
		browseFn:    fakeBrowse(entry("p1", "Brave Fox", 9001, "10.0.0.2")),
	}

	peer, err := Find(context.Background(), cfg, "brave fox")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if peer.PeerID != "p1" {
		t.Errorf("Expected p1, got %s", peer.PeerID)
	}

	if _, err := Find(context.Background(), cfg, "nobody"); !errors.Is(err, ErrPeerNotFound) {
		t.Errorf("Expected ErrPeerNotFound, got %v", err)
	}
}

func TestParseEntryRejectsIncomplete(t *testing.T) {
	noID := entry("", "Amy", 9001, "10.0.0.2")
	if _, ok := parseEntry(noID); ok {
		t.Error("Expected entry without id to be rejected")
	}

	noAddr := entry("p1", "Amy", 9001, "10.0.0.2")
	noAddr.AddrIPv4 = nil
	if _, ok := parseEntry(noAddr); ok {
		t.Error("Expected entry without address to be rejected")
	}

	v6 := entry("p1", "Amy", 9001, "10.0.0.2")
	v6.AddrIPv4 = nil
	v6.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	peer, ok := parseEntry(v6)
	if !ok || peer.Addr != "[fe80::1]:9001" {
		t.Errorf("Unexpected IPv6 peer %+v (ok=%v)", peer, ok)
	}
}

func TestAdvertise(t *testing.T) {
	var gotTXT []string
	var gotPort int
	cfg := Config{
		PeerID: "p1",
		Name:   "Brave Fox",
		Port:   9001,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotTXT, gotPort = text, port
			return nil, nil
		},
	}

	adv, err := Advertise(cfg)
	if err != nil {
		t.Fatalf("Advertise failed: %v", err)
	}
	adv.Stop()

	if gotPort != 9001 {
		t.Errorf("Expected port 9001, got %d", gotPort)
	}
	if len(gotTXT) != 2 || gotTXT[0] != "id=p1" || gotTXT[1] != "version=1" {
		t.Errorf("Unexpected TXT records %v", gotTXT)
	}

	if _, err := Advertise(Config{Name: "x", Port: 1}); err == nil {
		t.Error("Expected error without peer id")
	}
}

func TestBrowseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Browse(ctx, Config{browseFn: fakeBrowse()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
