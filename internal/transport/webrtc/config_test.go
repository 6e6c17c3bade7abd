package webrtc

import (
	"testing"

	"github.com/pion/webrtc/v3"
)

func TestConfigurationUsesGivenServers(t *testing.T) {
	servers := []string{"stun:a.example:3478", "stun:b.example:3478"}
	config := Configuration(servers)

	if len(config.ICEServers) != 1 {
		t.Fatalf("Expected a single ICE server entry, got %d", len(config.ICEServers))
	}
	urls := config.ICEServers[0].URLs
	if len(urls) != 2 || urls[0] != servers[0] || urls[1] != servers[1] {
		t.Errorf("Unexpected STUN URLs %v", urls)
	}

	servers[0] = "stun:changed"
	if config.ICEServers[0].URLs[0] == "stun:changed" {
		t.Error("Configuration must copy the server list")
	}
	if config.ICETransportPolicy != webrtc.ICETransportPolicyAll {
		t.Errorf("Expected all ICE candidates to be allowed, got %s", config.ICETransportPolicy)
	}
}

func TestConfigurationHostOnly(t *testing.T) {
	if n := len(Configuration(nil).ICEServers); n != 0 {
		t.Errorf("Expected no ICE servers, got %d", n)
	}
	if n := len(DefaultSTUNConfig().ICEServers[0].URLs); n != len(DefaultSTUNServers) {
		t.Errorf("Expected %d default STUN URLs, got %d", len(DefaultSTUNServers), n)
	}
}

func TestDataChannelIsReliableAndOrdered(t *testing.T) {
	dc := DefaultDataChannelConfig()

	if dc.Ordered == nil || !*dc.Ordered {
		t.Error("Data channel must be ordered")
	}
	if dc.MaxRetransmits != nil || dc.MaxPacketLifeTime != nil {
		t.Error("Data channel must retransmit without limit")
	}
	if dc.Protocol == nil || *dc.Protocol != "file-transfer" {
		t.Errorf("Unexpected subprotocol %v", dc.Protocol)
	}
}
