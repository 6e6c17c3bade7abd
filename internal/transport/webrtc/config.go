package webrtc

import "github.com/pion/webrtc/v3"

var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

func DefaultSTUNConfig() webrtc.Configuration {
	return Configuration(DefaultSTUNServers)
}

// Configuration builds a peer connection configuration using stunServers.
// No servers means host candidates only.
func Configuration(stunServers []string) webrtc.Configuration {
	config := webrtc.Configuration{
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
	if len(stunServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{
			{URLs: append([]string(nil), stunServers...)},
		}
	}
	return config
}

// DefaultDataChannelConfig asks for an ordered channel with unlimited
// retransmits, which the stop-and-wait exchange depends on.
func DefaultDataChannelConfig() *webrtc.DataChannelInit {
	ordered := true
	subprotocol := "file-transfer"
	return &webrtc.DataChannelInit{
		Ordered:  &ordered,
		Protocol: &subprotocol,
	}
}
