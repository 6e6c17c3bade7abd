// Package rendezvous lets peers behind the same public address find each
// other and exchange WebRTC signals over a WebSocket hub.
package rendezvous

const (
	typeJoin          = "join"
	typePeerJoined    = "peer_joined"
	typeExistingPeers = "existing_peers"
	typePeerLeft      = "peer_left"
	typeSignal        = "signal"
	typeError         = "error"
)

type PeerInfo struct {
	PeerID string `json:"peer_id"`
	Name   string `json:"name"`
}

// message is the single JSON shape exchanged with the hub. Which fields are
// set depends on Type.
type message struct {
	Type    string     `json:"type"`
	PeerID  string     `json:"peer_id,omitempty"`
	Name    string     `json:"name,omitempty"`
	Target  string     `json:"target,omitempty"`
	From    string     `json:"from,omitempty"`
	Peers   []PeerInfo `json:"peers,omitempty"`
	Payload []byte     `json:"payload,omitempty"`
	Error   string     `json:"error,omitempty"`
}
