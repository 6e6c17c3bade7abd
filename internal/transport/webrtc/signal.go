package webrtc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
)

const labelPrefix = "peerdrop:"

// envelope is the signal payload. ConnID tells apart several channels to
// the same peer.
type envelope struct {
	ConnID string                    `json:"conn_id"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

func encodeEnvelope(env envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("failed to decode signal: %w", err)
	}
	if env.ConnID == "" {
		return envelope{}, fmt.Errorf("signal without connection id")
	}
	return env, nil
}

// encodeLabel carries the file metadata in the data channel label, so the
// receiver knows the offer as soon as the channel exists.
func encodeLabel(md transport.ConnectionMetadata) (string, error) {
	data, err := protocol.EncodeMetadata(md)
	if err != nil {
		return "", err
	}
	return labelPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeLabel(label string) (transport.ConnectionMetadata, error) {
	encoded, ok := strings.CutPrefix(label, labelPrefix)
	if !ok {
		return transport.ConnectionMetadata{}, fmt.Errorf("%w: unexpected channel label %q", protocol.ErrMalformed, label)
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return transport.ConnectionMetadata{}, fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
	}
	return protocol.DecodeMetadata(data)
}
