package transfer

import (
	"fmt"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
)

type Config struct {
	// ChunkSize is the largest DATA payload the sender emits.
	ChunkSize int
	// StepTimeout fails a session that waits longer than this for its peer.
	// Zero disables it.
	StepTimeout time.Duration
	// CloseGrace delays closing a completed channel so the close does not
	// race the peer's last read.
	CloseGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:   protocol.DefaultChunkSize,
		StepTimeout: 30 * time.Second,
		CloseGrace:  500 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkSize > protocol.MaxChunkSize {
		return fmt.Errorf("chunk size %d exceeds maximum %d", c.ChunkSize, protocol.MaxChunkSize)
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("step timeout must not be negative, got %s", c.StepTimeout)
	}
	if c.CloseGrace < 0 {
		return fmt.Errorf("close grace must not be negative, got %s", c.CloseGrace)
	}
	return nil
}
