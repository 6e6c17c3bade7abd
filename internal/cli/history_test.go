package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintHistory(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []transfer.Record{
		{
			SessionID:  "s1",
			PeerID:     "bob",
			Direction:  transfer.DirectionReceive,
			File:       transfer.FileDescriptor{Name: "photo.jpg", Size: 2 * 1000 * 1000},
			State:      "completed",
			FinishedAt: now.Add(-2 * time.Hour),
		},
		{
			SessionID:  "s2",
			PeerID:     "carol",
			Direction:  transfer.DirectionSend,
			File:       transfer.FileDescriptor{Name: "notes.txt", Size: 10},
			State:      "failed",
			Reason:     transfer.ReasonTimeout,
			FinishedAt: now.Add(-3 * time.Minute),
		},
	}

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, records, now))

	text := out.String()
	assert.Contains(t, text, "DIRECTION")
	assert.Contains(t, text, "photo.jpg")
	assert.Contains(t, text, "2.0 MB")
	assert.Contains(t, text, "2 hours ago")
	assert.Contains(t, text, "failed (timeout)")
	assert.Contains(t, text, "3 minutes ago")
}

func TestPrintHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printHistory(&out, nil, time.Now()))
	assert.Equal(t, "No transfers yet\n", out.String())
}
