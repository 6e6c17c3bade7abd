package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db)
}

func testRecord(id string, finished time.Time) transfer.Record {
	return transfer.Record{
		SessionID:  id,
		PeerID:     "bob",
		Direction:  transfer.DirectionSend,
		File:       transfer.FileDescriptor{Name: "photo.jpg", Size: 40000, MimeType: "image/jpeg"},
		State:      "completed",
		Bytes:      40000,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(time.Now().UnixMilli())

	if err := s.Record(ctx, testRecord("s1", now)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.File.Name != "photo.jpg" || got.File.Size != 40000 || got.File.MimeType != "image/jpeg" {
		t.Errorf("unexpected file %+v", got.File)
	}
	if got.Direction != transfer.DirectionSend {
		t.Errorf("expected direction send, got %q", got.Direction)
	}
	if !got.FinishedAt.Equal(now) {
		t.Errorf("expected finished at %v, got %v", now, got.FinishedAt)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RecordTwiceOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	rec := testRecord("s1", now)
	_ = s.Record(ctx, rec)

	rec.State = "failed"
	rec.Reason = "timeout"
	if err := s.Record(ctx, rec); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(all))
	}
	if all[0].State != "failed" || all[0].Reason != "timeout" {
		t.Errorf("expected overwritten row, got %+v", all[0])
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"old", "newest", "middle"} {
		offset := []time.Duration{0, 2 * time.Minute, time.Minute}[i]
		if err := s.Record(ctx, testRecord(id, base.Add(offset))); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	recent, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(recent))
	}
	if recent[0].SessionID != "newest" || recent[1].SessionID != "middle" {
		t.Errorf("unexpected order: %s, %s", recent[0].SessionID, recent[1].SessionID)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	_ = sqlDB.Close()
}
