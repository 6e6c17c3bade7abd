package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("transfer not found")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Record saves a finished session. Recording the same session again
// overwrites the earlier row.
func (s *Store) Record(ctx context.Context, rec transfer.Record) error {
	row := Transfer{
		SessionID:  rec.SessionID,
		PeerID:     rec.PeerID,
		Direction:  string(rec.Direction),
		FileName:   rec.File.Name,
		FileSize:   rec.File.Size,
		MimeType:   rec.File.MimeType,
		State:      rec.State,
		Reason:     rec.Reason,
		Bytes:      rec.Bytes,
		StartedAt:  rec.StartedAt.UnixMilli(),
		FinishedAt: rec.FinishedAt.UnixMilli(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("recording transfer %s: %w", rec.SessionID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (transfer.Record, error) {
	var row Transfer
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return transfer.Record{}, ErrNotFound
	}
	if err != nil {
		return transfer.Record{}, err
	}
	return row.record(), nil
}

// List returns the most recently finished transfers first. A limit of zero
// or less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]transfer.Record, error) {
	var rows []Transfer
	q := s.db.WithContext(ctx).Order("finished_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]transfer.Record, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

func (t Transfer) record() transfer.Record {
	return transfer.Record{
		SessionID: t.SessionID,
		PeerID:    t.PeerID,
		Direction: transfer.Direction(t.Direction),
		File: transfer.FileDescriptor{
			Name:     t.FileName,
			Size:     t.FileSize,
			MimeType: t.MimeType,
		},
		State:      t.State,
		Reason:     t.Reason,
		Bytes:      t.Bytes,
		StartedAt:  time.UnixMilli(t.StartedAt),
		FinishedAt: time.UnixMilli(t.FinishedAt),
	}
}

var _ transfer.Recorder = (*Store)(nil)
