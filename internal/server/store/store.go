package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/prismhub/prism/internal/responses"
)

var (
	// ErrNotFound is returned when no row exists for the requested id.
	ErrNotFound = errors.New("response not found")

	// ErrNotConfigured is returned when a persistence call is made without a
	// configured database. Requests that never touch storage must not
	// trigger it.
	ErrNotConfigured = errors.New("database is not configured")
)

// Store persists response records. The connection opens lazily on first use
// so a missing DATABASE_URL only fails requests that actually need storage.
type Store struct {
	dsn string

	mu  sync.Mutex
	db  *gorm.DB
	err error
}

func NewStore(databaseURL string) *Store {
	return &Store{dsn: databaseURL}
}

// NewStoreWithDB wraps an already-open connection; used by tests.
func NewStoreWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ResponseRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate responses table: %w", err)
	}

	return &Store{db: db, dsn: "configured"}, nil
}

func (s *Store) conn() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil || s.err != nil {
		return s.db, s.err
	}

	if s.dsn == "" {
		return nil, ErrNotConfigured
	}

	dsn := strings.TrimPrefix(s.dsn, "sqlite://")

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		s.err = fmt.Errorf("failed to open database: %w", err)

		return nil, s.err
	}

	if err := db.AutoMigrate(&ResponseRecord{}); err != nil {
		s.err = fmt.Errorf("failed to migrate responses table: %w", err)

		return nil, s.err
	}

	s.db = db

	return s.db, nil
}

// Upsert inserts the record, replacing every column on conflict. Used for the
// initial streaming row and all terminal writes.
func (s *Store) Upsert(ctx context.Context, record *ResponseRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert response %s: %w", record.ID, err)
	}

	return nil
}

// PartialUpdate writes accumulated output onto an in-flight row. The status
// guard makes it a no-op once any terminal writer has won.
func (s *Store) PartialUpdate(ctx context.Context, id string, outputItems string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).
		Model(&ResponseRecord{}).
		Where("id = ? AND status = ?", id, responses.StatusInProgress).
		Update("output_items_json", outputItems).Error
	if err != nil {
		return fmt.Errorf("failed to update response %s: %w", id, err)
	}

	return nil
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*ResponseRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var record ResponseRecord

	err = db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to load response %s: %w", id, err)
	}

	return &record, nil
}

// Delete removes the row for id. Returns ErrNotFound when nothing matched.
func (s *Store) Delete(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Delete(&ResponseRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete response %s: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Finish applies terminal fields to a row that is still live. A row already
// in a terminal status is left untouched, so the first terminal writer wins.
func (s *Store) Finish(ctx context.Context, record *ResponseRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).
		Model(&ResponseRecord{}).
		Where("id = ? AND status IN ?", record.ID, []string{responses.StatusQueued, responses.StatusInProgress}).
		Updates(map[string]any{
			"status":                  record.Status,
			"output_items_json":       record.OutputItems,
			"usage_json":              record.Usage,
			"error_json":              record.Error,
			"incomplete_details_json": record.IncompleteDetails,
			"completed_at":            record.CompletedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish response %s: %w", record.ID, err)
	}

	return nil
}

// Cancel transitions queued or in_progress rows to cancelled. It reports
// whether the transition happened; terminal rows are left untouched, which
// keeps cancellation monotone.
func (s *Store) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}

	result := db.WithContext(ctx).
		Model(&ResponseRecord{}).
		Where("id = ? AND status IN ?", id, []string{responses.StatusQueued, responses.StatusInProgress}).
		Updates(map[string]any{
			"status":       responses.StatusCancelled,
			"cancelled_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to cancel response %s: %w", id, result.Error)
	}

	return result.RowsAffected > 0, nil
}
