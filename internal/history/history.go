// Package history keeps a local record of booking runs in an embedded
// SQLite database: one row per orchestrator attempt and one per
// confirmed reservation. A nil *Store disables recording entirely.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Attempt is one full orchestrator run, however it ended.
type Attempt struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index;size:36"`
	StartedAt  time.Time
	FinishedAt time.Time
	Tries      int
	Outcome    string `gorm:"size:32"`
	Error      string
}

// Booking is one confirmed reservation.
type Booking struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index;size:36"`
	Court     string
	Date      string `gorm:"size:10"` // YYYY-MM-DD
	Start     string `gorm:"size:5"`  // HH:MM
	TimeText  string
	CreatedAt time.Time
}

// Store wraps the embedded database. All methods are nil-safe so
// callers can carry a disabled store without guarding every call.
type Store struct {
	db *gorm.DB
}

// Open creates or migrates the database at path. An empty path returns
// a nil store, which records nothing.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Attempt{}, &Booking{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) RecordAttempt(a Attempt) error {
	if s == nil {
		return nil
	}
	return s.db.Create(&a).Error
}

func (s *Store) RecordBooking(b Booking) error {
	if s == nil {
		return nil
	}
	return s.db.Create(&b).Error
}

// RecentAttempts returns the newest attempts first.
func (s *Store) RecentAttempts(limit int) ([]Attempt, error) {
	if s == nil {
		return nil, nil
	}
	var out []Attempt
	err := s.db.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// RecentBookings returns the newest bookings first.
func (s *Store) RecentBookings(limit int) ([]Booking, error) {
	if s == nil {
		return nil, nil
	}
	var out []Booking
	err := s.db.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
