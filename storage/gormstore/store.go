package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Open connects to driver ("postgres" or "sqlite") at dsn.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, ok := dialector.(*sqlite.Dialector); ok {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get SQL DB: %w", err)
		}
		// one connection keeps :memory: databases shared and writes serialized
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Store implements rsvp.Store and rsvp.GuestDirectory on a gorm handle.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New wraps db. Call Migrate before first use.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the rsvps, guests and user_activity tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&rsvpRow{}, &guestRow{}, &activityRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetRSVP returns rsvp.ErrNotFound when no row exists for subject.
func (s *Store) GetRSVP(ctx context.Context, subject string) (rsvp.Record, error) {
	var row rsvpRow
	err := s.db.WithContext(ctx).Where("email = ?", subject).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rsvp.Record{}, rsvp.ErrNotFound
	}
	if err != nil {
		return rsvp.Record{}, err
	}
	return rsvp.Record{
		Status:       rsvp.Status(row.Status),
		DietaryNotes: row.DietaryNotes,
		SongRequest:  row.SongRequest,
	}, nil
}

// UpsertRSVP replaces the subject's record in one statement.
func (s *Store) UpsertRSVP(ctx context.Context, subject string, record rsvp.Record) error {
	row := rsvpRow{
		Email:        subject,
		Status:       string(record.Status),
		DietaryNotes: record.DietaryNotes,
		SongRequest:  record.SongRequest,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "dietary_notes", "song_request", "updated_at"}),
	}).Create(&row).Error
}

// LookupGuest matches email case-insensitively against the guests table.
func (s *Store) LookupGuest(ctx context.Context, email string) (rsvp.Guest, error) {
	var row guestRow
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rsvp.Guest{}, rsvp.ErrNotFound
	}
	if err != nil {
		return rsvp.Guest{}, err
	}
	return rsvp.Guest{Email: row.Email, Name: row.FirstName}, nil
}

// AddGuest invites email. Adding an existing guest updates the name.
func (s *Store) AddGuest(ctx context.Context, email, firstName, lastName string) error {
	email = normalizeEmail(email)
	if email == "" {
		return rsvp.ErrValidation
	}
	row := guestRow{Email: email, FirstName: firstName, LastName: lastName}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name"}),
	}).Create(&row).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
