// Package store persists tenants, maintenance requests, viewings and
// onboarding status with GORM. Timestamps are written as UTC.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appLog "nyumbacal/internal/log"
)

// Open connects to the database. driver is "postgres" or "sqlite"; for
// sqlite the dsn is a file path (or ":memory:").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg":
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// Store is the data layer used by the web server, feed importer and CLI.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the store uses.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&TenantGORM{},
		&MaintenanceGORM{},
		&ViewingGORM{},
		&OnboardingGORM{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	appLog.Debug("database migrated")
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type hasModel interface {
	base() *gorm.Model
}

// upsertBy updates the row whose column equals key, or creates it. The
// surrogate ID and CreatedAt of an existing row are preserved.
func upsertBy[T any, P interface {
	*T
	hasModel
}](tx *gorm.DB, column, key string, row P) (created bool, err error) {
	var existing T
	err = tx.Where(column+" = ?", key).Take(&existing).Error
	if isNotFound(err) {
		return true, tx.Create(row).Error
	}
	if err != nil {
		return false, err
	}
	prev := P(&existing).base()
	row.base().ID = prev.ID
	row.base().CreatedAt = prev.CreatedAt
	return false, tx.Save(row).Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func utcPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
