// Package store persists subjects, tiers, submissions and results via GORM.
//
// Soft-deleted rows stay in their tables with deleted_at set. Every read path
// applies Visible explicitly; there is no global filter.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the row is missing or soft-deleted.
	ErrNotFound = errors.New("store: not found")
	// ErrNotPending indicates a terminal transition was attempted on a settled submission.
	ErrNotPending = errors.New("store: submission is not pending")
	// ErrNotInitialized indicates a nil store or connection.
	ErrNotInitialized = errors.New("store: not initialized")
)

// Store is the GORM-backed result store.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Visible restricts a query to rows of table that are not soft-deleted.
func Visible(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s.deleted_at IS NULL", table))
	}
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
