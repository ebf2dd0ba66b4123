// Package store provides storage backends for NutriPipe user profiles and meal logs.
//
// It includes an in-memory store for tests and SQLite/PostgreSQL stores whose
// sensitive profile columns are encrypted with a FieldCipher.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

var (
	// ErrProfileExists is returned when a profile for the identity is already stored.
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound is returned when no profile is stored for the identity.
	ErrProfileNotFound = errors.New("profile not found")
)

// StorageError wraps a backend failure (I/O, SQL or decryption) with the operation that hit it.
type StorageError struct {
	Op       string
	Identity string
	Err      error
}

func (e *StorageError) Error() string {
	if e.Identity == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Identity, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ProfileStore persists completed registrations and meal notes.
// Profiles are written once and never updated in place.
type ProfileStore interface {
	// Exists reports whether a profile is stored. Backend failures are logged
	// and reported as false so the user is routed to registration.
	Exists(ctx context.Context, identity string) bool
	// CreateProfile inserts a complete profile, or returns ErrProfileExists.
	CreateProfile(ctx context.Context, p models.UserProfile) error
	// GetProfile returns the decrypted profile, ErrProfileNotFound or a *StorageError.
	GetProfile(ctx context.Context, identity string) (*models.UserProfile, error)
	// ListIdentities returns every registered identity.
	ListIdentities(ctx context.Context) ([]string, error)
	// AddMeal appends a meal note.
	AddMeal(ctx context.Context, e models.MealLogEntry) error
	// ListMeals returns up to limit notes for identity, newest first. limit <= 0 means all.
	ListMeals(ctx context.Context, identity string, limit int) ([]models.MealLogEntry, error)
	// Close releases backend resources.
	Close() error
}

// FieldCipher seals sensitive columns before they reach the database.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Opts holds configuration for the SQL backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns the database/sql driver name for a DSN: "postgres" or "sqlite3".
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(d, "host=") && strings.Contains(d, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open chooses a backend for dsn. An empty dsn yields an in-memory store.
func Open(dsn string, fc FieldCipher) (ProfileStore, error) {
	if dsn == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(dsn) == "postgres" {
		return NewPostgresStore(fc, WithPostgresDSN(dsn))
	}
	return NewSQLiteStore(fc, WithSQLiteDSN(dsn))
}
