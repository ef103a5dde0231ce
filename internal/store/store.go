// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/fleetscan/internal/domain"
)

// ErrReturnWithoutDeparture is returned when a return is registered for a
// QR code that has no record yet.
var ErrReturnWithoutDeparture = errors.New("cannot register a return without a departure")

// Repository defines the interface for persisting maintenance records and checklists.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// GetRecordByQR returns the record for a QR code, or nil if there is none.
	GetRecordByQR(ctx context.Context, qrCode string) (*domain.Record, error)

	// RegisterMovement records a departure or return for a QR code.
	// A departure for an unknown code creates the record; a return for an
	// unknown code fails with ErrReturnWithoutDeparture.
	RegisterMovement(ctx context.Context, m domain.Movement) error

	// ListRecords returns at most limit records, oldest first.
	ListRecords(ctx context.Context, limit int) ([]*domain.Record, error)

	// GetChecklist returns the checklist for a car, or nil if there is none.
	GetChecklist(ctx context.Context, carNumber string) (*domain.Checklist, error)

	// UpsertChecklist creates or replaces the checklist for a car.
	UpsertChecklist(ctx context.Context, c *domain.Checklist) error

	// ListCarNumbers returns every car number with a checklist.
	ListCarNumbers(ctx context.Context) ([]string, error)
}

// movementColumn is the timestamp column a movement action writes.
func movementColumn(a domain.Action) string {
	if a == domain.ActionReturn {
		return "regreso"
	}
	return "salida"
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(domain.TimestampLayout)
}

// parseTimestamp reads a stored movement timestamp. Unparseable legacy
// values are dropped rather than failing the whole read.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(domain.TimestampLayout, s)
	if err != nil {
		slog.Debug("Ignoring unparseable stored timestamp", "value", s, "error", err)
		return nil
	}
	return &t
}

func parseUpdatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(domain.UpdatedAtLayout, s)
	if err != nil {
		slog.Debug("Ignoring unparseable checklist timestamp", "value", s, "error", err)
		return time.Time{}
	}
	return t
}

var (
	_ Repository = (*SQLiteStore)(nil)
	_ Repository = (*PostgresStore)(nil)
)

// Open returns a PostgreSQL repository when databaseURL is set and a SQLite
// repository at dbPath otherwise.
func Open(ctx context.Context, databaseURL, dbPath string) (Repository, error) {
	if databaseURL != "" {
		pg, err := NewPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := NewSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return lite, nil
}
