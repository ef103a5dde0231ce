package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite busy text", errors.New("sqlite: step: SQLITE_BUSY"), true},
		{"sqlite locked text", fmt.Errorf("exec: %w", errors.New("database is locked (5)")), true},
		{"unrelated", errors.New("no such table"), false},
		{"pg serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflictError(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
