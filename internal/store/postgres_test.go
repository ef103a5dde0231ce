package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ashureev/fleetscan/internal/domain"
)

// Integration test; runs only when TEST_DATABASE_URL points at a scratch database.
func TestPostgres_MovementsAndChecklist(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("database unavailable: %v", err)
	}
	defer s.Close()

	if _, err := s.pool.Exec(ctx, "TRUNCATE registros_autos, checklist_autos"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if err := s.RegisterMovement(ctx, movement("PG-1", domain.ActionReturn, time.Now())); !errors.Is(err, ErrReturnWithoutDeparture) {
		t.Fatalf("Expected ErrReturnWithoutDeparture, got %v", err)
	}
	if err := s.RegisterMovement(ctx, movement("PG-1", domain.ActionDeparture, time.Now())); err != nil {
		t.Fatalf("RegisterMovement: %v", err)
	}
	rec, err := s.GetRecordByQR(ctx, "PG-1")
	if err != nil || rec == nil {
		t.Fatalf("GetRecordByQR: %+v, %v", rec, err)
	}
	if rec.Technician != "J. Perez" || rec.DepartedAt == nil {
		t.Errorf("Unexpected record %+v", rec)
	}

	mileage := int64(500)
	if err := s.UpsertChecklist(ctx, &domain.Checklist{CarNumber: "CAR-PG", Mileage: &mileage, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("UpsertChecklist: %v", err)
	}
	c, err := s.GetChecklist(ctx, "CAR-PG")
	if err != nil || c == nil {
		t.Fatalf("GetChecklist: %+v, %v", c, err)
	}
	if c.MileageString() != "500" {
		t.Errorf("Expected mileage 500, got %q", c.MileageString())
	}
	cars, err := s.ListCarNumbers(ctx)
	if err != nil || len(cars) != 1 {
		t.Errorf("ListCarNumbers: %v, %v", cars, err)
	}
}
