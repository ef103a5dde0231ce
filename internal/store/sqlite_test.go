package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/fleetscan/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "fleetscan.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func movement(qr string, action domain.Action, at time.Time) domain.Movement {
	return domain.Movement{
		QRCode:          qr,
		Technician:      "J. Perez",
		LastMaintenance: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Action:          action,
		At:              at,
	}
}

func TestSQLite_RegisterDepartureThenReturn(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	rec, err := s.GetRecordByQR(ctx, "ABC123")
	if err != nil || rec != nil {
		t.Fatalf("Expected no record yet, got %+v, %v", rec, err)
	}

	departed := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := s.RegisterMovement(ctx, movement("ABC123", domain.ActionDeparture, departed)); err != nil {
		t.Fatalf("RegisterMovement departure: %v", err)
	}

	rec, err = s.GetRecordByQR(ctx, "ABC123")
	if err != nil || rec == nil {
		t.Fatalf("GetRecordByQR: %+v, %v", rec, err)
	}
	if rec.Technician != "J. Perez" || rec.LastMaintenance != "2024-01-10T00:00:00" {
		t.Errorf("Unexpected record %+v", rec)
	}
	if rec.DepartedAt == nil || !rec.DepartedAt.Equal(departed) {
		t.Errorf("Expected departure %v, got %v", departed, rec.DepartedAt)
	}
	if rec.ReturnedAt != nil {
		t.Errorf("Expected no return yet, got %v", rec.ReturnedAt)
	}

	returned := departed.Add(6 * time.Hour)
	back := movement("ABC123", domain.ActionReturn, returned)
	back.Technician = "M. Lopez"
	if err := s.RegisterMovement(ctx, back); err != nil {
		t.Fatalf("RegisterMovement return: %v", err)
	}

	rec, err = s.GetRecordByQR(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetRecordByQR: %v", err)
	}
	if rec.Technician != "M. Lopez" {
		t.Errorf("Expected technician updated, got %q", rec.Technician)
	}
	if rec.ReturnedAt == nil || !rec.ReturnedAt.Equal(returned) {
		t.Errorf("Expected return %v, got %v", returned, rec.ReturnedAt)
	}

	records, err := s.ListRecords(ctx, 1000)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected one record after update, got %d", len(records))
	}
}

func TestSQLite_ReturnWithoutDeparture(t *testing.T) {
	s := newTestSQLite(t)
	err := s.RegisterMovement(context.Background(), movement("GHOST", domain.ActionReturn, time.Now()))
	if !errors.Is(err, ErrReturnWithoutDeparture) {
		t.Fatalf("Expected ErrReturnWithoutDeparture, got %v", err)
	}
	records, err := s.ListRecords(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected nothing inserted, got %d records", len(records))
	}
}

func TestSQLite_ListRecordsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	for _, qr := range []string{"A", "B", "C"} {
		if err := s.RegisterMovement(ctx, movement(qr, domain.ActionDeparture, time.Now())); err != nil {
			t.Fatalf("RegisterMovement %s: %v", qr, err)
		}
	}

	records, err := s.ListRecords(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 || records[0].QRCode != "A" || records[1].QRCode != "B" {
		t.Errorf("Expected first two records, got %+v", records)
	}
}

func TestSQLite_ChecklistUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	c, err := s.GetChecklist(ctx, "CAR-7")
	if err != nil || c != nil {
		t.Fatalf("Expected no checklist, got %+v, %v", c, err)
	}

	mileage := int64(120345)
	first := &domain.Checklist{
		CarNumber:     "CAR-7",
		Mileage:       &mileage,
		TireCondition: "good",
		UpdatedAt:     time.Date(2024, 3, 2, 10, 15, 0, 0, time.UTC),
	}
	if err := s.UpsertChecklist(ctx, first); err != nil {
		t.Fatalf("UpsertChecklist: %v", err)
	}

	second := &domain.Checklist{
		CarNumber:          "CAR-7",
		TireCondition:      "worn",
		HeadlightCondition: "cracked",
		UpdatedAt:          time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
	}
	if err := s.UpsertChecklist(ctx, second); err != nil {
		t.Fatalf("UpsertChecklist: %v", err)
	}

	got, err := s.GetChecklist(ctx, "CAR-7")
	if err != nil || got == nil {
		t.Fatalf("GetChecklist: %+v, %v", got, err)
	}
	if got.Mileage != nil {
		t.Errorf("Expected mileage cleared, got %d", *got.Mileage)
	}
	if got.TireCondition != "worn" || got.HeadlightCondition != "cracked" {
		t.Errorf("Unexpected checklist %+v", got)
	}
	if got.UpdatedAtString() != "2024-03-05 09:00:00" {
		t.Errorf("Unexpected update time %q", got.UpdatedAtString())
	}

	if err := s.UpsertChecklist(ctx, &domain.Checklist{CarNumber: "BUS-1", UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("UpsertChecklist: %v", err)
	}
	cars, err := s.ListCarNumbers(ctx)
	if err != nil {
		t.Fatalf("ListCarNumbers: %v", err)
	}
	if len(cars) != 2 || cars[0] != "BUS-1" || cars[1] != "CAR-7" {
		t.Errorf("Unexpected car numbers %v", cars)
	}
}

func TestSQLite_Ping(t *testing.T) {
	if err := newTestSQLite(t).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
