package domain

import (
	"testing"
	"time"
)

func TestChecklist_MileageString(t *testing.T) {
	zero := int64(0)
	value := int64(42000)

	tests := []struct {
		name    string
		mileage *int64
		want    string
	}{
		{"unknown", nil, ""},
		{"zero", &zero, ""},
		{"value", &value, "42000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Checklist{Mileage: tt.mileage}
			if got := c.MileageString(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestChecklist_UpdatedAtString(t *testing.T) {
	c := &Checklist{}
	if got := c.UpdatedAtString(); got != "" {
		t.Errorf("Expected empty timestamp, got %q", got)
	}

	c.UpdatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CST", -6*3600))
	if got := c.UpdatedAtString(); got != "2024-03-01 16:00:00" {
		t.Errorf("Expected UTC timestamp 2024-03-01 16:00:00, got %q", got)
	}
}
