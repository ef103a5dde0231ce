// Package domain contains core domain types for the fleetscan application.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Action is the kind of vehicle movement being registered.
type Action string

const (
	// ActionDeparture registers a vehicle leaving with a technician.
	ActionDeparture Action = "Salida"
	// ActionReturn registers a vehicle coming back.
	ActionReturn Action = "Regreso"
)

// ParseAction validates a movement action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.TrimSpace(s)); a {
	case ActionDeparture, ActionReturn:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// TimestampLayout is the ISO layout used for stored timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

// maintenanceLayouts are the accepted input forms of a maintenance date.
var maintenanceLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseMaintenanceTime parses an ISO date or datetime without zone.
func ParseMaintenanceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range maintenanceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid maintenance timestamp %q", s)
}

// Record is a maintenance/movement record keyed by a scanned QR code.
type Record struct {
	ID              int64      `json:"id"`
	QRCode          string     `json:"qr_code"`
	Technician      string     `json:"nombre_tecnico"`
	LastMaintenance string     `json:"ultimo_mantenimiento"`
	DepartedAt      *time.Time `json:"salida,omitempty"`
	ReturnedAt      *time.Time `json:"regreso,omitempty"`
}

// Movement is a request to register a departure or return.
type Movement struct {
	QRCode          string
	Technician      string
	LastMaintenance time.Time
	Action          Action
	At              time.Time
}
