package domain

import (
	"strconv"
	"time"
)

// UpdatedAtLayout is the layout of the checklist "last updated" timestamp.
const UpdatedAtLayout = "2006-01-02 15:04:05"

// Checklist holds the inspection state of one vehicle.
type Checklist struct {
	CarNumber          string
	Mileage            *int64
	TireCondition      string
	RimCondition       string
	ScratchDetails     string
	HeadlightCondition string
	OtherNotes         string
	UpdatedAt          time.Time
}

// MileageString renders the mileage. Unknown and zero mileage both render as "".
func (c *Checklist) MileageString() string {
	if c.Mileage == nil || *c.Mileage == 0 {
		return ""
	}
	return strconv.FormatInt(*c.Mileage, 10)
}

// UpdatedAtString renders the last update time, or "" when unset.
func (c *Checklist) UpdatedAtString() string {
	if c.UpdatedAt.IsZero() {
		return ""
	}
	return c.UpdatedAt.UTC().Format(UpdatedAtLayout)
}
