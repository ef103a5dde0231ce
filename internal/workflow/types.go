// Package workflow drives the capture, decode, lookup and autofill flows
// behind the maintenance check-in form.
package workflow

import (
	"context"
	"errors"
)

var (
	// ErrScanInProgress is returned when a scan is triggered while another is still in flight.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrSuperseded is returned when a newer identifier change replaced a pending lookup.
	ErrSuperseded = errors.New("lookup superseded by a newer identifier")
	// ErrTransport marks a failure talking to a remote service (network, status, malformed body).
	ErrTransport = errors.New("service call failed")
)

// CapturedFrame is one encoded still taken from a frame source.
// Data may be empty when the source has not produced any dimensions yet.
type CapturedFrame struct {
	Data     []byte
	Encoding string
}

// Empty reports whether the frame carries no image bytes.
func (f CapturedFrame) Empty() bool {
	return len(f.Data) == 0
}

// DecodeResult is the outcome of a decode request.
type DecodeResult struct {
	Found   bool
	Payload string
}

// RecordFields are the stored maintenance fields for a scanned code.
type RecordFields struct {
	Technician      string
	LastMaintenance string
}

// RecordLookupResult is the outcome of a record existence check.
type RecordLookupResult struct {
	Exists bool
	Fields RecordFields
}

// AssetFields are the checklist fields of a vehicle.
type AssetFields struct {
	Mileage            string
	TireCondition      string
	RimCondition       string
	ScratchDetails     string
	HeadlightCondition string
	OtherNotes         string
	LastUpdated        string
}

// AssetDetailResult is the outcome of an asset detail lookup.
type AssetDetailResult struct {
	Found  bool
	Fields AssetFields
	Reason string
}

// FrameSource produces still images from a live feed.
type FrameSource interface {
	Capture(ctx context.Context) (CapturedFrame, error)
}

// DecodeClient sends a still to the decode service.
type DecodeClient interface {
	Decode(ctx context.Context, frame CapturedFrame) (DecodeResult, error)
}

// RecordLookupClient asks whether a maintenance record exists for a payload.
type RecordLookupClient interface {
	LookupRecord(ctx context.Context, payload string) (RecordLookupResult, error)
}

// AssetDetailClient fetches vehicle checklist fields by identifier.
type AssetDetailClient interface {
	AssetDetail(ctx context.Context, identifier string) (AssetDetailResult, error)
}
