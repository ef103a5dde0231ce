package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/fleetscan/internal/metrics"
	"github.com/google/uuid"
)

// LookupOutcome classifies how an identifier lookup resolved.
type LookupOutcome string

const (
	LookupSkipped    LookupOutcome = "skipped"
	LookupFound      LookupOutcome = "found"
	LookupMissing    LookupOutcome = "missing"
	LookupFailed     LookupOutcome = "failed"
	LookupSuperseded LookupOutcome = "superseded"
)

// LookupSession is the state of one identifier change event.
type LookupSession struct {
	ID         string
	Identifier string
	Outcome    LookupOutcome
	Reason     string
	Patch      Patch
	Err        error
}

// LookupOrchestrator autofills vehicle checklist slots when the identifier changes.
// The latest change wins: a newer identifier cancels the pending request and
// any late response for the older one is dropped.
type LookupOrchestrator struct {
	assets AssetDetailClient
	form   Form
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewLookupOrchestrator creates a lookup orchestrator writing into form.
func NewLookupOrchestrator(assets AssetDetailClient, form Form, logger *slog.Logger) *LookupOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LookupOrchestrator{assets: assets, form: form, logger: logger}
}

// OnIdentifierChanged fetches the asset details for identifier and writes them
// into the form. An empty identifier is a no-op. It returns ErrSuperseded when
// a newer change replaced this one before the response arrived.
func (o *LookupOrchestrator) OnIdentifierChanged(ctx context.Context, identifier string) (LookupSession, error) {
	s := LookupSession{Identifier: strings.TrimSpace(identifier), Patch: Patch{}}
	if s.Identifier == "" {
		s.Outcome = LookupSkipped
		return s, nil
	}
	s.ID = uuid.NewString()
	logger := o.logger.With("lookup_id", s.ID, "identifier", s.Identifier)

	reqCtx, seq := o.begin(ctx)
	defer o.end(seq)

	result, err := o.assets.AssetDetail(reqCtx, s.Identifier)

	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case seq != o.seq:
		logger.Debug("Dropping stale asset detail response")
		s.Outcome, s.Err = LookupSuperseded, ErrSuperseded
	case err != nil:
		logger.Error("Asset detail request failed", "error", err)
		s.Outcome, s.Err = LookupFailed, err
	case !result.Found:
		logger.Info("Asset not found", "reason", result.Reason)
		s.Outcome, s.Reason = LookupMissing, result.Reason
	default:
		s.Outcome = LookupFound
		s.Patch = assetPatch(result.Fields)
		o.form.Apply(s.Patch)
	}

	metrics.ObserveLookup(string(s.Outcome))
	if s.Outcome == LookupSuperseded {
		return s, ErrSuperseded
	}
	return s, nil
}

func (o *LookupOrchestrator) begin(ctx context.Context) (context.Context, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.seq++
	reqCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	return reqCtx, o.seq
}

func (o *LookupOrchestrator) end(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq == o.seq && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func assetPatch(f AssetFields) Patch {
	return Patch{
		FieldMileage:            f.Mileage,
		FieldTireCondition:      f.TireCondition,
		FieldRimCondition:       f.RimCondition,
		FieldScratchDetails:     f.ScratchDetails,
		FieldHeadlightCondition: f.HeadlightCondition,
		FieldOtherNotes:         f.OtherNotes,
		FieldLastUpdate:         MsgLastUpdated + f.LastUpdated,
	}
}
