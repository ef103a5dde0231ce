package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/fleetscan/internal/metrics"
	"github.com/google/uuid"
)

// ScanOutcome classifies how a scan flow resolved.
type ScanOutcome string

const (
	ScanCaptureFailed ScanOutcome = "capture_failed"
	ScanDecodeFailed  ScanOutcome = "decode_failed"
	ScanNoCode        ScanOutcome = "no_code"
	ScanLookupFailed  ScanOutcome = "lookup_failed"
	ScanExisting      ScanOutcome = "existing"
	ScanNew           ScanOutcome = "new"
)

// ScanSession is the state of one scan attempt. It is discarded once RunScan returns.
type ScanSession struct {
	ID      string
	Outcome ScanOutcome
	Payload string
	Message string
	// Patch accumulates every slot write applied during the flow.
	Patch Patch
	// Err holds the swallowed capture or transport failure, if any.
	Err error
}

// ScanOrchestrator turns one scan trigger into a resolved form state.
// Only one scan runs at a time; triggers arriving meanwhile are rejected.
type ScanOrchestrator struct {
	frames  FrameSource
	decoder DecodeClient
	records RecordLookupClient
	form    Form
	logger  *slog.Logger
	busy    sync.Mutex
}

// NewScanOrchestrator creates a scan orchestrator writing into form.
func NewScanOrchestrator(frames FrameSource, decoder DecodeClient, records RecordLookupClient, form Form, logger *slog.Logger) *ScanOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanOrchestrator{
		frames:  frames,
		decoder: decoder,
		records: records,
		form:    form,
		logger:  logger,
	}
}

// RunScan captures a still, decodes it and, when a code is found, loads the
// existing record for it. It returns ErrScanInProgress without side effects
// when another scan is still running. Capture and transport failures are
// logged and reported in the session, never returned.
func (o *ScanOrchestrator) RunScan(ctx context.Context) (ScanSession, error) {
	if !o.busy.TryLock() {
		o.logger.Warn("Scan already in progress, trigger rejected")
		return ScanSession{}, ErrScanInProgress
	}
	defer o.busy.Unlock()

	s := &ScanSession{ID: uuid.NewString(), Patch: Patch{}}
	logger := o.logger.With("scan_id", s.ID)

	o.run(ctx, s, logger)

	metrics.ObserveScan(string(s.Outcome))
	logger.Info("Scan resolved", "outcome", s.Outcome, "payload", s.Payload)
	return *s, nil
}

func (o *ScanOrchestrator) run(ctx context.Context, s *ScanSession, logger *slog.Logger) {
	frame, err := o.frames.Capture(ctx)
	if err != nil {
		logger.Error("Frame capture failed", "error", err)
		s.Outcome, s.Err = ScanCaptureFailed, err
		return
	}
	if frame.Empty() {
		// The camera may not be ready; the decode service decides.
		logger.Debug("Captured an empty frame")
	}

	decoded, err := o.decoder.Decode(ctx, frame)
	if err != nil {
		logger.Error("Decode request failed", "error", err)
		s.Outcome, s.Err = ScanDecodeFailed, err
		return
	}
	if !decoded.Found {
		s.Outcome = ScanNoCode
		s.Message = MsgNoCode
		o.apply(s, Patch{FieldMessage: s.Message})
		return
	}

	s.Payload = decoded.Payload
	s.Message = MsgDetectedPrefix + decoded.Payload
	o.apply(s, Patch{FieldMessage: s.Message, FieldQRData: decoded.Payload})
	logger.Debug("QR code detected", "payload", decoded.Payload)

	record, err := o.records.LookupRecord(ctx, decoded.Payload)
	if err != nil {
		logger.Error("Record lookup failed", "error", err, "payload", decoded.Payload)
		s.Outcome, s.Err = ScanLookupFailed, err
		return
	}

	if record.Exists {
		s.Outcome = ScanExisting
		s.Message += MsgExistingSuffix
		o.apply(s, Patch{
			FieldTechnician:      record.Fields.Technician,
			FieldLastMaintenance: record.Fields.LastMaintenance,
			FieldMessage:         s.Message,
		})
		return
	}

	s.Outcome = ScanNew
	s.Message += MsgNewSuffix
	o.apply(s, Patch{
		FieldTechnician:      "",
		FieldLastMaintenance: "",
		FieldMessage:         s.Message,
	})
}

func (o *ScanOrchestrator) apply(s *ScanSession, patch Patch) {
	s.Patch.Merge(patch)
	o.form.Apply(patch)
}
