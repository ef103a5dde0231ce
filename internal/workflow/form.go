package workflow

import (
	"maps"
	"sync"
)

// Field names a slot in the presentation layer.
type Field string

// Slots written by the scan flow.
const (
	FieldMessage         Field = "mensaje"
	FieldQRData          Field = "qr_data"
	FieldTechnician      Field = "nombre_persona"
	FieldLastMaintenance Field = "ultimo_mantenimiento"
)

// Slots written by the identifier lookup flow.
const (
	FieldMileage            Field = "kilometraje"
	FieldTireCondition      Field = "estado_llantas"
	FieldRimCondition       Field = "estado_rines"
	FieldScratchDetails     Field = "detalles_raspones"
	FieldHeadlightCondition Field = "estado_faros"
	FieldOtherNotes         Field = "otros_detalles"
	FieldLastUpdate         Field = "lastUpdate"
)

// User-visible messages.
const (
	MsgNoCode         = "no QR code detected"
	MsgDetectedPrefix = "QR detected: "
	MsgExistingSuffix = " (existing data loaded)"
	MsgNewSuffix      = " (new QR, enter data)"
	MsgLastUpdated    = "last updated: "
)

// Patch is a set of slot writes. Slots absent from the patch are left untouched.
type Patch map[Field]string

// Merge copies every write of other into p.
func (p Patch) Merge(other Patch) {
	maps.Copy(p, other)
}

// Form receives slot writes from an orchestrator.
type Form interface {
	Apply(patch Patch)
}

// FormState is an in-memory Form. It is safe for concurrent use.
type FormState struct {
	mu     sync.Mutex
	values map[Field]string
	writes int
}

// NewFormState returns a form pre-seeded with the given values.
func NewFormState(seed Patch) *FormState {
	values := make(map[Field]string, len(seed))
	maps.Copy(values, seed)
	return &FormState{values: values}
}

// Apply implements Form.
func (f *FormState) Apply(patch Patch) {
	if len(patch) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range patch {
		f.values[k] = v
		f.writes++
	}
}

// Get returns the current value of a slot.
func (f *FormState) Get(field Field) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

// Writes returns the number of slot writes applied so far.
func (f *FormState) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Snapshot returns a copy of every slot value.
func (f *FormState) Snapshot() map[Field]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.values)
}
