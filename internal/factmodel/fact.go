package factmodel

import "time"

// FactID uniquely identifies a fact for its lifetime in the store. IDs are
// strictly monotonic and never reused.
type FactID uint64

// Fact is a logically immutable record. "Updating" a fact means the store
// produces a new Fact value with the same ID and replaced fields — callers
// never mutate a Fact in place.
type Fact struct {
	ID         FactID           `json:"id"`
	ExternalID string           `json:"externalId,omitempty"` // empty means "not set"
	Timestamp  time.Time        `json:"timestamp"`
	Fields     map[string]Value `json:"fields"`
}

// Get returns the value bound to field, and whether the field was present.
// Absent fields are not an error: condition evaluation treats them as a
// non-match.
func (f *Fact) Get(field string) (Value, bool) {
	v, ok := f.Fields[field]
	return v, ok
}

// WithFields returns a new Fact with the same ID and external ID, whose
// Fields is the result of applying the given patch on top of a copy of the
// current fields. The receiver is left untouched.
func (f *Fact) WithFields(patch map[string]Value) Fact {
	merged := make(map[string]Value, len(f.Fields)+len(patch))
	for k, v := range f.Fields {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return Fact{
		ID:         f.ID,
		ExternalID: f.ExternalID,
		Timestamp:  f.Timestamp,
		Fields:     merged,
	}
}
