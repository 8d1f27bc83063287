package domain

// Record is an accountable interval of resource usage, keyed globally by
// RecordID. Meta, Components, StartTime and StopTime may all be absent;
// Runtime is derived (never set directly by a caller) whenever both
// StartTime and StopTime are present.
type Record struct {
	RecordID   ValidName
	Meta       Meta
	Components []Component
	StartTime  *Timestamp
	StopTime   *Timestamp
	Runtime    *int64
}

// NewRecord builds the minimal Record: an identity and nothing else. Use the
// With* methods to attach the optional fields.
func NewRecord(id ValidName) Record {
	return Record{RecordID: id, Meta: NewMeta()}
}

// WithMeta returns a copy of r with meta attached.
func (r Record) WithMeta(meta Meta) Record {
	r.Meta = meta
	return r
}

// WithComponents returns a copy of r with components attached, replacing any
// previous ones.
func (r Record) WithComponents(components ...Component) Record {
	r.Components = append([]Component(nil), components...)
	return r
}

// WithStartTime returns a copy of r with StartTime set and Runtime
// recomputed if StopTime is also present.
func (r Record) WithStartTime(t Timestamp) Record {
	r.StartTime = &t
	r.recomputeRuntime()
	return r
}

// WithStopTime returns a copy of r with StopTime set and Runtime recomputed
// if StartTime is also present. This is the field update() is allowed to
// change in place (§3.5, §9 open question: match on record_id only).
func (r Record) WithStopTime(t Timestamp) Record {
	r.StopTime = &t
	r.recomputeRuntime()
	return r
}

func (r *Record) recomputeRuntime() {
	if r.StartTime == nil || r.StopTime == nil {
		return
	}
	seconds := int64(r.StopTime.Sub(*r.StartTime).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	r.Runtime = &seconds
}

// Equal reports whether r and other are equivalent per §4.1: score order
// within a component is ignored, an absent component list is equivalent to
// an empty one, and meta value-sequence order is significant.
func (r Record) Equal(other Record) bool {
	if r.RecordID != other.RecordID {
		return false
	}
	if !r.Meta.Equal(other.Meta) {
		return false
	}
	if !timePtrEqual(r.StartTime, other.StartTime) || !timePtrEqual(r.StopTime, other.StopTime) {
		return false
	}
	if !int64PtrEqual(r.Runtime, other.Runtime) {
		return false
	}
	if len(r.Components) != len(other.Components) {
		return false
	}
	for i := range r.Components {
		if !r.Components[i].Equal(other.Components[i]) {
			return false
		}
	}
	return true
}

func timePtrEqual(a, b *Timestamp) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Time().Equal(b.Time())
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
