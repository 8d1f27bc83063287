package domain

import (
	"encoding/json"
)

// recordJSON is the canonical textual wire form of a Record (§3.5, §4.1):
// a self-describing object using the field names of the spec.
type recordJSON struct {
	RecordID   string                 `json:"record_id"`
	Meta       map[string][]string    `json:"meta,omitempty"`
	Components []componentJSON        `json:"components,omitempty"`
	StartTime  *Timestamp             `json:"start_time,omitempty"`
	StopTime   *Timestamp             `json:"stop_time,omitempty"`
	Runtime    *int64                 `json:"runtime,omitempty"`
}

// MarshalJSON encodes r in the canonical textual form.
func (r Record) MarshalJSON() ([]byte, error) {
	w := recordJSON{
		RecordID:  r.RecordID.String(),
		StartTime: r.StartTime,
		StopTime:  r.StopTime,
		Runtime:   r.Runtime,
	}
	if r.Meta.Len() > 0 {
		w.Meta = make(map[string][]string, r.Meta.Len())
		for _, k := range r.Meta.Keys() {
			values, _ := r.Meta.Get(k)
			strs := make([]string, len(values))
			for i, v := range values {
				strs[i] = v.String()
			}
			w.Meta[k.String()] = strs
		}
	}
	if len(r.Components) > 0 {
		w.Components = make([]componentJSON, len(r.Components))
		for i, c := range r.Components {
			cj := componentJSON{Name: c.Name.String(), Amount: c.Amount.Uint64()}
			if len(c.Scores) > 0 {
				cj.Scores = make([]scoreJSON, len(c.Scores))
				for j, s := range c.Scores {
					cj.Scores[j] = scoreJSON{Name: s.Name.String(), Value: s.Value.Float64()}
				}
			}
			w.Components[i] = cj
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes data from the canonical textual form, re-validating
// every primitive per §3.1's "all on-the-wire forms must re-validate on
// decode" contract.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := ParseValidName(w.RecordID)
	if err != nil {
		return err
	}

	out := NewRecord(id)

	if len(w.Meta) > 0 {
		meta := NewMeta()
		for k, values := range w.Meta {
			key, err := ParseValidName(k)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return newValidationError("meta", k, "value sequence must not be empty")
			}
			names := make([]ValidName, len(values))
			for i, v := range values {
				n, err := ParseValidName(v)
				if err != nil {
					return err
				}
				names[i] = n
			}
			meta.Set(key, names...)
		}
		out.Meta = meta
	}

	if len(w.Components) > 0 {
		components := make([]Component, len(w.Components))
		for i, cj := range w.Components {
			name, err := ParseValidName(cj.Name)
			if err != nil {
				return err
			}
			amount, err := ParseValidAmount(int64(cj.Amount))
			if err != nil {
				return err
			}
			var scores []Score
			if len(cj.Scores) > 0 {
				scores = make([]Score, len(cj.Scores))
				for j, sj := range cj.Scores {
					sname, err := ParseValidName(sj.Name)
					if err != nil {
						return err
					}
					sval, err := ParseValidValue(sj.Value)
					if err != nil {
						return err
					}
					scores[j] = NewScore(sname, sval)
				}
			}
			components[i] = NewComponent(name, amount, scores)
		}
		out.Components = components
	}

	out.StartTime = w.StartTime
	out.StopTime = w.StopTime
	out.Runtime = w.Runtime

	*r = out
	return nil
}
