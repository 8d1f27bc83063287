package domain

import (
	"bytes"
	"encoding/gob"
)

// binaryComponent/binaryScore/binaryEnvelope mirror Record's shape with
// plain exported fields so gob can encode/decode them without reflecting
// into the validated types' unexported state.
type binaryScore struct {
	Name  string
	Value float64
}

type binaryComponent struct {
	Name   string
	Amount uint64
	Scores []binaryScore
}

type binaryEnvelope struct {
	RecordID   string
	MetaKeys   []string
	MetaValues [][]string
	Components []binaryComponent
	StartTime  *int64 // unix milli
	StopTime   *int64
	Runtime    *int64
}

// MarshalBinary encodes r in the compact form used by the queued client's
// on-disk buffer (§4.1, §4.6).
func (r Record) MarshalBinary() ([]byte, error) {
	env := binaryEnvelope{RecordID: r.RecordID.String(), Runtime: r.Runtime}

	for _, k := range r.Meta.Keys() {
		values, _ := r.Meta.Get(k)
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = v.String()
		}
		env.MetaKeys = append(env.MetaKeys, k.String())
		env.MetaValues = append(env.MetaValues, strs)
	}

	for _, c := range r.Components {
		bc := binaryComponent{Name: c.Name.String(), Amount: c.Amount.Uint64()}
		for _, s := range c.Scores {
			bc.Scores = append(bc.Scores, binaryScore{Name: s.Name.String(), Value: s.Value.Float64()})
		}
		env.Components = append(env.Components, bc)
	}

	if r.StartTime != nil {
		ms := r.StartTime.UnixMilli()
		env.StartTime = &ms
	}
	if r.StopTime != nil {
		ms := r.StopTime.UnixMilli()
		env.StopTime = &ms
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary, re-validating every
// primitive.
func (r *Record) UnmarshalBinary(data []byte) error {
	var env binaryEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return err
	}

	id, err := ParseValidName(env.RecordID)
	if err != nil {
		return err
	}
	out := NewRecord(id)

	if len(env.MetaKeys) > 0 {
		meta := NewMeta()
		for i, k := range env.MetaKeys {
			key, err := ParseValidName(k)
			if err != nil {
				return err
			}
			raw := env.MetaValues[i]
			names := make([]ValidName, len(raw))
			for j, v := range raw {
				n, err := ParseValidName(v)
				if err != nil {
					return err
				}
				names[j] = n
			}
			meta.Set(key, names...)
		}
		out.Meta = meta
	}

	if len(env.Components) > 0 {
		components := make([]Component, len(env.Components))
		for i, bc := range env.Components {
			name, err := ParseValidName(bc.Name)
			if err != nil {
				return err
			}
			amount, err := ParseValidAmount(int64(bc.Amount))
			if err != nil {
				return err
			}
			var scores []Score
			for _, bs := range bc.Scores {
				sname, err := ParseValidName(bs.Name)
				if err != nil {
					return err
				}
				sval, err := ParseValidValue(bs.Value)
				if err != nil {
					return err
				}
				scores = append(scores, NewScore(sname, sval))
			}
			components[i] = NewComponent(name, amount, scores)
		}
		out.Components = components
	}

	if env.StartTime != nil {
		t := TimestampFromUnixMilli(*env.StartTime)
		out.StartTime = &t
	}
	if env.StopTime != nil {
		t := TimestampFromUnixMilli(*env.StopTime)
		out.StopTime = &t
	}
	out.Runtime = env.Runtime

	*r = out
	return nil
}
