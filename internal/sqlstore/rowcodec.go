package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/auditor-project/auditor/pkg/domain"
)

// metaJSON/componentJSON/scoreJSON are the JSONB column shapes for the
// "meta" and "components" columns. They are deliberately distinct from
// domain's own wire codec (codec_json.go): that one is the public record
// envelope; this one is a storage-internal representation chosen to make
// the §4.3.1 meta/component predicates expressible as Postgres jsonb
// operators (jsonb_array_elements, @>) in internal/query's compiled SQL.
type scoreJSON struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type componentJSON struct {
	Name   string      `json:"name"`
	Amount uint64      `json:"amount"`
	Scores []scoreJSON `json:"scores"`
}

func encodeMeta(m domain.Meta) ([]byte, error) {
	out := make(map[string][]string, m.Len())
	for _, k := range m.Keys() {
		values, _ := m.Get(k)
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = v.String()
		}
		out[k.String()] = strs
	}
	return json.Marshal(out)
}

func decodeMeta(data []byte) (domain.Meta, error) {
	m := domain.NewMeta()
	if len(data) == 0 {
		return m, nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Meta{}, fmt.Errorf("sqlstore: decode meta column: %w", err)
	}
	for k, values := range raw {
		key, err := domain.ParseValidName(k)
		if err != nil {
			return domain.Meta{}, err
		}
		names := make([]domain.ValidName, len(values))
		for i, v := range values {
			n, err := domain.ParseValidName(v)
			if err != nil {
				return domain.Meta{}, err
			}
			names[i] = n
		}
		m.Set(key, names...)
	}
	return m, nil
}

func encodeComponents(components []domain.Component) ([]byte, error) {
	out := make([]componentJSON, len(components))
	for i, c := range components {
		cj := componentJSON{Name: c.Name.String(), Amount: c.Amount.Uint64()}
		for _, s := range c.Scores {
			cj.Scores = append(cj.Scores, scoreJSON{Name: s.Name.String(), Value: s.Value.Float64()})
		}
		out[i] = cj
	}
	return json.Marshal(out)
}

func decodeComponents(data []byte) ([]domain.Component, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []componentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sqlstore: decode components column: %w", err)
	}
	out := make([]domain.Component, len(raw))
	for i, cj := range raw {
		name, err := domain.ParseValidName(cj.Name)
		if err != nil {
			return nil, err
		}
		amount, err := domain.ParseValidAmount(int64(cj.Amount))
		if err != nil {
			return nil, err
		}
		var scores []domain.Score
		for _, sj := range cj.Scores {
			sname, err := domain.ParseValidName(sj.Name)
			if err != nil {
				return nil, err
			}
			sval, err := domain.ParseValidValue(sj.Value)
			if err != nil {
				return nil, err
			}
			scores = append(scores, domain.NewScore(sname, sval))
		}
		out[i] = domain.NewComponent(name, amount, scores)
	}
	return out, nil
}
