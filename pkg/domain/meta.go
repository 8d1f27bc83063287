package domain

// Meta is an ordered mapping from a ValidName key to a non-empty, order-
// significant sequence of ValidName values, e.g. {"site_id": ["site_1"]}.
// Keys are unique; insertion order of keys is preserved for stable
// serialization but is not itself semantically significant. Value order
// within a key IS significant (§3.4).
type Meta struct {
	keys   []ValidName
	values map[ValidName][]ValidName
}

// NewMeta builds an empty Meta ready for Set calls.
func NewMeta() Meta {
	return Meta{values: make(map[ValidName][]ValidName)}
}

// Set assigns values to key, overwriting any previous values for that key.
// values must be non-empty; Set panics otherwise, since the domain model
// does not allow constructing a Meta with an empty value sequence.
func (m *Meta) Set(key ValidName, values ...ValidName) {
	if len(values) == 0 {
		panic("domain: Meta.Set requires at least one value")
	}
	if m.values == nil {
		m.values = make(map[ValidName][]ValidName)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append([]ValidName(nil), values...)
}

// Get returns the value sequence for key and whether key is present.
func (m Meta) Get(key ValidName) ([]ValidName, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys of m in insertion order.
func (m Meta) Keys() []ValidName {
	return append([]ValidName(nil), m.keys...)
}

// Len reports the number of keys in m.
func (m Meta) Len() int { return len(m.keys) }

// Equal reports whether m and other have the same keys, each mapping to the
// same ordered value sequence.
func (m Meta) Equal(other Meta) bool {
	if m.Len() != other.Len() {
		return false
	}
	for k, v := range m.values {
		ov, ok := other.values[k]
		if !ok || len(v) != len(ov) {
			return false
		}
		for i := range v {
			if v[i] != ov[i] {
				return false
			}
		}
	}
	return true
}
