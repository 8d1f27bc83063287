package domain

import "sort"

// Component is a named, counted resource within a Record, optionally
// weighted by one or more Scores. The component name need not be unique
// within a Record -- two "CPU" components are legal, if discouraged.
type Component struct {
	Name   ValidName
	Amount ValidAmount
	Scores []Score
}

// NewComponent builds a Component from already-validated parts. scores may be
// nil or empty.
func NewComponent(name ValidName, amount ValidAmount, scores []Score) Component {
	c := Component{Name: name, Amount: amount}
	if len(scores) > 0 {
		c.Scores = append([]Score(nil), scores...)
	}
	return c
}

// Equal reports whether c and other have the same name, amount, and score
// set. Score order is not significant.
func (c Component) Equal(other Component) bool {
	if c.Name != other.Name || c.Amount != other.Amount {
		return false
	}
	if len(c.Scores) != len(other.Scores) {
		return false
	}
	a := append([]Score(nil), c.Scores...)
	b := append([]Score(nil), other.Scores...)
	byName := func(s []Score) {
		sort.Slice(s, func(i, j int) bool { return s[i].Name.Less(s[j].Name) })
	}
	byName(a)
	byName(b)
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// componentJSON is the wire representation of a Component.
type componentJSON struct {
	Name   string      `json:"name"`
	Amount uint64      `json:"amount"`
	Scores []scoreJSON `json:"scores,omitempty"`
}
