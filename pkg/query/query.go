// Package query defines the structured query AUDITOR accepts on its listing
// endpoints (§4.3) and the URL-encoded wire form it is decoded from.
package query

// Query is the fully-parsed, validated form of a listing request. Every
// field is optional; a zero Query matches every record.
type Query struct {
	RecordID *string

	StartTime *TimeOperator
	StopTime  *TimeOperator
	Runtime   *IntOperator

	// Meta maps a meta key name to the predicate it must satisfy.
	Meta map[string]MetaPredicate

	// Component maps a component name to an IntOperator over that
	// component's amount.
	Component map[string]IntOperator

	SortBy *SortSpec
	Limit  *int
}

// Empty reports whether q carries no constraints at all (other than a
// possible sort/limit, which do not themselves filter).
func (q Query) Empty() bool {
	return q.RecordID == nil &&
		(q.StartTime == nil || q.StartTime.IsZero()) &&
		(q.StopTime == nil || q.StopTime.IsZero()) &&
		(q.Runtime == nil || q.Runtime.IsZero()) &&
		len(q.Meta) == 0 &&
		len(q.Component) == 0
}
