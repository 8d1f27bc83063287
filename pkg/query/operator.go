package query

import "time"

// TimeOperator carries up to one lower bound and one upper bound over a
// Timestamp field. Equality is not a supported predicate on instants
// (§4.3.1): constructing one from the wire form with an "equals" key is
// rejected as InvalidQuery by the decoder, not representable here.
type TimeOperator struct {
	GT  *time.Time
	GTE *time.Time
	LT  *time.Time
	LTE *time.Time
}

// Validate enforces "at most one of {gt, gte}" and "at most one of {lt, lte}".
func (o TimeOperator) Validate(param string) error {
	if o.GT != nil && o.GTE != nil {
		return invalidf(param, "at most one of gt, gte may be set")
	}
	if o.LT != nil && o.LTE != nil {
		return invalidf(param, "at most one of lt, lte may be set")
	}
	return nil
}

// IsZero reports whether no bound is set.
func (o TimeOperator) IsZero() bool {
	return o.GT == nil && o.GTE == nil && o.LT == nil && o.LTE == nil
}

// IntOperator carries up to one lower bound, one upper bound, and an
// optional equality over an integer field (runtime, or a component amount).
type IntOperator struct {
	GT     *int64
	GTE    *int64
	LT     *int64
	LTE    *int64
	Equals *int64
}

// Validate enforces "at most one of {gt, gte}" and "at most one of {lt, lte}".
func (o IntOperator) Validate(param string) error {
	if o.GT != nil && o.GTE != nil {
		return invalidf(param, "at most one of gt, gte may be set")
	}
	if o.LT != nil && o.LTE != nil {
		return invalidf(param, "at most one of lt, lte may be set")
	}
	return nil
}

// IsZero reports whether no bound or equality is set.
func (o IntOperator) IsZero() bool {
	return o.GT == nil && o.GTE == nil && o.LT == nil && o.LTE == nil && o.Equals == nil
}

// MetaPredicate constrains the value sequence stored under a Meta key:
// every value in Contains must be present, every value in DoesNotContain
// must be absent (§4.3.1). Both may be set; they combine as a conjunction.
type MetaPredicate struct {
	Contains       []string
	DoesNotContain []string
}

// IsZero reports whether the predicate constrains nothing.
func (p MetaPredicate) IsZero() bool {
	return len(p.Contains) == 0 && len(p.DoesNotContain) == 0
}

// SortColumn enumerates the columns a query may sort by (§4.3.1).
type SortColumn string

const (
	SortByStartTime SortColumn = "start_time"
	SortByStopTime  SortColumn = "stop_time"
	SortByRuntime   SortColumn = "runtime"
	SortByRecordID  SortColumn = "record_id"
)

// ValidSortColumn reports whether c is one of the four allowed columns.
func ValidSortColumn(c SortColumn) bool {
	switch c {
	case SortByStartTime, SortByStopTime, SortByRuntime, SortByRecordID:
		return true
	default:
		return false
	}
}

// SortDirection is "asc" or "desc".
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec pairs a sort column with a direction.
type SortSpec struct {
	Column    SortColumn
	Direction SortDirection
}
