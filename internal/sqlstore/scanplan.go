package sqlstore

// ScanPlan is the compiled form of a structured query (internal/query),
// expressed directly as a parameterized SQL WHERE/ORDER BY/LIMIT fragment
// against the records table (§4.3.3). Store never inspects the predicate
// structure that produced it; it only splices Where/OrderBy/Limit into a
// fixed SELECT template.
type ScanPlan struct {
	// Where is a SQL boolean expression using $1, $2, ... placeholders, or
	// empty for an unconstrained scan.
	Where string
	Args  []any

	// OrderBy is a bare "<column> <ASC|DESC>" fragment, never empty: the
	// compiler defaults to "stop_time ASC" when no sort_by was given. Store.Scan
	// appends "seq ASC" after it as the insertion-order tie-break.
	OrderBy string

	// Limit is nil for an unbounded scan.
	Limit *int
}
