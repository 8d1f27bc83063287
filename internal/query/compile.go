// Package query compiles a decoded pkg/query.Query into a
// internal/sqlstore.ScanPlan: a parameterized SQL WHERE/ORDER BY/LIMIT
// fragment against the records table (§4.3.3). It is the structural
// replacement for the teacher's CEL-to-SQL compiler (internal/cel):
// AUDITOR's query grammar is a fixed, enumerable predicate set rather than
// a general expression language, so there is no expression environment to
// evaluate, only a deterministic set of fragments to emit in a fixed order.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/query"
)

// argList accumulates positional placeholders ($1, $2, ...) for a single
// compiled scan, mirroring the "conditions []string + args []any" pattern
// of the teacher's buildQuery.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

// Compile turns q into a ScanPlan. It returns an *query.InvalidQueryError
// only in the (should-not-happen, defense in depth) case of an unknown sort
// column slipping past Decode; every other validation already happened in
// pkg/query.Decode.
func Compile(q query.Query) (sqlstore.ScanPlan, error) {
	var conditions []string
	var args argList

	hasTemporalPredicate := false

	// Deterministic fragment order per §4.3.3: record_id, start_time,
	// stop_time, runtime, meta, component.
	if q.RecordID != nil {
		ph := args.add(*q.RecordID)
		conditions = append(conditions, "record_id = "+ph)
	}

	if q.StartTime != nil && !q.StartTime.IsZero() {
		conditions = append(conditions, compileTimeOperator("start_time", *q.StartTime, &args)...)
		hasTemporalPredicate = true
	}

	if q.StopTime != nil && !q.StopTime.IsZero() {
		conditions = append(conditions, compileTimeOperator("stop_time", *q.StopTime, &args)...)
		hasTemporalPredicate = true
	}

	if q.Runtime != nil && !q.Runtime.IsZero() {
		conditions = append(conditions, compileIntOperator("runtime", *q.Runtime, &args)...)
		hasTemporalPredicate = true
	}

	if len(q.Meta) > 0 {
		for _, key := range sortedMetaKeys(q.Meta) {
			conditions = append(conditions, compileMetaPredicate(key, q.Meta[key], &args)...)
		}
	}

	if len(q.Component) > 0 {
		for _, name := range sortedComponentNames(q.Component) {
			conditions = append(conditions, compileComponentOperator(name, q.Component[name], &args))
		}
	}

	// Base filter: in-flight records (no runtime yet) are excluded from any
	// scan that carries a time/runtime predicate (§4.3.3).
	if hasTemporalPredicate {
		conditions = append([]string{"runtime IS NOT NULL"}, conditions...)
	}

	orderBy := "stop_time ASC"
	if q.SortBy != nil {
		dir := "ASC"
		if q.SortBy.Direction == query.SortDesc {
			dir = "DESC"
		}
		if !query.ValidSortColumn(q.SortBy.Column) {
			return sqlstore.ScanPlan{}, &query.InvalidQueryError{Param: "sort_by", Reason: "unknown sort column"}
		}
		orderBy = string(q.SortBy.Column) + " " + dir
	}

	return sqlstore.ScanPlan{
		Where:   strings.Join(conditions, " AND "),
		Args:    args.args,
		OrderBy: orderBy,
		Limit:   q.Limit,
	}, nil
}

func compileTimeOperator(column string, op query.TimeOperator, args *argList) []string {
	var conds []string
	if op.GT != nil {
		conds = append(conds, column+" > "+args.add(*op.GT))
	}
	if op.GTE != nil {
		conds = append(conds, column+" >= "+args.add(*op.GTE))
	}
	if op.LT != nil {
		conds = append(conds, column+" < "+args.add(*op.LT))
	}
	if op.LTE != nil {
		conds = append(conds, column+" <= "+args.add(*op.LTE))
	}
	return conds
}

func compileIntOperator(column string, op query.IntOperator, args *argList) []string {
	var conds []string
	if op.GT != nil {
		conds = append(conds, column+" > "+args.add(*op.GT))
	}
	if op.GTE != nil {
		conds = append(conds, column+" >= "+args.add(*op.GTE))
	}
	if op.LT != nil {
		conds = append(conds, column+" < "+args.add(*op.LT))
	}
	if op.LTE != nil {
		conds = append(conds, column+" <= "+args.add(*op.LTE))
	}
	if op.Equals != nil {
		conds = append(conds, column+" = "+args.add(*op.Equals))
	}
	return conds
}

// compileMetaPredicate emits jsonb containment checks against the "meta"
// column (a JSON object of key -> array of strings). contains uses plain
// jsonb @> (absent key is simply not a match, which is correct); does not
// contain has to treat an absent key as vacuously true, hence the coalesce.
func compileMetaPredicate(key string, pred query.MetaPredicate, args *argList) []string {
	var conds []string
	for _, v := range pred.Contains {
		jv, _ := json.Marshal(v)
		ph := args.add(string(jv))
		conds = append(conds, fmt.Sprintf("meta -> %s @> %s::jsonb", args.add(key), ph))
	}
	for _, v := range pred.DoesNotContain {
		jv, _ := json.Marshal(v)
		ph := args.add(string(jv))
		conds = append(conds, fmt.Sprintf("COALESCE(meta -> %s @> %s::jsonb, false) = false", args.add(key), ph))
	}
	return conds
}

// compileComponentOperator emits an EXISTS subquery against the
// "components" column (a JSON array of {name, amount, scores}).
func compileComponentOperator(name string, op query.IntOperator, args *argList) string {
	namePh := args.add(name)
	var inner []string
	if op.GT != nil {
		inner = append(inner, "(c->>'amount')::bigint > "+args.add(*op.GT))
	}
	if op.GTE != nil {
		inner = append(inner, "(c->>'amount')::bigint >= "+args.add(*op.GTE))
	}
	if op.LT != nil {
		inner = append(inner, "(c->>'amount')::bigint < "+args.add(*op.LT))
	}
	if op.LTE != nil {
		inner = append(inner, "(c->>'amount')::bigint <= "+args.add(*op.LTE))
	}
	if op.Equals != nil {
		inner = append(inner, "(c->>'amount')::bigint = "+args.add(*op.Equals))
	}
	cond := "c->>'name' = " + namePh
	if len(inner) > 0 {
		cond += " AND " + strings.Join(inner, " AND ")
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements(components) AS c WHERE %s)", cond)
}

func sortedMetaKeys(m map[string]query.MetaPredicate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedComponentNames(m map[string]query.IntOperator) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
