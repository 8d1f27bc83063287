package tools

import (
	"fmt"
	"time"

	"github.com/auditor-project/auditor/pkg/query"
)

// buildQuery converts an MCP tool call's structured arguments into the
// same query.Query the HTTP layer compiles, so both entry points share
// validation and SQL generation.
func buildQuery(args QueryRecordsArgs) (query.Query, error) {
	var q query.Query

	if args.RecordID != "" {
		q.RecordID = &args.RecordID
	}

	startTime, err := parseTimeOperator("startTime", args.StartTimeGT, args.StartTimeGTE, args.StartTimeLT, args.StartTimeLTE)
	if err != nil {
		return query.Query{}, err
	}
	if startTime != nil {
		q.StartTime = startTime
	}

	stopTime, err := parseTimeOperator("stopTime", args.StopTimeGT, args.StopTimeGTE, args.StopTimeLT, args.StopTimeLTE)
	if err != nil {
		return query.Query{}, err
	}
	if stopTime != nil {
		q.StopTime = stopTime
	}

	runtime := query.IntOperator{GTE: args.RuntimeGTE, LTE: args.RuntimeLTE, Equals: args.RuntimeEq}
	if !runtime.IsZero() {
		if err := runtime.Validate("runtime"); err != nil {
			return query.Query{}, err
		}
		q.Runtime = &runtime
	}

	if len(args.MetaContains) > 0 || len(args.MetaDoesNotContain) > 0 {
		q.Meta = map[string]query.MetaPredicate{}
		for key, values := range args.MetaContains {
			pred := q.Meta[key]
			pred.Contains = values
			q.Meta[key] = pred
		}
		for key, values := range args.MetaDoesNotContain {
			pred := q.Meta[key]
			pred.DoesNotContain = values
			q.Meta[key] = pred
		}
	}

	if len(args.ComponentEquals) > 0 || len(args.ComponentGTE) > 0 || len(args.ComponentLTE) > 0 {
		q.Component = map[string]query.IntOperator{}
		for name, v := range args.ComponentEquals {
			v := v
			op := q.Component[name]
			op.Equals = &v
			q.Component[name] = op
		}
		for name, v := range args.ComponentGTE {
			v := v
			op := q.Component[name]
			op.GTE = &v
			q.Component[name] = op
		}
		for name, v := range args.ComponentLTE {
			v := v
			op := q.Component[name]
			op.LTE = &v
			q.Component[name] = op
		}
	}

	if args.SortByColumn != "" {
		col := query.SortColumn(args.SortByColumn)
		if !query.ValidSortColumn(col) {
			return query.Query{}, fmt.Errorf("invalid sortByColumn %q", args.SortByColumn)
		}
		dir := query.SortAsc
		if args.SortDesc {
			dir = query.SortDesc
		}
		q.SortBy = &query.SortSpec{Column: col, Direction: dir}
	}

	if args.Limit > 0 {
		limit := args.Limit
		q.Limit = &limit
	}

	return q, nil
}

func parseTimeOperator(param, gt, gte, lt, lte string) (*query.TimeOperator, error) {
	var op query.TimeOperator
	var err error
	if op.GT, err = parseOptionalTime(param, gt); err != nil {
		return nil, err
	}
	if op.GTE, err = parseOptionalTime(param, gte); err != nil {
		return nil, err
	}
	if op.LT, err = parseOptionalTime(param, lt); err != nil {
		return nil, err
	}
	if op.LTE, err = parseOptionalTime(param, lte); err != nil {
		return nil, err
	}
	if op.IsZero() {
		return nil, nil
	}
	if err := op.Validate(param); err != nil {
		return nil, err
	}
	return &op, nil
}

func parseOptionalTime(param, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", param, err)
	}
	return &t, nil
}
