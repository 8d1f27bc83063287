package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// splitPath breaks a bracket-nested query-string key such as
// "meta[site_id][c][0]" into its path segments ["meta", "site_id", "c", "0"].
// A key with no brackets is returned as a single-element path.
func splitPath(key string) []string {
	first := strings.IndexByte(key, '[')
	if first < 0 {
		return []string{key}
	}
	segments := []string{key[:first]}
	rest := key[first:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}
	return segments
}

// Decode parses a URL query-string value set into a Query, per §4.3.2. It
// returns an *InvalidQueryError for any malformed operator combination,
// unknown sort column, or non-positive limit.
func Decode(values url.Values) (Query, error) {
	var q Query

	metaValues := map[string]map[string][]indexedValue{}   // key -> {"c"|"dc"} -> values
	componentOps := map[string]map[string]string{}          // name -> op -> raw
	var startTimeOps, stopTimeOps map[string]string
	var runtimeOps map[string]string

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		raw := vals[0]
		path := splitPath(key)

		switch path[0] {
		case "record_id":
			v := raw
			q.RecordID = &v

		case "start_time":
			if len(path) != 2 {
				return Query{}, invalidf(key, "expected start_time[<op>]")
			}
			if startTimeOps == nil {
				startTimeOps = map[string]string{}
			}
			startTimeOps[path[1]] = raw

		case "stop_time":
			if len(path) != 2 {
				return Query{}, invalidf(key, "expected stop_time[<op>]")
			}
			if stopTimeOps == nil {
				stopTimeOps = map[string]string{}
			}
			stopTimeOps[path[1]] = raw

		case "runtime":
			if len(path) != 2 {
				return Query{}, invalidf(key, "expected runtime[<op>]")
			}
			if runtimeOps == nil {
				runtimeOps = map[string]string{}
			}
			runtimeOps[path[1]] = raw

		case "meta":
			if len(path) != 4 {
				return Query{}, invalidf(key, "expected meta[<key>][c|dc][<index>]")
			}
			metaKey, kind, idxStr := path[1], path[2], path[3]
			if kind != "c" && kind != "dc" {
				return Query{}, invalidf(key, "meta predicate must be [c] (contains) or [dc] (does_not_contain)")
			}
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return Query{}, invalidf(key, "meta value index must be an integer")
			}
			if metaValues[metaKey] == nil {
				metaValues[metaKey] = map[string][]indexedValue{}
			}
			metaValues[metaKey][kind] = append(metaValues[metaKey][kind], indexedValue{idx: idx, value: raw})

		case "component":
			if len(path) != 3 {
				return Query{}, invalidf(key, "expected component[<name>][<op>]")
			}
			name, op := path[1], path[2]
			if componentOps[name] == nil {
				componentOps[name] = map[string]string{}
			}
			componentOps[name][op] = raw

		case "sort_by":
			if len(path) != 2 {
				return Query{}, invalidf(key, "expected sort_by[asc|desc]")
			}
			dir := SortDirection(path[1])
			if dir != SortAsc && dir != SortDesc {
				return Query{}, invalidf(key, "sort direction must be asc or desc")
			}
			col := SortColumn(raw)
			if !ValidSortColumn(col) {
				return Query{}, invalidf(key, "unknown sort column %q", raw)
			}
			q.SortBy = &SortSpec{Column: col, Direction: dir}

		case "limit":
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Query{}, invalidf(key, "limit must be an integer")
			}
			if n <= 0 {
				return Query{}, invalidf(key, "limit must be positive")
			}
			q.Limit = &n

		default:
			return Query{}, invalidf(key, "unrecognized query parameter")
		}
	}

	var err error
	if q.StartTime, err = decodeTimeOperator("start_time", startTimeOps); err != nil {
		return Query{}, err
	}
	if q.StopTime, err = decodeTimeOperator("stop_time", stopTimeOps); err != nil {
		return Query{}, err
	}
	if q.Runtime, err = decodeIntOperator("runtime", runtimeOps); err != nil {
		return Query{}, err
	}

	if len(metaValues) > 0 {
		q.Meta = map[string]MetaPredicate{}
		for key, kinds := range metaValues {
			q.Meta[key] = MetaPredicate{
				Contains:       sortedValues(kinds["c"]),
				DoesNotContain: sortedValues(kinds["dc"]),
			}
		}
	}

	if len(componentOps) > 0 {
		q.Component = map[string]IntOperator{}
		for name, ops := range componentOps {
			op, err := decodeIntOperator("component["+name+"]", ops)
			if err != nil {
				return Query{}, err
			}
			q.Component[name] = *op
		}
	}

	return q, nil
}

type indexedValue struct {
	idx   int
	value string
}

func sortedValues(vs []indexedValue) []string {
	if len(vs) == 0 {
		return nil
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].idx < vs[j].idx })
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.value
	}
	return out
}

func decodeTimeOperator(param string, ops map[string]string) (*TimeOperator, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	if _, ok := ops["equals"]; ok {
		return nil, invalidf(param, "equals is not a supported predicate on timestamp fields")
	}
	var out TimeOperator
	for op, raw := range ops {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, invalidf(param, "malformed RFC 3339 timestamp %q", raw)
		}
		switch op {
		case "gt":
			out.GT = &t
		case "gte":
			out.GTE = &t
		case "lt":
			out.LT = &t
		case "lte":
			out.LTE = &t
		default:
			return nil, invalidf(param, "unknown operator %q", op)
		}
	}
	if err := out.Validate(param); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeIntOperator(param string, ops map[string]string) (*IntOperator, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	var out IntOperator
	for op, raw := range ops {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalidf(param, "malformed integer %q", raw)
		}
		switch op {
		case "gt":
			out.GT = &n
		case "gte":
			out.GTE = &n
		case "lt":
			out.LT = &n
		case "lte":
			out.LTE = &n
		case "equals":
			out.Equals = &n
		default:
			return nil, invalidf(param, "unknown operator %q", op)
		}
	}
	if err := out.Validate(param); err != nil {
		return nil, err
	}
	return &out, nil
}
