package query

import "fmt"

// InvalidQueryError reports a malformed structured query: an unsupported
// operator combination, an unknown sort column, a non-positive limit, or
// similar (§4.3.1, §4.3.3).
type InvalidQueryError struct {
	Param  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query parameter %q: %s", e.Param, e.Reason)
}

func invalidf(param, format string, args ...any) error {
	return &InvalidQueryError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
