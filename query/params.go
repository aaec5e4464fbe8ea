/*
	query package models the client facing request contract: the set of
	mandatory query parameters and the parsed client query.
*/

package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ParamSet holds the names of query parameters that every client request
// must provide.
type ParamSet map[string]struct{}

// ParseParamSet parses a comma-separated list of parameter names. Blank
// entries are ignored.
func ParseParamSet(raw string) ParamSet {
	set := make(ParamSet)
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}

	return set
}

// Names returns the sorted list of parameter names.
func (s ParamSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Validate ensures that every mandatory parameter is present in values. A
// parameter that is present with an empty value counts as present.
func (s ParamSet) Validate(values url.Values) error {
	var missing []string
	for _, name := range s.Names() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	return nil
}

// ValidationError is returned when a request lacks mandatory parameters.
type ValidationError struct {
	Missing []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("mandatory client parameters missing: %s", strings.Join(e.Missing, ", "))
}

// ClientQuery holds the parsed query parameters of a single request.
type ClientQuery map[string]string

// FromValues builds a ClientQuery using the first value of each parameter.
func FromValues(values url.Values) ClientQuery {
	q := make(ClientQuery, len(values))
	for name, vals := range values {
		if len(vals) > 0 {
			q[name] = vals[0]
		}
	}

	return q
}

// Get returns the value of the named parameter.
func (q ClientQuery) Get(name string) (string, bool) {
	v, ok := q[name]

	return v, ok
}

// ParsePathPrefix normalizes a route prefix: surrounding slashes are
// trimmed and a non-empty prefix gets exactly one leading slash.
func ParsePathPrefix(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}

	return "/" + trimmed
}
