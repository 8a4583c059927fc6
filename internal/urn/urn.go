// Package urn implements the two-part resource identifier used to name
// records and assets: the providing module plus a module-local name.
package urn

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned by Parse for strings that are not "module:name".
var ErrMalformed = errors.New("urn: malformed resource identifier")

// URN identifies a resource provided by a module. Comparison is
// case-insensitive; use Key for map lookups.
type URN struct {
	Module string
	Name   string
}

// New builds a URN from its parts.
func New(module, name string) URN {
	return URN{Module: module, Name: name}
}

// Parse reads a "module:name" string.
func Parse(s string) (URN, error) {
	module, name, ok := strings.Cut(s, ":")
	if !ok || module == "" || name == "" || strings.Contains(name, ":") {
		return URN{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return URN{Module: module, Name: name}, nil
}

// String renders the URN as "module:name".
func (u URN) String() string {
	return u.Module + ":" + u.Name
}

// Key returns the normalized form used for identity comparisons.
func (u URN) Key() URN {
	return URN{Module: strings.ToLower(u.Module), Name: strings.ToLower(u.Name)}
}

// Equal reports whether two URNs identify the same resource.
func (u URN) Equal(o URN) bool {
	return u.Key() == o.Key()
}

// IsZero reports whether the URN is unset.
func (u URN) IsZero() bool {
	return u.Module == "" && u.Name == ""
}
