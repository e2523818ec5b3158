// Package filter models the dashboard filter bus: predicates targeting a
// table column, the merged filter set, and the codec translating between a
// predicate and a whole-day date range.
package filter

import (
	"errors"
	"strings"
)

// ErrMalformedPredicate is returned when a predicate cannot be decoded.
var ErrMalformedPredicate = errors.New("malformed predicate")

// Schema is the JSON schema identifier stamped on predicates the widget writes.
const Schema = "http://powerbi.com/product/schema#advanced"

// FilterTypeAdvanced marks a condition-list predicate.
const FilterTypeAdvanced = "Advanced"

// LogicalAnd combines all conditions of a predicate.
const LogicalAnd = "And"

// Target identifies the column a predicate applies to.
type Target struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Matches compares targets ignoring case, as hosts are not consistent about it.
func (t Target) Matches(other Target) bool {
	return strings.EqualFold(t.Table, other.Table) && strings.EqualFold(t.Column, other.Column)
}

// IsZero reports whether no column is bound.
func (t Target) IsZero() bool {
	return t.Table == "" && t.Column == ""
}

// String formats the target as table.column.
func (t Target) String() string {
	return t.Table + "." + t.Column
}

// Operator is a comparison operator of a condition.
type Operator string

const (
	OpGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OpLessThanOrEqual    Operator = "LessThanOrEqual"
	OpGreaterThan        Operator = "GreaterThan"
	OpLessThan           Operator = "LessThan"
	OpIs                 Operator = "Is"
)

// Condition is a single comparison against a value. Value is whatever the
// host sent: usually a timestamp string, sometimes epoch milliseconds.
type Condition struct {
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Predicate is one filter on the bus.
type Predicate struct {
	Schema          string      `json:"$schema,omitempty"`
	FilterType      string      `json:"filterType,omitempty"`
	Target          Target      `json:"target"`
	LogicalOperator string      `json:"logicalOperator,omitempty"`
	Conditions      []Condition `json:"conditions"`
}

// MergeStrategy controls how a written predicate combines with the set.
type MergeStrategy string

const (
	// Merge replaces predicates on the same target and keeps all others.
	Merge MergeStrategy = "merge"
	// Replace discards the whole set in favour of the written predicate.
	Replace MergeStrategy = "replace"
)

// Set is the merged filter state of a dashboard.
type Set []Predicate

// Apply returns a new set with p written using the given strategy. The
// receiver is never modified.
func (s Set) Apply(p Predicate, strategy MergeStrategy) Set {
	if strategy == Replace {
		return Set{p}
	}
	out := make(Set, 0, len(s)+1)
	for _, existing := range s {
		if existing.Target.Matches(p.Target) {
			continue
		}
		out = append(out, existing)
	}
	return append(out, p)
}

// Remove returns a new set without predicates on target.
func (s Set) Remove(target Target) Set {
	out := make(Set, 0, len(s))
	for _, existing := range s {
		if !existing.Target.Matches(target) {
			out = append(out, existing)
		}
	}
	return out
}

// For returns the predicates targeting the given column.
func (s Set) For(target Target) Set {
	var out Set
	for _, p := range s {
		if p.Target.Matches(target) {
			out = append(out, p)
		}
	}
	return out
}
