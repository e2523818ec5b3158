package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
)

// Encode builds the predicate for a range: an inclusive lower bound at the
// start of From's day and an inclusive upper bound at the end of To's day.
func Encode(r daterange.Range, target Target) Predicate {
	return Predicate{
		Schema:          Schema,
		FilterType:      FilterTypeAdvanced,
		Target:          target,
		LogicalOperator: LogicalAnd,
		Conditions: []Condition{
			{Operator: OpGreaterThanOrEqual, Value: r.From.Format(daterange.TimestampLayout)},
			{Operator: OpLessThanOrEqual, Value: r.To.Format(daterange.TimestampLayout)},
		},
	}
}

// Decode extracts the range from the predicates targeting the column. Both a
// GreaterThanOrEqual and a LessThanOrEqual bound are required. When several
// predicates bound the column the tightest bounds win, since the bus combines
// them with And.
func Decode(set Set, target Target, loc *time.Location) (daterange.Range, error) {
	var (
		from, to       time.Time
		hasFrom, hasTo bool
	)

	for _, p := range set.For(target) {
		for _, c := range p.Conditions {
			v, ok := daterange.ParseValue(c.Value, loc)
			if !ok {
				continue
			}
			switch c.Operator {
			case OpGreaterThanOrEqual:
				if !hasFrom || v.After(from) {
					from = v
				}
				hasFrom = true
			case OpLessThanOrEqual:
				if !hasTo || v.Before(to) {
					to = v
				}
				hasTo = true
			}
		}
	}

	if !hasFrom || !hasTo {
		return daterange.Range{}, fmt.Errorf("%w: missing bound on %s", ErrMalformedPredicate, target)
	}
	r, err := daterange.NewRange(from, to, loc)
	if err != nil {
		return daterange.Range{}, fmt.Errorf("%w: %v", ErrMalformedPredicate, err)
	}
	return r, nil
}

type canonicalCondition struct {
	Operator Operator `json:"op"`
	Value    string   `json:"v"`
}

// Hash returns a stable key for the conditions on the target column: the
// canonical JSON of its conditions with values normalized to UTC and sorted.
// It is used for equality only. The empty string means no condition applies.
func Hash(set Set, target Target, loc *time.Location) string {
	var conds []canonicalCondition
	for _, p := range set.For(target) {
		for _, c := range p.Conditions {
			conds = append(conds, canonicalCondition{Operator: c.Operator, Value: canonicalValue(c.Value, loc)})
		}
	}
	if len(conds) == 0 {
		return ""
	}

	sort.Slice(conds, func(i, j int) bool {
		if conds[i].Operator != conds[j].Operator {
			return conds[i].Operator < conds[j].Operator
		}
		return conds[i].Value < conds[j].Value
	})

	data, err := json.Marshal(conds)
	if err != nil {
		return ""
	}
	return string(data)
}

func canonicalValue(v any, loc *time.Location) string {
	if t, ok := daterange.ParseValue(v, loc); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
