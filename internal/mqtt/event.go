package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/filter"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

// ErrUnknownTopic is returned for messages on topics the widget does not own.
var ErrUnknownTopic = errors.New("unknown topic")

// EventKind identifies what a host message carries.
type EventKind string

const (
	EventData    EventKind = "DATA"
	EventFilters EventKind = "FILTERS"
	EventConfig  EventKind = "CONFIG"
	EventRestore EventKind = "RESTORE"
)

// Event is one parsed host message. Only the field matching Kind is set.
type Event struct {
	Kind    EventKind
	Values  []any
	Filters filter.Set
	Config  WidgetConfig
	Restore reconcile.Snapshot
}

// WidgetConfig is the settings object on the config topic.
type WidgetConfig struct {
	Preset string `json:"preset"`
	Table  string `json:"table,omitempty"`
	Column string `json:"column,omitempty"`
}

// Settings converts the config to engine settings. An unset column keeps the
// current target.
func (c WidgetConfig) Settings(current filter.Target) reconcile.Settings {
	target := current
	if c.Table != "" && c.Column != "" {
		target = filter.Target{Table: c.Table, Column: c.Column}
	}
	return reconcile.Settings{
		Preset: daterange.ParsePreset(c.Preset),
		Target: target,
	}
}

// ParseEvent decodes a message received on one of the widget's topics.
func ParseEvent(topics Topics, topic string, payload []byte) (Event, error) {
	switch topic {
	case topics.Data():
		values, err := ParseData(payload)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventData, Values: values}, nil

	case topics.Filters():
		set, err := ParseFilters(payload)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventFilters, Filters: set}, nil

	case topics.Config():
		var cfg WidgetConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			return Event{}, fmt.Errorf("parse config: %w", err)
		}
		return Event{Kind: EventConfig, Config: cfg}, nil

	case topics.Restore():
		snap, err := reconcile.ParseSnapshot(payload)
		if err != nil {
			return Event{}, fmt.Errorf("parse restore: %w", err)
		}
		return Event{Kind: EventRestore, Restore: snap}, nil
	}
	return Event{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

// ParseData decodes a JSON array of raw column values. Numbers are kept as
// json.Number so epoch milliseconds survive without rounding.
func ParseData(payload []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var values []any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("parse data: %w", err)
	}
	return values, nil
}

// ParseFilters decodes the merged predicates of a column. An empty payload
// or an empty array means no filter is applied.
func ParseFilters(payload []byte) (filter.Set, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var set filter.Set
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("parse filters: %w", err)
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, nil
}
