// Command date-slicer runs one date-range slicer widget against a dashboard
// filter bus on MQTT and serves its status and controls over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/filter"
	"github.com/sweeney/date-slicer/internal/mqtt"
	"github.com/sweeney/date-slicer/internal/reconcile"
	"github.com/sweeney/date-slicer/internal/status"
	"github.com/sweeney/date-slicer/internal/store/sqlite"
	"github.com/sweeney/date-slicer/internal/web"
	"github.com/sweeney/date-slicer/internal/widget"
)

type options struct {
	broker      string
	clientID    string
	dashboard   string
	widget      string
	table       string
	column      string
	preset      string
	httpAddr    string
	dbPath      string
	flagTimeout time.Duration
	revalidate  time.Duration
	tz          string
}

func main() {
	var opts options
	flag.StringVar(&opts.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&opts.clientID, "client-id", "", `MQTT client id (default "date-slicer-<widget>")`)
	flag.StringVar(&opts.dashboard, "dashboard", "default", "Dashboard id")
	flag.StringVar(&opts.widget, "widget", "date-slicer", "Widget id")
	flag.StringVar(&opts.table, "table", "", "Table of the bound date column")
	flag.StringVar(&opts.column, "column", "", "Bound date column")
	flag.StringVar(&opts.preset, "preset", "none", "Initial preset until the host sends its config")
	flag.StringVar(&opts.httpAddr, "http", ":8080", "HTTP address (empty to disable)")
	flag.StringVar(&opts.dbPath, "db", "date-slicer.db", "SQLite bookmark database (empty to disable)")
	flag.DurationVar(&opts.flagTimeout, "flag-timeout", reconcile.DefaultFlagTimeout, "Safety timeout for in-flight modes")
	flag.DurationVar(&opts.revalidate, "revalidate", time.Minute, "Revalidation interval (0 to disable)")
	flag.StringVar(&opts.tz, "tz", "", "Time zone for whole days (default local)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")

	flag.Parse()

	logger, err := newLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the --log-level and --log-format flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return nil, fmt.Errorf("log format %q: want text or json", format)
}

// loadLocation resolves --tz. Empty means the process's local zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", name, err)
	}
	return loc, nil
}

func (o options) validate() error {
	if o.table == "" || o.column == "" {
		return errors.New("--table and --column are required")
	}
	if o.dashboard == "" || o.widget == "" {
		return errors.New("--dashboard and --widget must not be empty")
	}
	return nil
}

func run(opts options, logger *slog.Logger) error {
	if err := opts.validate(); err != nil {
		return err
	}
	loc, err := loadLocation(opts.tz)
	if err != nil {
		return err
	}
	if opts.clientID == "" {
		opts.clientID = "date-slicer-" + opts.widget
	}

	target := filter.Target{Table: opts.table, Column: opts.column}
	settings := reconcile.Settings{Preset: daterange.ParsePreset(opts.preset), Target: target}

	// Initialize MQTT
	bus := mqtt.NewRealBus(mqtt.Options{
		Broker:   opts.broker,
		ClientID: opts.clientID,
		Topics:   mqtt.Topics{Dashboard: opts.dashboard, Widget: opts.widget, Target: target},
		Logger:   logger,
	})
	defer bus.Close()

	w := widget.New(bus, widget.LogView{Logger: logger}, widget.Config{
		FlagTimeout: opts.flagTimeout,
		Location:    loc,
		Logger:      logger,
	})

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:        opts.broker,
		Dashboard:     opts.dashboard,
		Widget:        opts.widget,
		Table:         opts.table,
		Column:        opts.column,
		Preset:        string(settings.Preset),
		HTTPAddr:      opts.httpAddr,
		DBPath:        opts.dbPath,
		FlagTimeoutMs: opts.flagTimeout.Milliseconds(),
		RevalidateMs:  opts.revalidate.Milliseconds(),
		Location:      loc.String(),
	})

	var bookmarks web.Bookmarks
	if opts.dbPath != "" {
		store, err := sqlite.New(opts.dbPath)
		if err != nil {
			return fmt.Errorf("open bookmarks: %w", err)
		}
		defer store.Close()
		bookmarks = store
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := bus.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", "err", err)
	} else {
		logger.Info("published startup event")
	}

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, web.Options{
			Tracker:   tracker,
			Slicer:    w,
			Bookmarks: bookmarks,
			States:    bus,
			Location:  loc,
			Logger:    logger,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http server listening", "addr", opts.httpAddr)
	}

	logger.Info("started",
		"broker", opts.broker,
		"dashboard", opts.dashboard,
		"widget", opts.widget,
		"target", target.String(),
		"preset", settings.Preset,
		"tz", loc.String(),
	)

	var revalidate <-chan time.Time
	if opts.revalidate > 0 {
		ticker := time.NewTicker(opts.revalidate)
		defer ticker.Stop()
		revalidate = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(bus, bus, w, tracker, settings, logger, time.Now, revalidate, sigCh)
}

// hostState accumulates the latest message of every host topic. The data
// topic drives readiness: nothing reaches the widget before the first values.
type hostState struct {
	values   []any
	haveData bool
	filters  filter.Set
	settings reconcile.Settings
}

func (h *hostState) update() widget.Update {
	return widget.Update{Values: h.values, Filters: h.filters, Settings: h.settings}
}

func runLoop(bus mqtt.Bus, mqttStatus mqtt.ConnectionStatus, w *widget.Widget, tracker *status.Tracker, settings reconcile.Settings, logger *slog.Logger, now func() time.Time, revalidate <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host := &hostState{settings: settings}
	events := bus.Events()

	refresh := func() {
		if tracker == nil {
			return
		}
		tracker.Update(w.Status())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refresh()
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := bus.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", "err", err)
			} else {
				logger.Info("published shutdown event")
			}
			return nil

		case <-revalidate:
			if _, ok := w.Revalidate(ctx); ok {
				refresh()
			}

		case ev, ok := <-events:
			if !ok {
				// A closed stream never delivers again; keep serving signals.
				events = nil
				continue
			}
			handleEvent(ctx, bus, w, tracker, host, ev, logger)
			refresh()
		}
	}
}

// handleEvent folds one host message into the accumulated host state and
// runs the widget when there is data to run on.
func handleEvent(ctx context.Context, bus mqtt.Bus, w *widget.Widget, tracker *status.Tracker, host *hostState, ev mqtt.Event, logger *slog.Logger) {
	switch ev.Kind {
	case mqtt.EventData:
		host.values = ev.Values
		host.haveData = true

	case mqtt.EventFilters:
		host.filters = ev.Filters

	case mqtt.EventConfig:
		next := ev.Config.Settings(host.settings.Target)
		if next.Target != host.settings.Target {
			if err := bus.Rebind(next.Target); err != nil {
				logger.Warn("bus: rebind failed", "target", next.Target.String(), "err", err)
			}
			if tracker != nil {
				tracker.SetTarget(next.Target.Table, next.Target.Column)
			}
			// The new column's data and filters arrive on their own topics.
			host.values = nil
			host.haveData = false
			host.filters = nil
		}
		host.settings = next

	case mqtt.EventRestore:
		if _, err := w.RestoreState(ctx, ev.Restore); err != nil {
			logger.Warn("widget: restore rejected", "err", err)
			setError(tracker, err)
		}
		return
	}

	if !host.haveData {
		return
	}
	if _, err := w.Update(ctx, host.update()); err != nil {
		setError(tracker, err)
		return
	}
	setError(tracker, nil)
}

func setError(tracker *status.Tracker, err error) {
	if tracker == nil {
		return
	}
	if err == nil {
		tracker.SetError("")
		return
	}
	tracker.SetError(err.Error())
}
