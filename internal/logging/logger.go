// Package logging provides leveled logging and trial tracing for nestsim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceLogger for structured JSONL trial traces (<dir>/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/nestsim/internal/kinetics"
)

// LevelTrace is a custom slog level below Debug for full content logging.
// At this level every simulation event is written to the trial trace.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TraceLogger writes structured trial records to a JSONL file and
// implements kinetics.Observer. It is safe for concurrent use. A nil
// TraceLogger is safe to use; all methods are no-ops on nil receiver.
type TraceLogger struct {
	mu     sync.Mutex
	file   *os.File
	events bool
	names  func(kinetics.Category) string
	trial  int
}

// NewTraceLogger creates a trace logger writing to dir/trace.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" one record is written per finished trial; at "trace" one
// record per event is added. names renders category indices and may be nil.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewTraceLogger(dir string, level string, names func(kinetics.Category) string) *TraceLogger {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo || dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "trace.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	if names == nil {
		names = func(c kinetics.Category) string { return "c" + strconv.Itoa(int(c)) }
	}
	return &TraceLogger{file: f, events: lvl <= LevelTrace, names: names}
}

// Log writes a record as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (tl *TraceLogger) Log(record map[string]any) {
	if tl == nil {
		return
	}

	entry := make(map[string]any, len(record)+1)
	for k, v := range record {
		entry[k] = v
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.write(entry)
}

// write stamps entry with a "time" field and appends it. It must be called
// with mu held.
func (tl *TraceLogger) write(entry map[string]any) {
	if tl.file == nil {
		return
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = tl.file.Write(data)
}

// EventApplied records one event when tracing at trace level.
func (tl *TraceLogger) EventApplied(step int, ev kinetics.Event, s *kinetics.State, t float64) {
	if tl == nil || !tl.events {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.write(map[string]any{
		"type":   "event",
		"trial":  tl.trial + 1,
		"step":   step,
		"kind":   ev.Kind.String(),
		"from":   tl.names(ev.From),
		"to":     tl.names(ev.To),
		"t":      t,
		"counts": s.Counts(),
	})
}

// TrialFinished records the outcome of a trial.
func (tl *TraceLogger) TrialFinished(o kinetics.Outcome) {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.trial++
	entry := map[string]any{
		"type":     "trial",
		"trial":    tl.trial,
		"accepted": o.Accepted,
		"correct":  o.Correct,
		"t":        o.Time,
		"events":   o.Events,
	}
	if o.State != nil {
		entry["counts"] = o.State.Counts()
	}
	tl.write(entry)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
}
