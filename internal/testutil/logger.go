// Package testutil holds logging helpers shared by the storefront tests.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Records collects log records for assertions.
type Records struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewRecordingLogger returns a logger whose records are kept in the
// returned Records and also written to t.Log().
func NewRecordingLogger(t testing.TB) (*slog.Logger, *Records) {
	t.Helper()
	recs := &Records{}
	next := NewTestLogger(t).Handler()
	return slog.New(&recordingHandler{recs: recs, next: next}), recs
}

// Messages returns the messages logged so far.
func (r *Records) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, len(r.records))
	for i, rec := range r.records {
		msgs[i] = rec.Message
	}
	return msgs
}

// Attr returns the value of key on the first record with msg.
func (r *Records) Attr(msg, key string) (slog.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Message != msg {
			continue
		}
		var (
			val   slog.Value
			found bool
		)
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				val, found = a.Value, true
				return false
			}
			return true
		})
		return val, found
	}
	return slog.Value{}, false
}

type recordingHandler struct {
	recs *Records
	next slog.Handler
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(ctx context.Context, rec slog.Record) error {
	h.recs.mu.Lock()
	h.recs.records = append(h.recs.records, rec.Clone())
	h.recs.mu.Unlock()
	return h.next.Handle(ctx, rec)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{recs: h.recs, next: h.next.WithAttrs(attrs)}
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{recs: h.recs, next: h.next.WithGroup(name)}
}
