// Package logbuf keeps the most recent log records in memory so an
// interactive screen can show them without writing to the terminal.
package logbuf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Record is one captured log line.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   string
}

// String formats the record as "LEVEL message key=value ...".
func (r Record) String() string {
	if r.Attrs == "" {
		return fmt.Sprintf("%s %s", r.Level, r.Message)
	}
	return fmt.Sprintf("%s %s %s", r.Level, r.Message, r.Attrs)
}

type ring struct {
	mu      sync.Mutex
	records []Record
	pos     int
	full    bool
}

func (r *ring) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.pos] = rec
	r.pos = (r.pos + 1) % len(r.records)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ring) all() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]Record(nil), r.records[:r.pos]...)
	}
	out := make([]Record, 0, len(r.records))
	out = append(out, r.records[r.pos:]...)
	return append(out, r.records[:r.pos]...)
}

// Ring is a slog.Handler that stores the last N records. Handlers derived
// with WithAttrs or WithGroup share the same buffer.
type Ring struct {
	buf    *ring
	level  slog.Leveler
	prefix string
	attrs  string
}

// New creates a handler that keeps the last n records at or above level.
func New(n int, level slog.Leveler) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{
		buf:   &ring{records: make([]Record, n)},
		level: level,
	}
}

func (h *Ring) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Ring) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a)
		return true
	})
	h.buf.add(Record{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   strings.TrimSpace(b.String()),
	})
	return nil
}

func (h *Ring) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		h.appendAttr(&b, a)
	}
	clone := *h
	clone.attrs = b.String()
	return &clone
}

func (h *Ring) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *Ring) appendAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := h
		if a.Key != "" {
			g = &Ring{prefix: h.prefix + a.Key + "."}
		}
		for _, ga := range a.Value.Group() {
			g.appendAttr(b, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s%s=%v", h.prefix, a.Key, a.Value.Any())
}

// Records returns all stored records, oldest first.
func (h *Ring) Records() []Record {
	return h.buf.all()
}

// Last returns the last n records. If fewer exist, returns all of them.
func (h *Ring) Last(n int) []Record {
	all := h.buf.all()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
