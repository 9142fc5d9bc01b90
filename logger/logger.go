// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package logger is a small ring-buffer logger. Entries are tagged and kept
// in memory until Write() or Tail() is asked to flush them to an io.Writer.
// Keeping entries in memory, rather than writing eagerly, means the rewrite
// pipeline can run without a terminal attached and a caller can decide
// afterwards whether the log is interesting enough to print.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission is consulted before an entry is appended. It allows a caller to
// silence logging dynamically (for example, to mute noisy tags once they've
// been seen) without removing the call sites.
type Permission interface {
	AllowLogging() bool
}

// Allow is a Permission that always allows logging.
var Allow = allowPermission{}

type allowPermission struct{}

func (allowPermission) AllowLogging() bool { return true }

type entry struct {
	tag    string
	detail string
}

func (e entry) String() string {
	return fmt.Sprintf("%s: %s\n", e.tag, e.detail)
}

// Logger is a fixed-capacity, thread-safe ring buffer of log entries.
type Logger struct {
	mu      sync.Mutex
	entries []entry
	cap     int
}

// NewLogger creates a Logger that retains at most capacity entries.
func NewLogger(capacity int) *Logger {
	return &Logger{cap: capacity}
}

func formatDetail(detail interface{}) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Log appends an entry to the log, subject to the supplied Permission.
func (l *Logger) Log(perm Permission, tag string, detail interface{}) {
	if perm != nil && !perm.AllowLogging() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry{tag: tag, detail: formatDetail(detail)})
	if l.cap > 0 && len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Logf appends a formatted entry to the log, subject to the supplied
// Permission.
func (l *Logger) Logf(perm Permission, tag string, format string, values ...interface{}) {
	l.Log(perm, tag, fmt.Sprintf(format, values...))
}

// Write flushes every retained entry to w, oldest first.
func (l *Logger) Write(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	for _, e := range l.entries {
		b.WriteString(e.String())
	}
	io.WriteString(w, b.String())
}

// Tail writes at most n of the most recently retained entries to w, oldest
// of the selected entries first.
func (l *Logger) Tail(w io.Writer, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.entries) {
		n = len(l.entries)
	}

	var b strings.Builder
	for _, e := range l.entries[len(l.entries)-n:] {
		b.WriteString(e.String())
	}
	io.WriteString(w, b.String())
}

// Clear discards every retained entry.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// central is the default logger used by the package-level convenience
// functions.
var central = NewLogger(1000)

// Log appends an entry to the default logger.
func Log(perm Permission, tag string, detail interface{}) {
	central.Log(perm, tag, detail)
}

// Logf appends a formatted entry to the default logger.
func Logf(perm Permission, tag string, format string, values ...interface{}) {
	central.Logf(perm, tag, format, values...)
}

// Write flushes the default logger to w.
func Write(w io.Writer) {
	central.Write(w)
}

// Tail writes the n most recent entries from the default logger to w.
func Tail(w io.Writer, n int) {
	central.Tail(w, n)
}

// Clear discards every entry in the default logger.
func Clear() {
	central.Clear()
}
