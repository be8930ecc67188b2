// Package notify carries short user-facing messages (the CLI's toasts).
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one message for the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use; background work notifies from its own goroutine.
type Notifier interface {
	Notify(Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Writer prints notifications one per line.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter prints to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()

	marker := "*"
	switch n.Level {
	case LevelSuccess:
		marker = "✓"
	case LevelError:
		marker = "!"
	}
	if n.Message == "" {
		fmt.Fprintf(w.out, "%s %s\n", marker, n.Title)
		return
	}
	fmt.Fprintf(w.out, "%s %s: %s\n", marker, n.Title, n.Message)
}

// Recorder keeps every notification in order.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.all {
		if item.Level == level {
			n++
		}
	}
	return n
}
