package lifecycle

import (
	"log/slog"
	"time"
)

// Observer is notified of every attempted transition.
type Observer interface {
	Transition(entity Entity, action Action, result string)
}

// Listener receives the scopes a successful mutation invalidated.
type Listener func(action Action, scopes []Scope)

// Option configures a Manager.
type Option func(*Manager)

// WithTable replaces the default transition table.
func WithTable(t *Table) Option {
	return func(m *Manager) { m.table = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator sets the id source for new records.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithObserver sets the transition observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithListener registers an invalidation listener.
func WithListener(l Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, l) }
}
