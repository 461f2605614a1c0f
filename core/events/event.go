package events

import "log/slog"

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
	Attributes() map[string]string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// LogEmitter writes every event to a structured logger. It is the default
// subscriber wired by the daemon so settlements and withdrawals remain
// observable off-process.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the supplied logger; a nil logger falls back to the
// process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements the Emitter interface.
func (e *LogEmitter) Emit(evt Event) {
	if e == nil || e.logger == nil || evt == nil {
		return
	}
	args := make([]any, 0, len(evt.Attributes())*2)
	for key, value := range evt.Attributes() {
		args = append(args, slog.String(key, value))
	}
	e.logger.Info(evt.EventType(), args...)
}
