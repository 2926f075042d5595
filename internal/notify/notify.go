// Package notify delivers relayed build events to more than one place.
//
// Fanout duplicates events across sinks (the websocket hub and the MQTT
// mirror). MQTTSink publishes events and lifecycle records to the broker
// from a bounded queue so a slow broker never stalls a build's relay.
// KillHandler turns kill requests arriving over MQTT into Supervisor.Kill.
package notify

import (
	"github.com/nerrad567/nativehost/internal/process"
)

// Fanout delivers every event to each sink in order.
type Fanout []process.Sink

// Notify implements process.Sink.
func (f Fanout) Notify(ev process.Event) {
	for _, s := range f {
		s.Notify(ev)
	}
}

// Logger is the logging surface used by this package.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}
