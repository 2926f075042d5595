package process

import "strconv"

// ID identifies a spawned process for as long as it stays registered.
// It is the OS pid rendered in decimal.
type ID string

// Kind classifies a relayed event.
type Kind string

const (
	KindStdout Kind = "stdout"
	KindStderr Kind = "stderr"
	KindExit   Kind = "exit"
)

// channelPrefix namespaces notification channels delivered to subscribers.
const channelPrefix = "child_process."

// Channel returns the notification channel name for events of this kind,
// e.g. "child_process.stdout".
func (k Kind) Channel() string {
	return channelPrefix + string(k)
}

// Channels lists every notification channel a subscriber can listen on.
func Channels() []string {
	return []string{KindStdout.Channel(), KindStderr.Channel(), KindExit.Channel()}
}

// Event is one item of a process's output/exit stream, tagged with its pid.
//
// Output events carry Data. The exit event carries Code and Signal, either of
// which may be nil when the OS did not report it.
type Event struct {
	PID    ID
	Kind   Kind
	Data   []byte
	Code   *int
	Signal *int
}

// IsTerminal reports whether this is the last event of its stream.
func (e Event) IsTerminal() bool {
	return e.Kind == KindExit
}

// CodeString renders the exit code for the wire. An unreported code is
// rendered as "0"; desktop clients have always received it that way.
func (e Event) CodeString() string {
	return optionalIntString(e.Code)
}

// SignalString renders the terminating signal for the wire, "0" when none.
func (e Event) SignalString() string {
	return optionalIntString(e.Signal)
}

func optionalIntString(v *int) string {
	if v == nil {
		return "0"
	}
	return strconv.Itoa(*v)
}

// Payload returns the wire payload for the event: {pid, data} for output and
// {pid, code, signal} for exit.
func (e Event) Payload() map[string]string {
	if e.Kind == KindExit {
		return map[string]string{
			"pid":    string(e.PID),
			"code":   e.CodeString(),
			"signal": e.SignalString(),
		}
	}
	return map[string]string{
		"pid":  string(e.PID),
		"data": string(e.Data),
	}
}

// Sink receives relayed events. Notify must not block: implementations drop
// events they cannot deliver immediately.
type Sink interface {
	Notify(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Notify implements Sink.
func (f SinkFunc) Notify(ev Event) {
	f(ev)
}

type discardSink struct{}

func (discardSink) Notify(Event) {}
