package notify

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/nativehost/internal/infrastructure/mqtt"
	"github.com/nerrad567/nativehost/internal/process"
)

// DefaultQueueSize is used when NewMQTTSink is given a non-positive size.
const DefaultQueueSize = 1024

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	PublishDefault(topic string, payload []byte) error
}

type message struct {
	topic   string
	payload []byte
}

// MQTTSink mirrors events to nativehost/process/{pid}/{kind} and lifecycle
// records to nativehost/process/{pid}/lifecycle. It is both a process.Sink
// and a process.Observer.
//
// Messages are queued and published by a single worker, preserving order.
// When the queue is full new messages are dropped and counted.
type MQTTSink struct {
	pub    Publisher
	queue  chan message
	done   chan struct{}
	logger Logger

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewMQTTSink starts the publishing worker. Call Close to stop it.
func NewMQTTSink(pub Publisher, queueSize int) *MQTTSink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &MQTTSink{
		pub:    pub,
		queue:  make(chan message, queueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	go s.run()
	return s
}

// SetLogger sets the logger. Call before events flow.
func (s *MQTTSink) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// eventMessage is the MQTT body of a relayed event: the desktop wire payload
// plus the channel name.
func eventMessage(ev process.Event) message {
	body := ev.Payload()
	body["channel"] = ev.Kind.Channel()
	payload, _ := json.Marshal(body) //nolint:errcheck // map[string]string always marshals
	return message{
		topic:   mqtt.Topics{}.ProcessEvent(string(ev.PID), string(ev.Kind)),
		payload: payload,
	}
}

type lifecycle struct {
	Event string `json:"event"`
	Info  any    `json:"process"`
}

func lifecycleMessage(pid process.ID, event string, info any) message {
	payload, err := json.Marshal(lifecycle{Event: event, Info: info})
	if err != nil {
		payload = []byte(`{"event":"` + event + `"}`)
	}
	return message{topic: mqtt.Topics{}.ProcessLifecycle(string(pid)), payload: payload}
}

// Notify implements process.Sink.
func (s *MQTTSink) Notify(ev process.Event) {
	s.enqueue(eventMessage(ev))
}

// ProcessStarted implements process.Observer.
func (s *MQTTSink) ProcessStarted(info process.Info) {
	s.enqueue(lifecycleMessage(info.PID, "started", info))
}

// ProcessExited implements process.Observer.
func (s *MQTTSink) ProcessExited(run process.Run) {
	s.enqueue(lifecycleMessage(run.PID, "exited", run))
}

func (s *MQTTSink) enqueue(m message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- m:
	default:
		if s.dropped.Add(1) == 1 {
			s.logger.Warn("mqtt event queue full, dropping messages", "topic", m.topic)
		}
	}
}

func (s *MQTTSink) run() {
	defer close(s.done)
	for m := range s.queue {
		if err := s.pub.PublishDefault(m.topic, m.payload); err != nil {
			s.failed.Add(1)
			s.logger.Debug("mqtt publish failed", "topic", m.topic, "error", err)
		}
	}
}

// Close stops accepting messages and waits for the queue to drain.
func (s *MQTTSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

// Dropped returns how many messages were discarded because the queue was
// full or the sink was closed.
func (s *MQTTSink) Dropped() int64 {
	return s.dropped.Load()
}

// Failed returns how many publishes the broker client rejected.
func (s *MQTTSink) Failed() int64 {
	return s.failed.Load()
}
