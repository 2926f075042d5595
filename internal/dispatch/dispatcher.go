// Package dispatch routes named operations from the UI layer to handlers.
//
// A request carries an operation name, positional string arguments and an
// optional binary payload. Every response is a list of strings; an empty list
// means "nothing" (for example, a cancelled dialog).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Request is a single call from the UI layer.
type Request struct {
	Operation string   `json:"operation"`
	Args      []string `json:"args"`
	Data      []byte   `json:"data,omitempty"`
}

// Response is the ordered result of an operation.
type Response struct {
	Result []string `json:"result"`
}

// HandlerFunc implements one operation. Arguments have already been checked
// against the operation's Arity.
type HandlerFunc func(ctx context.Context, req Request) ([]string, error)

// Unbounded marks an Arity with no upper limit.
const Unbounded = -1

// Arity bounds the number of positional arguments an operation accepts.
type Arity struct {
	Min int
	Max int
}

// None accepts no arguments.
func None() Arity { return Arity{Min: 0, Max: 0} }

// Exactly accepts n arguments.
func Exactly(n int) Arity { return Arity{Min: n, Max: n} }

// AtLeast accepts n or more arguments.
func AtLeast(n int) Arity { return Arity{Min: n, Max: Unbounded} }

// Between accepts lo..hi arguments inclusive.
func Between(lo, hi int) Arity { return Arity{Min: lo, Max: hi} }

func (a Arity) check(n int) error {
	if n < a.Min {
		return fmt.Errorf("expected at least %d argument(s), got %d", a.Min, n)
	}
	if a.Max != Unbounded && n > a.Max {
		if a.Min == a.Max {
			return fmt.Errorf("expected %d argument(s), got %d", a.Max, n)
		}
		return fmt.Errorf("expected at most %d argument(s), got %d", a.Max, n)
	}
	return nil
}

type route struct {
	handler HandlerFunc
	arity   Arity
}

// Logger defines the logging interface for the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Dispatcher maps operation names to handlers.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]route
	logger Logger
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		routes: make(map[string]route),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Handle registers h for operation, replacing any previous handler.
func (d *Dispatcher) Handle(operation string, arity Arity, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[operation] = route{handler: h, arity: arity}
}

// Operations returns the registered operation names, sorted.
func (d *Dispatcher) Operations() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ops := make([]string, 0, len(d.routes))
	for op := range d.routes {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Dispatch runs the handler registered for req.Operation.
//
// Errors are *UnsupportedOperationError for unknown operations,
// *ArgumentError for malformed arguments and *OperationError for anything
// the handler itself returns.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	d.mu.RLock()
	rt, ok := d.routes[req.Operation]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("unsupported operation", "operation", req.Operation)
		return Response{}, &UnsupportedOperationError{Operation: req.Operation}
	}

	if err := rt.arity.check(len(req.Args)); err != nil {
		return Response{}, &ArgumentError{Operation: req.Operation, Reason: err.Error()}
	}

	d.logger.Debug("dispatching operation", "operation", req.Operation, "args", len(req.Args))

	result, err := rt.handler(ctx, req)
	if err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			return Response{}, err
		}
		return Response{}, &OperationError{Operation: req.Operation, Err: err}
	}
	if result == nil {
		result = []string{}
	}
	return Response{Result: result}, nil
}
