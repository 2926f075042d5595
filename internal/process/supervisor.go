package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// outputBufferSize is the read size for child stdout/stderr chunks.
const outputBufferSize = 4096

// Config holds supervisor tuning.
type Config struct {
	// KillGrace is how long a terminated build may take to exit before the
	// process group is force-killed. Zero disables escalation.
	KillGrace time.Duration

	// EventBuffer is the capacity of each process's event channel.
	EventBuffer int

	// MaxProcesses caps concurrently registered builds. Zero means unlimited.
	MaxProcesses int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KillGrace:   10 * time.Second,
		EventBuffer: 256,
	}
}

// LaunchRequest describes a wrapper invocation.
type LaunchRequest struct {
	// WorkDir is the project directory containing the wrapper script.
	WorkDir string

	// Args are passed to the wrapper verbatim.
	Args []string

	// JavaHome overrides JAVA_HOME for the child when non-empty.
	JavaHome string

	// Env holds extra variables; entries with empty values are skipped.
	Env map[string]string
}

// environ returns the child environment, or nil to inherit ours unchanged.
func (r LaunchRequest) environ() []string {
	keys := make([]string, 0, len(r.Env))
	for k, v := range r.Env {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 && r.JavaHome == "" {
		return nil
	}
	sort.Strings(keys)

	// exec dedups keys, keeping the last value.
	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+r.Env[k])
	}
	if r.JavaHome != "" {
		env = append(env, "JAVA_HOME="+r.JavaHome)
	}
	return env
}

// WrapperPath returns the platform wrapper script inside dir.
func WrapperPath(dir string) string {
	return filepath.Join(dir, WrapperName)
}

// Observer is told about build lifecycles. Hooks run on supervisor
// goroutines and should return quickly.
type Observer interface {
	ProcessStarted(info Info)
	ProcessExited(run Run)
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSink sets where relayed events are delivered.
func WithSink(sink Sink) Option {
	return func(s *Supervisor) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithObserver adds a lifecycle observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Supervisor spawns, tracks and terminates wrapper builds.
//
// Thread Safety: all methods are safe for concurrent use.
type Supervisor struct {
	cfg       Config
	registry  *Registry
	sink      Sink
	observers []Observer
	logger    Logger

	// mu guards closed and serialises Spawn, so the process limit check
	// and the registration happen together and Shutdown cannot miss a
	// build that is mid-registration.
	mu     sync.Mutex
	closed bool

	// relays counts running relay goroutines, observers included.
	relays sync.WaitGroup

	// OS hooks, replaceable in tests.
	terminateFn func(p *os.Process) error
	forceKillFn func(p *os.Process) error
}

// NewSupervisor creates a supervisor with an empty registry.
func NewSupervisor(cfg Config, opts ...Option) *Supervisor {
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 1
	}
	s := &Supervisor{
		cfg:         cfg,
		registry:    NewRegistry(),
		sink:        discardSink{},
		logger:      noopLogger{},
		terminateFn: terminateProcess,
		forceKillFn: forceKillProcess,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Registry exposes the supervisor's registry.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Spawn starts the wrapper script in req.WorkDir and returns its id without
// waiting for it to finish. Output and exit are delivered to the sink.
//
// ctx only bounds the spawn itself; the build outlives it.
func (s *Supervisor) Spawn(ctx context.Context, req LaunchRequest) (ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.WorkDir == "" {
		return "", ErrNoWorkDir
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrShuttingDown
	}
	if s.cfg.MaxProcesses > 0 && s.registry.Len() >= s.cfg.MaxProcesses {
		return "", ErrProcessLimit
	}

	wrapper := WrapperPath(req.WorkDir)
	cmd := exec.Command(wrapper, req.Args...) //nolint:gosec // wrapper is always <workdir>/gradlew
	cmd.Dir = req.WorkDir
	cmd.Env = req.environ()
	setProcAttrs(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &SpawnError{Wrapper: wrapper, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", &SpawnError{Wrapper: wrapper, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return "", &SpawnError{Wrapper: wrapper, Err: err}
	}

	id := ID(strconv.Itoa(cmd.Process.Pid))
	h := newHandle(Info{
		PID:       id,
		WorkDir:   req.WorkDir,
		Wrapper:   wrapper,
		Args:      append([]string(nil), req.Args...),
		JavaHome:  req.JavaHome,
		StartedAt: time.Now(),
	}, cmd)

	// Register before the relay starts so its deregistration always
	// finds the entry (or a newer one).
	if stale := s.registry.Insert(id, h); stale != nil {
		s.logger.Warn("replaced stale registry entry", "pid", id)
	}

	for _, o := range s.observers {
		o.ProcessStarted(h.info)
	}

	s.relays.Add(1)
	go s.relay(h, stdout, stderr)

	s.logger.Info("process spawned",
		"pid", id,
		"dir", req.WorkDir,
		"args", req.Args,
	)
	return id, nil
}

// Kill requests termination of the build registered under id and returns
// without waiting. Unknown ids (already exited or already killed) are
// ignored. The exit event still arrives later through the relay.
func (s *Supervisor) Kill(id ID) error {
	h, ok := s.registry.Remove(id)
	if !ok {
		s.logger.Debug("kill ignored, process not registered", "pid", id)
		return nil
	}
	s.terminate(h)
	return nil
}

// terminate sends the OS termination request at most once per handle and
// arms the force-kill escalation.
func (s *Supervisor) terminate(h *Handle) {
	h.terminateOnce.Do(func() {
		h.killed.Store(true)
		if h.hasExited() {
			return
		}
		s.logger.Info("terminating process", "pid", h.info.PID)
		if err := s.terminateFn(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("failed to terminate process", "pid", h.info.PID, "error", err)
		}
		if s.cfg.KillGrace > 0 {
			go s.escalate(h)
		}
	})
}

func (s *Supervisor) escalate(h *Handle) {
	timer := time.NewTimer(s.cfg.KillGrace)
	defer timer.Stop()

	select {
	case <-h.exited:
		return
	case <-timer.C:
	}
	s.logger.Warn("grace period elapsed, force killing process",
		"pid", h.info.PID,
		"grace", s.cfg.KillGrace,
	)
	if err := s.forceKillFn(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("failed to force kill process", "pid", h.info.PID, "error", err)
	}
}

// List returns the registered builds ordered by start time.
func (s *Supervisor) List() []Info {
	handles := s.registry.Handles()
	infos := make([]Info, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, h.info)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Count returns the number of registered builds.
func (s *Supervisor) Count() int {
	return s.registry.Len()
}

// Shutdown refuses further spawns, terminates every registered build and
// waits until every relay, observers included, has finished or ctx is done.
// Builds still running when ctx expires are force-killed.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	handles := s.registry.Drain()
	if len(handles) > 0 {
		s.logger.Info("shutting down supervisor", "processes", len(handles))
	}
	for _, h := range handles {
		s.terminate(h)
	}

	// No Add can follow: Spawn adds under mu and closed is now set.
	done := make(chan struct{})
	go func() {
		s.relays.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forceKillRemaining(handles)
		return ctx.Err()
	}
}

func (s *Supervisor) forceKillRemaining(handles []*Handle) {
	for _, h := range handles {
		if h.hasExited() {
			continue
		}
		if err := s.forceKillFn(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("failed to force kill process", "pid", h.info.PID, "error", err)
		}
	}
}
