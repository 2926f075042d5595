package process

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Info describes a spawned build.
type Info struct {
	PID       ID        `json:"pid"`
	WorkDir   string    `json:"work_dir"`
	Wrapper   string    `json:"wrapper"`
	Args      []string  `json:"args"`
	JavaHome  string    `json:"java_home,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Run is the completed record of a build, handed to Observers after its
// exit event has been relayed.
type Run struct {
	Info
	ExitedAt    time.Time `json:"exited_at"`
	Code        *int      `json:"code,omitempty"`
	Signal      *int      `json:"signal,omitempty"`
	Killed      bool      `json:"killed"`
	StdoutBytes int64     `json:"stdout_bytes"`
	StderrBytes int64     `json:"stderr_bytes"`
}

// Duration returns how long the build ran.
func (r Run) Duration() time.Duration {
	return r.ExitedAt.Sub(r.StartedAt)
}

// Handle is the supervisor's grip on one live child.
type Handle struct {
	info Info
	cmd  *exec.Cmd

	// exited is closed once cmd.Wait has returned.
	exited chan struct{}

	terminateOnce sync.Once
	killed        atomic.Bool

	stdoutBytes atomic.Int64
	stderrBytes atomic.Int64
}

func newHandle(info Info, cmd *exec.Cmd) *Handle {
	return &Handle{
		info:   info,
		cmd:    cmd,
		exited: make(chan struct{}),
	}
}

// Info returns the launch description of the handle's process.
func (h *Handle) Info() Info {
	return h.info
}

// Killed reports whether termination was requested for this process.
func (h *Handle) Killed() bool {
	return h.killed.Load()
}

func (h *Handle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}
