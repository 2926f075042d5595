//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// WrapperName is the Gradle wrapper script for this platform.
const WrapperName = "gradlew"

// setProcAttrs starts the child in its own process group so the whole
// Gradle tree can be signalled at once.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func forceKillProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

// signalGroup signals the process group led by p, falling back to p alone
// if the group is already gone.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return os.ErrProcessDone
	}
	err := syscall.Kill(-p.Pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return p.Signal(sig)
	}
	return err
}

// exitStatus extracts the exit code or terminating signal. Exactly one of
// the results is non-nil when the OS reported a status.
func exitStatus(ps *os.ProcessState) (code, signal *int) {
	if ps == nil {
		return nil, nil
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		c := ps.ExitCode()
		return &c, nil
	}
	if ws.Signaled() {
		sig := int(ws.Signal())
		return nil, &sig
	}
	c := ws.ExitStatus()
	return &c, nil
}
