//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// WrapperName is the Gradle wrapper script for this platform.
const WrapperName = "gradlew.bat"

func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

// Windows has no graceful termination signal for console children.
func terminateProcess(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}
	return p.Kill()
}

func forceKillProcess(p *os.Process) error {
	return terminateProcess(p)
}

func exitStatus(ps *os.ProcessState) (code, signal *int) {
	if ps == nil {
		return nil, nil
	}
	c := ps.ExitCode()
	if c < 0 {
		return nil, nil
	}
	return &c, nil
}
