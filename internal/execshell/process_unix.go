//go:build unix

package execshell

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

const defaultShellConstant = "/bin/sh"

var defaultShellArguments = []string{"-c"}

// configureProcessGroup places the shell in its own process group so signals can reach its children.
func configureProcessGroup(executable *exec.Cmd) {
	executable.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func hangUpProcess(process *os.Process) error {
	return signalProcessAndGroup(process, unix.SIGHUP)
}

func killProcess(process *os.Process) error {
	return signalProcessAndGroup(process, unix.SIGKILL)
}

func signalProcessAndGroup(process *os.Process, signal syscall.Signal) error {
	if process == nil {
		return nil
	}

	groupError := unix.Kill(-process.Pid, signal)
	if errors.Is(groupError, unix.ESRCH) {
		groupError = nil
	}

	processError := ignoreProcessDone(process.Signal(signal))
	if errors.Is(processError, unix.ESRCH) {
		processError = nil
	}

	return errors.Join(groupError, processError)
}
