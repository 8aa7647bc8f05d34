//go:build !unix

package execshell

import (
	"os"
	"os/exec"
)

const defaultShellConstant = "cmd"

var defaultShellArguments = []string{"/C"}

func configureProcessGroup(*exec.Cmd) {}

// hangUpProcess falls back to a kill where hang-up signals do not exist.
func hangUpProcess(process *os.Process) error {
	return killProcess(process)
}

func killProcess(process *os.Process) error {
	if process == nil {
		return nil
	}
	return ignoreProcessDone(process.Kill())
}
