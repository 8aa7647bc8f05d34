package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/cellrun/cmd/cli"
	"github.com/temirov/cellrun/cmd/cli/execution"
)

const (
	exitErrorTemplateConstant = "%v\n"
	genericFailureExitCode    = 1
)

// main executes the cellrun command-line application and mirrors the exit code of failed commands.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}

	fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)

	var exitCodeError execution.ExitCodeError
	if errors.As(executionError, &exitCodeError) && exitCodeError.ExitCode > 0 {
		os.Exit(exitCodeError.ExitCode)
	}
	os.Exit(genericFailureExitCode)
}
