package cmd

import (
	"strconv"

	"github.com/aelpxy/dockup/internal/backup"
)

const (
	ExitOK       = 0
	ExitUsage    = 1
	ExitDegraded = 2
	ExitAborted  = 3
	ExitLocked   = 4
)

// exitError carries a process exit code out of a command. A nil err means
// the command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCodeFor(status backup.RunStatus) int {
	switch status {
	case backup.RunAllOK:
		return ExitOK
	case backup.RunDegraded:
		return ExitDegraded
	default:
		return ExitAborted
	}
}
