package executer

import (
	"errors"
	"os/exec"
	"strings"
)

type executor_impl struct{}

func (e *executor_impl) Exec(cmdName string, args ...string) ([]byte, error) {
	if len(strings.TrimSpace(cmdName)) == 0 {
		return nil, ErrEmptyCommand
	}
	out, err := exec.Command(cmdName, args...).CombinedOutput()
	return out, convertError(err, out)
}

func (e *executor_impl) Query(cmdName string, args ...string) ([]byte, error) {
	if len(strings.TrimSpace(cmdName)) == 0 {
		return nil, ErrEmptyCommand
	}
	cmd := exec.Command(cmdName, args...)
	// stderr stays nil, so it is discarded
	out, err := cmd.Output()
	return out, convertError(err, out)
}

func convertError(err error, out []byte) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Output: out}
	}
	return err
}
