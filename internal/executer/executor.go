package executer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Runs external commands. No shell is involved, arguments are passed as argv.
type Executer interface {
	// Runs the command and returns stdout and stderr combined.
	Exec(cmdName string, args ...string) ([]byte, error)
	// Runs the command and returns stdout only. Diagnostic output on stderr is discarded.
	Query(cmdName string, args ...string) ([]byte, error)
}

var ErrEmptyCommand = errors.New("empty command")

// Returned when a command terminates with a non-zero exit code.
type ExitError struct {
	Code   int
	Output []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Result of the latest command invocation.
type Result struct {
	ExitCode int
	Output   []string
	Time     time.Time
}

func NewExecuter() Executer {
	var e executor_impl
	return &e
}

// Returns 0 for a nil error, the exit code for an *ExitError and -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func NewResult(out []byte, err error) Result {
	var lines []string
	for line := range strings.SplitSeq(strings.ReplaceAll(string(out), "\r", ""), "\n") {
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return Result{ExitCode: ExitCode(err), Output: lines, Time: time.Now()}
}
