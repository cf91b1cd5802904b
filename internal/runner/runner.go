package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Timeout bounds every code run. A run that exceeds it yields a deterministic
// timeout result, never a hang.
const Timeout = 5 * time.Second

// Result is the captured outcome of one code run.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out"`
}

// Output renders the result the way the chat console shows it.
func (r Result) Output() string {
	if r.TimedOut {
		return "Error: Execution timed out (limit: 5 seconds)."
	}
	if r.Stderr != "" {
		return fmt.Sprintf("Error:\n%s\nOutput:\n%s", r.Stderr, r.Stdout)
	}
	if r.Stdout == "" {
		return "Code executed successfully (no output)."
	}
	return r.Stdout
}

// Service runs user-supplied source through the sandboxed execution backend.
type Service interface {
	Run(ctx context.Context, language, source string) Result
}

// Subprocess executes python in a child process with a bounded deadline.
// Languages other than python are treated as static markup and echoed back
// verbatim as the result.
type Subprocess struct {
	PythonBin string
	log       zerolog.Logger
}

func NewSubprocess(pythonBin string, log zerolog.Logger) *Subprocess {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return &Subprocess{PythonBin: pythonBin, log: log.With().Str("component", "runner").Logger()}
}

func (s *Subprocess) Run(ctx context.Context, language, source string) Result {
	if language != "python" {
		return Result{Stdout: source}
	}

	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.PythonBin, "-c", source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			s.log.Warn().Err(err).Msg("exec failed")
			result.Stderr = err.Error()
			result.ExitCode = -1
		}
	}
	return result
}
