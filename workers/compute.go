package workers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
)

const computeDefaultTimeout = 5 * time.Second

// NewCompute returns a Compute (Program-of-Thought) worker: it runs the
// goal's content as a Python program in a sandboxed child process under
// a wall-clock timeout (goal metadata "timeout" in seconds, default 5),
// grounded on original_source/src/agents/program_of_thought.py's
// tempfile-then-subprocess shape, translated to os/exec + context
// cancellation — the teacher's core/async_task.go uses the same
// pattern for a background task with a deadline, and no library in the
// pack offers process sandboxing at a lighter weight than a full
// container runtime, which this 5-second subprocess timeout does not
// warrant.
func NewCompute(interpreter string) Task {
	if interpreter == "" {
		interpreter = "python3"
	}
	return func(ctx context.Context, goal messages.AgentGoal, store *memory.Store, requestID, stepID string) ([]string, error) {
		code := goal.Content
		timeout := computeDefaultTimeout
		if v := goal.Metadata["timeout"]; v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
		}

		stdout, stderr, exitCode, err := runSandboxed(ctx, interpreter, code, timeout)
		if err != nil {
			return nil, &TaskError{
				Err:      fmt.Errorf("compute execution failed: %w", err),
				Metadata: map[string]string{"exit_code": strconv.Itoa(exitCode), "stderr": stderr},
			}
		}
		if exitCode != 0 {
			return nil, &TaskError{
				Err:      fmt.Errorf("program exited with status %d: %s", exitCode, stderr),
				Metadata: map[string]string{"exit_code": strconv.Itoa(exitCode), "stderr": stderr},
			}
		}

		const impression = "compute_output"
		store.Set(memory.ImpressionKey(requestID, stepID, impression), stdout)
		return []string{impression}, nil
	}
}

// runSandboxed writes code to a temp file and runs it under interpreter,
// bounded by timeout. exitCode is -1 on timeout or any system error that
// prevents the process from running to completion, matching the exit
// codes contract in the external interfaces section.
func runSandboxed(ctx context.Context, interpreter, code string, timeout time.Duration) (stdout, stderr string, exitCode int, err error) {
	f, err := os.CreateTemp("", "ioa-compute-*.py")
	if err != nil {
		return "", "", -1, err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		return "", "", -1, err
	}
	if err := f.Close(); err != nil {
		return "", "", -1, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, interpreter, f.Name())
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if runCtx.Err() == context.DeadlineExceeded {
		return stdout, "execution timed out", -1, fmt.Errorf("execution timed out after %s", timeout)
	}
	if runErr == nil {
		return stdout, stderr, 0, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	return stdout, stderr, -1, runErr
}
