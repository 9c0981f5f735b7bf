// Package agents runs prompts through locally installed model CLIs.
// Providers use an agent when no API key is available.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 5 * time.Minute

// Agent is the interface for CLI prompt execution.
type Agent interface {
	// Name returns the agent identifier.
	Name() string

	// Execute runs a prompt and returns the output.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
}

// ExecuteOptions configures an agent execution.
type ExecuteOptions struct {
	Prompt  string        // Prompt text, passed non-interactively
	WorkDir string        // Working directory for the process
	Timeout time.Duration // Execution timeout (0 = default)
}

// ExecuteResult holds the outcome of an agent execution.
type ExecuteResult struct {
	Output   string        // Model text, unwrapped from the CLI envelope
	JSON     []byte        // First JSON value found in Output, if any
	ExitCode int           // Process exit code
	Duration time.Duration // Execution duration
	Error    string        // Error message if failed
}

// IsSuccess returns true if the execution succeeded.
func (r *ExecuteResult) IsSuccess() bool {
	return r.ExitCode == 0 && r.Error == ""
}

// CommandRunner executes shell commands. Allows mocking in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, dir string, stdin string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner is the default CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns output.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, dir string, stdin string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, err
}

// ExtractJSON returns the first complete JSON object or array in output,
// or nil. Braces inside string literals are ignored.
func ExtractJSON(output []byte) []byte {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return trimmed
	}

	for start := 0; start < len(output); start++ {
		if output[start] != '{' && output[start] != '[' {
			continue
		}
		if end := matchClose(output, start); end > 0 {
			candidate := output[start : end+1]
			if json.Valid(candidate) {
				return candidate
			}
		}
	}
	return nil
}

// matchClose returns the index closing the value opened at start, or -1.
func matchClose(output []byte, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := output[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
