// gemini.go implements the Agent interface for the Gemini CLI.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrAgentFailed is returned when the CLI reports an error in its output.
var ErrAgentFailed = errors.New("agent reported an error")

// GeminiAgent runs prompts through the Gemini CLI in headless mode.
type GeminiAgent struct {
	binaryPath string        // Path to gemini binary (default: "gemini")
	timeout    time.Duration // Default timeout
	runner     CommandRunner // Command executor (for testing)
	model      string        // Model to use; empty = CLI default
}

// GeminiOption configures a GeminiAgent.
type GeminiOption func(*GeminiAgent)

// WithGeminiBinaryPath sets a custom path to the gemini binary.
func WithGeminiBinaryPath(path string) GeminiOption {
	return func(a *GeminiAgent) {
		if path != "" {
			a.binaryPath = path
		}
	}
}

// WithGeminiDefaultTimeout sets the default execution timeout.
func WithGeminiDefaultTimeout(d time.Duration) GeminiOption {
	return func(a *GeminiAgent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithGeminiModel sets the model to use (e.g., "gemini-2.5-flash").
func WithGeminiModel(model string) GeminiOption {
	return func(a *GeminiAgent) {
		a.model = model
	}
}

// WithGeminiRunner sets a custom command runner (for testing).
func WithGeminiRunner(r CommandRunner) GeminiOption {
	return func(a *GeminiAgent) {
		a.runner = r
	}
}

// NewGeminiAgent creates a Gemini CLI agent.
func NewGeminiAgent(opts ...GeminiOption) *GeminiAgent {
	a := &GeminiAgent{
		binaryPath: "gemini",
		timeout:    DefaultTimeout,
		runner:     &ExecRunner{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns "gemini".
func (a *GeminiAgent) Name() string {
	return "gemini"
}

// Model returns the configured model, or "" for the CLI default.
func (a *GeminiAgent) Model() string {
	return a.model
}

// geminiEnvelope is the --output-format json wrapper printed by the CLI.
type geminiEnvelope struct {
	Response string          `json:"response"`
	Stats    json.RawMessage `json:"stats,omitempty"`
	Error    *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Execute runs gemini in headless mode with the given prompt.
func (a *GeminiAgent) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	start := time.Now()

	timeout := a.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The prompt must immediately follow -p as its value.
	var args []string
	if opts.Prompt != "" {
		args = append(args, "-p", opts.Prompt)
	}
	if a.model != "" {
		args = append(args, "-m", a.model)
	}
	args = append(args, "--output-format", "json")

	stdout, stderr, exitCode, err := a.runner.Run(ctx, a.binaryPath, args, opts.WorkDir, "")

	result := &ExecuteResult{
		Output:   stdout,
		ExitCode: exitCode,
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.Error = fmt.Sprintf("timeout after %v", timeout)
		result.ExitCode = -1
		return result, ctx.Err()
	}
	if ctx.Err() != nil {
		result.Error = ctx.Err().Error()
		result.ExitCode = -1
		return result, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = strings.TrimSpace(stderr)
		} else {
			result.Error = err.Error()
		}
		return result, err
	}

	var env geminiEnvelope
	if json.Unmarshal([]byte(stdout), &env) == nil {
		if env.Error != nil {
			result.Error = env.Error.Message
			return result, fmt.Errorf("%w: %s", ErrAgentFailed, env.Error.Message)
		}
		if env.Response != "" {
			result.Output = env.Response
		}
	}

	result.JSON = ExtractJSON([]byte(result.Output))
	return result, nil
}

// Available checks if the gemini binary is available in PATH.
func (a *GeminiAgent) Available() bool {
	_, err := exec.LookPath(a.binaryPath)
	return err == nil
}

// Version returns the gemini CLI version.
func (a *GeminiAgent) Version(ctx context.Context) (string, error) {
	stdout, _, _, err := a.runner.Run(ctx, a.binaryPath, []string{"--version"}, "", "")
	if err != nil {
		return "", fmt.Errorf("getting version: %w", err)
	}
	return strings.TrimSpace(stdout), nil
}
