// Package mediatools wraps the external tools the toolkit shells out
// to: ffmpeg for audio extraction, ffprobe for stream inspection, and
// gpmfdemo for telemetry stream export.
package mediatools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/config"
	"github.com/headcamlab/headcam/internal/logging"
)

// DefaultTimeout bounds an invocation when the tool has none configured.
const DefaultTimeout = 120 * time.Second

// stderrTailLines is how many trailing stderr lines are kept for error
// reporting. ffmpeg in particular is chatty and only the tail matters.
const stderrTailLines = 4

// validNameRegex validates tool names and stream tags passed on command
// lines. Only alphanumeric, hyphen, underscore, and dot characters are
// allowed.
var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateName checks that a string is safe to place on a tool command
// line as a bare identifier.
func ValidateName(name string) error {
	if name == "" {
		return headcamerrors.NewValidation("name", "cannot be empty")
	}
	if len(name) > 64 {
		return headcamerrors.NewValidation("name", "too long (max 64 characters)")
	}
	if !validNameRegex.MatchString(name) {
		return headcamerrors.NewValidation("name", "contains invalid characters (only alphanumeric, hyphen, underscore, dot allowed)")
	}
	return nil
}

// Tool is one external binary the toolkit invokes.
type Tool struct {
	// Name is the logical tool name used in errors and logs.
	Name string

	// Path is the binary to execute. A bare name is resolved through
	// PATH on first use.
	Path string

	// Timeout bounds a single invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Result captures the outcome of a tool invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
}

// Resolve locates the tool's binary. Paths containing a separator are
// checked directly; bare names are resolved through PATH. The resolved
// path is cached on the Tool.
func (t *Tool) Resolve() (string, error) {
	path := t.Path
	if path == "" {
		path = t.Name
	}

	if strings.ContainsRune(path, os.PathSeparator) {
		if _, err := os.Stat(path); err != nil {
			return "", headcamerrors.NewTool(t.Name, -1, "", fmt.Errorf("configured path %s: %w", path, err))
		}
		t.Path = path
		return path, nil
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", headcamerrors.NewTool(t.Name, -1, "", fmt.Errorf("%s not found in PATH", path))
	}
	t.Path = resolved
	return resolved, nil
}

// Run executes the tool with the given arguments, bounded by the tool's
// timeout. A non-zero exit or a killed process yields a ToolError whose
// Stderr carries the trailing diagnostic lines; the partial Result is
// still returned alongside it.
func (t *Tool) Run(ctx context.Context, args ...string) (*Result, error) {
	binary, err := t.Resolve()
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		ExitCode: 0,
		Duration: duration,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}

	if runErr != nil {
		exitCode := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		result.ExitCode = exitCode

		cause := runErr
		if runCtx.Err() == context.DeadlineExceeded {
			cause = fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
		}

		logging.ToolRun(t.Name, args, exitCode, duration)
		return result, headcamerrors.NewTool(t.Name, exitCode, tailLines(stderr.String(), stderrTailLines), cause)
	}

	logging.ToolRun(t.Name, args, 0, duration)
	return result, nil
}

// tailLines returns the last n non-empty lines of s joined by newlines.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}

// Toolset bundles the tools the toolkit needs, resolved from config.
type Toolset struct {
	FFmpeg   *Tool
	FFprobe  *Tool
	GPMFDemo *Tool
}

// FromConfig builds a Toolset from the configured tool paths. Binaries
// are resolved lazily, so commands that never touch a tool do not
// require it to be installed.
func FromConfig(cfg *config.Config) *Toolset {
	timeout := cfg.ToolTimeout()
	return &Toolset{
		FFmpeg:   &Tool{Name: "ffmpeg", Path: cfg.Tools.FFmpeg, Timeout: timeout},
		FFprobe:  &Tool{Name: "ffprobe", Path: cfg.Tools.FFprobe, Timeout: timeout},
		GPMFDemo: &Tool{Name: "gpmfdemo", Path: cfg.Tools.GPMFDemo, Timeout: timeout},
	}
}
