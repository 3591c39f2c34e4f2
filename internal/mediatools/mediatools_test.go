package mediatools

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/config"
)

// shTool returns a Tool wrapping /bin/sh for exercising the harness
// without any media tools installed.
func shTool(t *testing.T) *Tool {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return &Tool{Name: "sh", Path: "sh"}
}

// TestRunCapturesStdout verifies stdout is captured and the exit code
// is zero on success.
func TestRunCapturesStdout(t *testing.T) {
	tool := shTool(t)

	res, err := tool.Run(context.Background(), "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "hello" {
		t.Errorf("Stdout = %q, want %q", got, "hello")
	}
}

// TestRunNonZeroExit verifies a failing tool yields a ToolError with
// the exit code and stderr tail, and still returns the partial result.
func TestRunNonZeroExit(t *testing.T) {
	tool := shTool(t)

	res, err := tool.Run(context.Background(), "-c", "echo bad >&2; exit 3")
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	if res == nil {
		t.Fatal("Run returned nil result alongside error")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}

	var toolErr *headcamerrors.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %T, want *ToolError", err)
	}
	if toolErr.ExitCode != 3 {
		t.Errorf("ToolError.ExitCode = %d, want 3", toolErr.ExitCode)
	}
	if !strings.Contains(toolErr.Stderr, "bad") {
		t.Errorf("ToolError.Stderr = %q, want to contain %q", toolErr.Stderr, "bad")
	}
	if !errors.Is(err, headcamerrors.ErrToolFailure) {
		t.Error("error does not match ErrToolFailure")
	}
}

// TestRunTimeout verifies the per-invocation timeout kills the process
// and surfaces context.DeadlineExceeded.
func TestRunTimeout(t *testing.T) {
	tool := shTool(t)
	tool.Timeout = 50 * time.Millisecond

	_, err := tool.Run(context.Background(), "-c", "sleep 5")
	if err == nil {
		t.Fatal("Run succeeded, want timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want to wrap context.DeadlineExceeded", err)
	}
}

// TestRunMissingBinary verifies an unresolvable tool reports a clear
// error.
func TestRunMissingBinary(t *testing.T) {
	tool := &Tool{Name: "gpmfdemo", Path: "definitely-not-installed-headcam"}

	_, err := tool.Run(context.Background(), "-h")
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	if !strings.Contains(err.Error(), "not found in PATH") {
		t.Errorf("error = %v, want PATH resolution failure", err)
	}
}

// TestResolveConfiguredPath verifies an explicit path must exist.
func TestResolveConfiguredPath(t *testing.T) {
	tool := &Tool{Name: "ffmpeg", Path: filepath.Join(t.TempDir(), "ffmpeg")}

	if _, err := tool.Resolve(); err == nil {
		t.Error("Resolve accepted a nonexistent configured path")
	}
}

// TestValidateName exercises the command line identifier rules.
func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"ACCL", false},
		{"gpmfdemo", false},
		{"imu_combined-1.0", false},
		{"", true},
		{"bad name", true},
		{"tag;rm", true},
		{strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

// TestFromConfig verifies configured paths and timeouts flow into the
// toolset.
func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFprobe = "/opt/ffmpeg/bin/ffprobe"
	cfg.Tools.TimeoutSeconds = 30

	ts := FromConfig(cfg)

	if ts.FFprobe.Path != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("FFprobe.Path = %q, want configured path", ts.FFprobe.Path)
	}
	if ts.GPMFDemo.Name != "gpmfdemo" {
		t.Errorf("GPMFDemo.Name = %q, want %q", ts.GPMFDemo.Name, "gpmfdemo")
	}
	if ts.FFmpeg.Timeout != 30*time.Second {
		t.Errorf("FFmpeg.Timeout = %v, want 30s", ts.FFmpeg.Timeout)
	}
}
