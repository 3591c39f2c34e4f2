package telemetry

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/headcamlab/headcam/internal/mediatools"
)

// fakeGPMFDemo writes a stand-in gpmfdemo script that prints a header
// line and one sample for whatever tag it is asked for.
func fakeGPMFDemo(t *testing.T, body string) *mediatools.Tool {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	path := filepath.Join(t.TempDir(), "gpmfdemo")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}
	return &mediatools.Tool{Name: "gpmfdemo", Path: path}
}

// TestExtractFile verifies per-tag exports land in the metadata
// directory beside the video.
func TestExtractFile(t *testing.T) {
	tool := fakeGPMFDemo(t, `tag="${2#-f}"
echo "DEVICE NAME: Fake11 Black"
echo "$tag 1.0 2.0 3.0"`)

	video := filepath.Join(t.TempDir(), "GX010042.MP4")
	ex := NewExtractor(tool)

	metaDir, err := ex.ExtractFile(context.Background(), video, []string{"ACCL", "GYRO"})
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}
	if metaDir != filepath.Join(filepath.Dir(video), "GX010042_metadata") {
		t.Errorf("metaDir = %q, want beside the video", metaDir)
	}

	for _, tag := range []string{"ACCL", "GYRO"} {
		data, err := os.ReadFile(filepath.Join(metaDir, tag+"_meta.txt"))
		if err != nil {
			t.Fatalf("reading %s export: %v", tag, err)
		}
		if !strings.Contains(string(data), tag+" 1.0 2.0 3.0") {
			t.Errorf("%s export = %q, want sample line", tag, data)
		}
	}
}

// TestExtractFileDefaultTags verifies an empty tag list exports the
// whole catalog.
func TestExtractFileDefaultTags(t *testing.T) {
	tool := fakeGPMFDemo(t, `echo "${2#-f} 0.0 0.0 0.0"`)
	video := filepath.Join(t.TempDir(), "GX010001.MP4")

	metaDir, err := NewExtractor(tool).ExtractFile(context.Background(), video, nil)
	if err != nil {
		t.Fatalf("ExtractFile failed: %v", err)
	}

	entries, err := os.ReadDir(metaDir)
	if err != nil {
		t.Fatalf("reading metadata dir: %v", err)
	}
	if len(entries) != len(AllTags) {
		t.Errorf("exported %d files, want %d", len(entries), len(AllTags))
	}
}

// TestExtractFileReportsError verifies an export whose output mentions
// an error fails the video even with a zero exit code.
func TestExtractFileReportsError(t *testing.T) {
	tool := fakeGPMFDemo(t, `echo "mp4 read error: no gpmd track"`)
	video := filepath.Join(t.TempDir(), "GX010042.MP4")

	_, err := NewExtractor(tool).ExtractFile(context.Background(), video, []string{"ACCL"})
	if err == nil {
		t.Fatal("ExtractFile succeeded on error output")
	}
	if !strings.Contains(err.Error(), "ACCL") {
		t.Errorf("error = %v, want mention of the failing tag", err)
	}
}

// TestExtractFileRejectsBadTag verifies malformed tags never reach the
// command line.
func TestExtractFileRejectsBadTag(t *testing.T) {
	tool := fakeGPMFDemo(t, `echo ok`)
	video := filepath.Join(t.TempDir(), "GX010042.MP4")

	_, err := NewExtractor(tool).ExtractFile(context.Background(), video, []string{"accl"})
	if err == nil {
		t.Fatal("ExtractFile accepted lowercase tag")
	}
	_, err = NewExtractor(tool).ExtractFile(context.Background(), video, []string{"TOOLONG"})
	if err == nil {
		t.Fatal("ExtractFile accepted overlong tag")
	}
}

// TestValidateTag exercises the tag shape check.
func TestValidateTag(t *testing.T) {
	for _, tag := range AllTags {
		if err := ValidateTag(tag); err != nil {
			t.Errorf("ValidateTag(%q) = %v, want nil", tag, err)
		}
	}
	for _, tag := range []string{"", "AC", "accl", "ACC L", "ACCL;"} {
		if err := ValidateTag(tag); err == nil {
			t.Errorf("ValidateTag(%q) = nil, want error", tag)
		}
	}
}

// TestIsKnownTag verifies catalog membership.
func TestIsKnownTag(t *testing.T) {
	if !IsKnownTag("ACCL") {
		t.Error("IsKnownTag(ACCL) = false")
	}
	if IsKnownTag("XXXX") {
		t.Error("IsKnownTag(XXXX) = true")
	}
}
