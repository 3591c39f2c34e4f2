// Package telemetry exports GoPro sensor streams (GPMF) from
// recordings into per-tag text files and converts the motion streams
// into combined CSVs.
package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/mediatools"
	"github.com/headcamlab/headcam/internal/naming"
)

// AllTags lists the sensor stream tags the toolkit exports by default.
var AllTags = []string{
	"ACCL", "GYRO", "SHUT", "WBAL", "WRGB", "ISOE", "UNIF", "FACE",
	"CORI", "MSKP", "IORI", "GRAV", "WNDM", "MWET", "AALP", "LSKP",
}

// TagDescriptions maps stream tags to short descriptions for listings.
var TagDescriptions = map[string]string{
	"ACCL": "accelerometer (m/s^2)",
	"GYRO": "gyroscope (rad/s)",
	"SHUT": "exposure time (s)",
	"WBAL": "white balance (K)",
	"WRGB": "white balance RGB gains",
	"ISOE": "sensor ISO",
	"UNIF": "image uniformity",
	"FACE": "face detection boxes",
	"CORI": "camera orientation quaternion",
	"MSKP": "main video frame skips",
	"IORI": "image orientation quaternion",
	"GRAV": "gravity vector",
	"WNDM": "wind processing flag",
	"MWET": "microphone wet flag",
	"AALP": "audio levels (dBFS)",
	"LSKP": "low-res video frame skips",
}

// tagPattern matches a four-character stream tag.
var tagPattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// ValidateTag checks that a string is a plausible stream tag before it
// is placed on a gpmfdemo command line.
func ValidateTag(tag string) error {
	if !tagPattern.MatchString(tag) {
		return headcamerrors.NewValidation("tag",
			fmt.Sprintf("%q is not a four-character stream tag", tag))
	}
	return nil
}

// IsKnownTag reports whether tag is in the default catalog.
func IsKnownTag(tag string) bool {
	for _, t := range AllTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Extractor exports sensor streams with gpmfdemo.
type Extractor struct {
	tool *mediatools.Tool
}

// NewExtractor creates an Extractor around the given gpmfdemo tool.
func NewExtractor(tool *mediatools.Tool) *Extractor {
	return &Extractor{tool: tool}
}

// ExtractFile exports the requested stream tags for one video into its
// metadata directory (<stem>_metadata beside the video), one
// <TAG>_meta.txt per tag. An empty tag list means the full catalog.
//
// The per-tag invocation is bounded by the tool's timeout, and an
// export whose output reports an error fails the video even when the
// tool exits zero. The metadata directory path is returned so callers
// can bundle it afterwards.
func (e *Extractor) ExtractFile(ctx context.Context, videoPath string, tags []string) (string, error) {
	if len(tags) == 0 {
		tags = AllTags
	}
	for _, tag := range tags {
		if err := ValidateTag(tag); err != nil {
			return "", err
		}
	}

	metaDir := naming.MetadataDir(videoPath)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return "", headcamerrors.NewIO("create", metaDir, err)
	}

	for _, tag := range tags {
		res, err := e.tool.Run(ctx, videoPath, "-f"+tag, "-a")
		if err != nil {
			return metaDir, headcamerrors.Wrapf(err, "exporting %s from %s", tag, videoPath)
		}
		if exportReportsError(res.Stdout) {
			return metaDir, headcamerrors.NewTool(e.tool.Name, res.ExitCode,
				tailOf(res.Stdout), fmt.Errorf("%s export reported an error", tag))
		}

		outPath := filepath.Join(metaDir, tag+"_meta.txt")
		if err := os.WriteFile(outPath, res.Stdout, 0644); err != nil {
			return metaDir, headcamerrors.NewIO("write", outPath, err)
		}
	}

	return metaDir, nil
}

// exportReportsError detects failures gpmfdemo only reports in its
// output while still exiting zero.
func exportReportsError(out []byte) bool {
	return bytes.Contains(bytes.ToLower(out), []byte("error"))
}

// tailOf returns the last line of out for diagnostics.
func tailOf(out []byte) string {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return ""
	}
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return string(bytes.TrimSpace(trimmed))
}
