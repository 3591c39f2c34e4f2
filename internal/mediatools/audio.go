package mediatools

import (
	"context"
	"os"
	"path/filepath"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/naming"
)

// ExtractWAV extracts a recording's audio track as 16 kHz mono PCM,
// the format the speech tooling downstream consumes. The WAV is
// written next to the video, or under outDir when given, as
// <stem>.wav. Returns the written path.
func ExtractWAV(ctx context.Context, ffmpeg *Tool, videoPath, outDir string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", headcamerrors.NewIO("open recording", videoPath, err)
	}

	dir := filepath.Dir(videoPath)
	if outDir != "" {
		dir = outDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", headcamerrors.NewIO("create output dir", dir, err)
		}
	}
	stem, _ := naming.SplitExt(filepath.Base(videoPath))
	outPath := filepath.Join(dir, stem+".wav")

	_, err := ffmpeg.Run(ctx,
		"-y", // overwrite a stale export
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		outPath,
	)
	if err != nil {
		return "", err
	}
	return outPath, nil
}
