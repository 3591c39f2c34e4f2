package mp4

import (
	"fmt"
	"io"
	"os"

	"github.com/headcamlab/headcam/core/errors"
)

// ExtractHighlights returns the highlight-button timestamps recorded in a
// GoPro MP4, in seconds, in file order. HERO6 and later store them as
// MANL records inside the GPMF user-data payload; older cameras store a
// bare millisecond list in an HMMT box. A file with neither box simply
// has no highlights.
func ExtractHighlights(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return extractHighlights(f, path)
}

func extractHighlights(r io.ReadSeeker, path string) ([]float64, error) {
	udtaBoxes, err := descendUserData(r, path)
	if err != nil {
		return nil, err
	}
	if gpmf, found := udtaBoxes[TagGPMF]; found {
		return scanManualHighlights(r, gpmf.Start, gpmf.End)
	}
	if hmmt, found := udtaBoxes[TagHMMT]; found {
		return readHighlightList(r, hmmt.Start, hmmt.End)
	}
	return nil, nil
}

// scanManualHighlights walks a HERO6-style GPMF payload four bytes at a
// time. Timestamps live in MANL records inside the HLMT block of the
// Highlights section; each MANL tag sits 20 bytes after its big-endian
// millisecond timestamp. Zero timestamps are placeholders and skipped.
func scanManualHighlights(r io.ReadSeeker, start, end int64) ([]float64, error) {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, errors.NewIO("seek", "", err)
	}

	var out []float64
	var word [4]byte
	inHighlights := false
	inHLMT := false
	cursor := start
	for cursor+4 <= end {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			break
		}
		cursor += 4

		switch {
		case !inHighlights && string(word[:]) == "High":
			if cursor+4 > end {
				return out, nil
			}
			if _, err := io.ReadFull(r, word[:]); err != nil {
				return out, nil
			}
			cursor += 4
			if string(word[:]) == "ligh" {
				inHighlights = true
			}
		case inHighlights && !inHLMT && string(word[:]) == "HLMT":
			inHLMT = true
		case inHighlights && inHLMT && string(word[:]) == "MANL":
			if cursor-20 < start {
				continue
			}
			if _, err := r.Seek(cursor-20, io.SeekStart); err != nil {
				return nil, errors.NewIO("seek", "", err)
			}
			if _, err := io.ReadFull(r, word[:]); err != nil {
				return out, nil
			}
			if ts := readU32(word[:]); ts != 0 {
				out = append(out, float64(ts)/1000.0)
			}
			if _, err := r.Seek(cursor, io.SeekStart); err != nil {
				return nil, errors.NewIO("seek", "", err)
			}
		}
	}
	return out, nil
}

// readHighlightList reads pre-HERO6 highlights: big-endian millisecond
// words until a zero word or the end of the HMMT payload.
func readHighlightList(r io.ReadSeeker, start, end int64) ([]float64, error) {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, errors.NewIO("seek", "", err)
	}

	var out []float64
	var word [4]byte
	for cursor := start; cursor+4 <= end; cursor += 4 {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			break
		}
		ts := readU32(word[:])
		if ts == 0 {
			break
		}
		out = append(out, float64(ts)/1000.0)
	}
	return out, nil
}

// FormatTimestamp renders a highlight time in seconds as H:MM:SS.mmm,
// the line format of the GP-Highlights sidecar files.
func FormatTimestamp(secs float64) string {
	whole := int(secs)
	ms := int((secs - float64(whole)) * 1000.0)
	whole %= 24 * 3600
	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}
