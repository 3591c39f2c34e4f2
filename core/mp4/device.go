package mp4

import (
	"io"
	"os"
	"strings"

	"github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/logging"
)

// ExtractDeviceID returns the camera device name recorded in the GPMF
// user-data box of an MP4 file. The file must begin with an ftyp box and
// carry moov, udta and GPMF at their expected levels; a violation is an
// InvalidContainerFormat error naming the file and the box. A GPMF box
// without a readable identifier record yields an empty string, which is
// a valid, if uninteresting, result.
func ExtractDeviceID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer f.Close()
	return extractDeviceID(f, path)
}

// extractDeviceID is the seekable-stream form of ExtractDeviceID, split
// out so synthetic in-memory containers can drive it.
func extractDeviceID(r io.ReadSeeker, path string) (string, error) {
	udtaBoxes, err := descendUserData(r, path)
	if err != nil {
		return "", err
	}
	gpmf, found := udtaBoxes[TagGPMF]
	if !found {
		return "", errors.NewContainer(path, TagGPMF)
	}

	id, err := ReadIdentifier(r, gpmf.Start, gpmf.End)
	if err != nil {
		if errors.Is(err, errors.ErrTruncatedIdentifier) {
			// Identifier record absent or cut short: report nothing
			// rather than failing the file.
			logging.Debug("device identifier record not found", "path", path)
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// ReadIdentifier scans the byte range of a GPMF payload for the CASN
// marker and assembles the device identifier from the MINF text chunks
// that follow it.
//
// The marker scan advances four bytes at a time and is bounded by end; a
// range exhausted before the marker is a TruncatedIdentifier error. After
// the marker and its reserved word, chunks are read as a 4-byte tag, a
// 4-byte big-endian length and that many bytes of UTF-8 text. Any tag
// other than MINF, the zeroed sentinel included, ends the list, as does a
// chunk that would overrun the range. Trailing whitespace and control
// bytes are trimmed from the assembled string.
func ReadIdentifier(r io.ReadSeeker, start, end int64) (string, error) {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return "", errors.NewIO("seek", "", err)
	}

	cursor := start
	var word [4]byte
	found := false
	for cursor+4 <= end {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			break
		}
		cursor += 4
		if string(word[:]) == tagCASN {
			found = true
			break
		}
	}
	if !found {
		return "", errors.NewIdentifier(cursor)
	}

	// Skip the reserved word that follows the marker.
	if cursor+4 > end {
		return "", nil
	}
	if _, err := io.ReadFull(r, word[:]); err != nil {
		return "", nil
	}
	cursor += 4

	var sb strings.Builder
	for cursor+8 <= end {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			break
		}
		cursor += 4
		if string(word[:]) != tagMINF {
			break
		}
		if _, err := io.ReadFull(r, word[:]); err != nil {
			break
		}
		cursor += 4
		n := int64(readU32(word[:]))
		if cursor+n > end {
			break
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			break
		}
		cursor += n
		sb.Write(chunk)
	}

	return strings.TrimRightFunc(sb.String(), func(c rune) bool {
		return c <= ' '
	}), nil
}
