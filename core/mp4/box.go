// Package mp4 provides read-only traversal of the ISO-BMFF box structure
// found in GoPro MP4 files, plus extraction of the metadata the dataset
// pipeline cares about: the camera device name and the recorded highlight
// timestamps, both buried in the moov/udta user-data region.
//
// The package never demuxes media, touches codec data, or writes boxes.
package mp4

import (
	"encoding/binary"
	"io"

	"github.com/headcamlab/headcam/core/errors"
)

// Box tags involved in metadata extraction.
const (
	TagFtyp = "ftyp"
	TagMoov = "moov"
	TagUdta = "udta"
	TagGPMF = "GPMF"
	TagHMMT = "HMMT"

	tagCASN = "CASN"
	tagMINF = "MINF"
)

// EndOfStream marks an unbounded enumeration range: boxes are read until
// the stream itself runs out, which is the normal way to scan the top
// level of a file.
const EndOfStream int64 = -1

// headerSize is the fixed box header: a 4-byte big-endian length followed
// by a 4-byte tag. The length counts the header itself.
const headerSize = 8

// Extent is the absolute byte range of a box payload, header excluded.
type Extent struct {
	Start int64
	End   int64
}

// Len returns the payload size in bytes.
func (e Extent) Len() int64 {
	return e.End - e.Start
}

// BoxTable maps a box tag to its payload extent at one nesting level.
// When a tag repeats at the same level the last occurrence wins; callers
// that care about duplicates must not.
type BoxTable map[string]Extent

// readU32 decodes a big-endian unsigned 32-bit integer. Every multi-byte
// field read out of the container goes through here.
func readU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// ReadHeader reads the box header at the given absolute offset. ok is
// false when the stream ends before a complete header could be read,
// which is normal termination for a top-level scan, not an error.
func ReadHeader(r io.ReadSeeker, offset int64) (length uint32, tag string, ok bool, err error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0, "", false, errors.NewIO("seek", "", err)
	}
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, "", false, nil
		}
		return 0, "", false, errors.NewIO("read", "", err)
	}
	return readU32(hdr[:4]), string(hdr[4:8]), true, nil
}

// EnumerateBoxes scans the sequential boxes between start and end and
// returns the payload extent recorded for each tag. end may be
// EndOfStream to scan until the stream is exhausted.
//
// A declared box length below the 8-byte header size, or one that would
// carry the box past a finite end, is a MalformedBoxHeader error. After a
// successful bounded enumeration the stream cursor sits exactly at end;
// the scan never reads past it.
func EnumerateBoxes(r io.ReadSeeker, start, end int64) (BoxTable, error) {
	table := make(BoxTable)
	cursor := start
	for end == EndOfStream || cursor < end {
		length, tag, ok, err := ReadHeader(r, cursor)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Stream exhausted mid-header: return what was collected.
			return table, nil
		}
		if length < headerSize {
			return nil, errors.NewBoxHeader(cursor, length)
		}
		next := cursor + int64(length)
		if end != EndOfStream && next > end {
			return nil, errors.NewBoxHeader(cursor, length)
		}
		table[tag] = Extent{Start: cursor + headerSize, End: next}
		cursor = next
	}
	// Bounded range fully consumed: leave the cursor at end.
	if _, err := r.Seek(cursor, io.SeekStart); err != nil {
		return nil, errors.NewIO("seek", "", err)
	}
	return table, nil
}

// descendUserData verifies the file leads with ftyp, then walks
// moov -> udta and returns the box table inside udta. This is the shared
// descent for device-name and highlight extraction.
func descendUserData(r io.ReadSeeker, path string) (BoxTable, error) {
	_, tag, ok, err := ReadHeader(r, 0)
	if err != nil {
		return nil, err
	}
	if !ok || tag != TagFtyp {
		return nil, &errors.ContainerError{
			Path:   path,
			Box:    TagFtyp,
			Reason: "file does not begin with an ftyp box",
		}
	}

	top, err := EnumerateBoxes(r, 0, EndOfStream)
	if err != nil {
		return nil, &errors.ContainerError{
			Path:   path,
			Box:    TagFtyp,
			Reason: "malformed top-level box",
			Err:    err,
		}
	}
	moov, found := top[TagMoov]
	if !found {
		return nil, errors.NewContainer(path, TagMoov)
	}

	moovBoxes, err := EnumerateBoxes(r, moov.Start, moov.End)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	udta, found := moovBoxes[TagUdta]
	if !found {
		return nil, errors.NewContainer(path, TagUdta)
	}

	udtaBoxes, err := EnumerateBoxes(r, udta.Start, udta.End)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return udtaBoxes, nil
}
