// Package naming parses and builds recording file names.
//
// Raw names follow the camera convention
// <subject>_<camera>_<MM.DD.YYYY-MM.DD.YYYY><ext>, for example
// 04540202_GX010042_06.15.2024-06.16.2024.MP4. LUNA recorder clips
// carry a wall-clock token instead of a camera ID:
// 04540202_LUNA_H10M30S15_06.15.2024-06.16.2024.MP4.
//
// Processed names are <subject>_<YYYY-MM-DD>_<session>_<uid><ext> with a
// 10-character unique ID, so a clip keeps its identity after renames.
package naming

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/uuid"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
)

// Sidecar prefixes for per-video text exports.
const (
	// SidecarDeviceName marks device identifier sidecar files.
	SidecarDeviceName = "GP-Device_name"
	// SidecarHighlights marks highlight timestamp sidecar files.
	SidecarHighlights = "GP-Highlights"
)

// RawName is a decoded raw recording file name.
type RawName struct {
	// Subject is the 8-digit subject ID.
	Subject string

	// CameraID is the camera file ID (e.g. "GX010042"). Empty for
	// LUNA recorder clips.
	CameraID string

	// Session identifies the recording session: the 4th character of
	// the camera ID (the chapter digit), or the whole wall-clock token
	// for LUNA clips.
	Session string

	// WeekStart and WeekEnd are the recording week bounds from the
	// date span.
	WeekStart time.Time
	WeekEnd   time.Time

	// Ext is the original extension including the dot, with double
	// extensions like ".LRV.zip" kept whole.
	Ext string
}

// ProcessedName is a decoded processed recording file name.
type ProcessedName struct {
	Subject string
	Date    time.Time
	Session string
	UID     string
	Ext     string
}

// String renders the processed file name.
func (p *ProcessedName) String() string {
	return fmt.Sprintf("%s_%s_%s_%s%s", p.Subject, p.Date.Format("2006-01-02"), p.Session, p.UID, p.Ext)
}

// FromRaw builds the processed name for a raw recording under the given
// unique ID. The processed date is the start of the recording week.
func FromRaw(r *RawName, uid string) *ProcessedName {
	return &ProcessedName{
		Subject: r.Subject,
		Date:    r.WeekStart,
		Session: r.Session,
		UID:     uid,
		Ext:     r.Ext,
	}
}

// rawGrammar is the participle grammar for raw recording names.
// Examples: "04540202_GX010042_06.15.2024-06.16.2024",
// "04540202_LUNA_H10M30S15_06.15.2024-06.16.2024".
//
//nolint:govet // participle grammar tags are not standard struct tags
type rawGrammar struct {
	Subject string      `@Digits`
	Device  *devicePart `"_" @@`
	Span    *spanPart   `"_" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type devicePart struct {
	Camera string `  @Camera`
	Clock  string `| "LUNA" "_" @Clock`
}

//nolint:govet // participle grammar tags are not standard struct tags
type spanPart struct {
	Start *datePart `@@`
	End   *datePart `"-" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type datePart struct {
	Month string `@Digits`
	Day   string `"." @Digits`
	Year  string `"." @Digits`
}

// nameLexer tokenizes raw name stems. Camera IDs and wall-clock tokens
// get their own token types so the grammar never confuses them with
// plain digit runs.
var nameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Camera", Pattern: `G[XL][0-9]{6}`},
	{Name: "Clock", Pattern: `H[0-9]{2}M[0-9]{2}S[0-9]{2}`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Digits", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[._-]`},
})

// rawParser is the participle parser for raw name stems.
var rawParser = participle.MustBuild[rawGrammar](
	participle.Lexer(nameLexer),
)

// ParseRawName parses a raw recording name. path may be a bare file
// name or a full path; only the base name is considered.
func ParseRawName(path string) (*RawName, error) {
	base := filepath.Base(path)
	stem, ext := SplitExt(base)

	parsed, err := rawParser.ParseString("", stem)
	if err != nil {
		return nil, headcamerrors.NewParse("file name", base, err.Error())
	}

	if len(parsed.Subject) != 8 {
		return nil, headcamerrors.NewParse("file name", base,
			fmt.Sprintf("subject ID must be 8 digits, got %d", len(parsed.Subject)))
	}

	start, err := parsed.Span.Start.resolve()
	if err != nil {
		return nil, headcamerrors.NewParse("file name", base, "start date: "+err.Error())
	}
	end, err := parsed.Span.End.resolve()
	if err != nil {
		return nil, headcamerrors.NewParse("file name", base, "end date: "+err.Error())
	}

	name := &RawName{
		Subject:   parsed.Subject,
		WeekStart: start,
		WeekEnd:   end,
		Ext:       ext,
	}

	if parsed.Device.Camera != "" {
		name.CameraID = parsed.Device.Camera
		name.Session = string(parsed.Device.Camera[3])
	} else {
		name.Session = parsed.Device.Clock
	}

	return name, nil
}

// resolve validates the dotted date shape and converts it to a time.
func (d *datePart) resolve() (time.Time, error) {
	if len(d.Month) != 2 || len(d.Day) != 2 || len(d.Year) != 4 {
		return time.Time{}, fmt.Errorf("date must be MM.DD.YYYY, got %s.%s.%s", d.Month, d.Day, d.Year)
	}
	t, err := time.Parse("01.02.2006", d.Month+"."+d.Day+"."+d.Year)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// processedPattern matches processed name stems:
// <subject>_<YYYY-MM-DD>_<session>_<uid>.
var processedPattern = regexp.MustCompile(`^(\d{8})_(\d{4}-\d{2}-\d{2})_(\d|H\d{2}M\d{2}S\d{2})_([0-9a-f]{10})$`)

// ParseProcessedName parses a processed recording name. path may be a
// bare file name or a full path.
func ParseProcessedName(path string) (*ProcessedName, error) {
	base := filepath.Base(path)
	stem, ext := SplitExt(base)

	m := processedPattern.FindStringSubmatch(stem)
	if m == nil {
		return nil, headcamerrors.NewParse("file name", base, "not a processed recording name")
	}

	date, err := time.Parse("2006-01-02", m[2])
	if err != nil {
		return nil, headcamerrors.NewParse("file name", base, "date: "+err.Error())
	}

	return &ProcessedName{
		Subject: m[1],
		Date:    date,
		Session: m[3],
		UID:     m[4],
		Ext:     ext,
	}, nil
}

// NewUniqueID returns the first 10 hex characters of a random UUID.
func NewUniqueID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:10]
}

// doubleInnerExts are extensions that keep their trailing .zip attached,
// so archived sidecars like clip.LRV.zip round-trip intact.
var doubleInnerExts = map[string]bool{
	".mp4": true,
	".avi": true,
	".lrv": true,
	".thm": true,
	".wav": true,
}

// SplitExt splits a base name into stem and extension, keeping known
// double extensions like ".LRV.zip" together.
func SplitExt(base string) (stem, ext string) {
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)

	if strings.EqualFold(ext, ".zip") {
		inner := filepath.Ext(stem)
		if doubleInnerExts[strings.ToLower(inner)] {
			stem = strings.TrimSuffix(stem, inner)
			ext = inner + ext
		}
	}
	return stem, ext
}

// videoExts are the recording extensions dataset walks look for.
var videoExts = map[string]bool{
	".mp4": true,
	".avi": true,
	".lrv": true,
}

// IsVideo reports whether path has a recording extension.
func IsVideo(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// SidecarPath returns the sidecar text file path for a video:
// <dir>/<prefix>_<basename>.txt.
func SidecarPath(videoPath, prefix string) string {
	return filepath.Join(filepath.Dir(videoPath), prefix+"_"+filepath.Base(videoPath)+".txt")
}

// MetadataDir returns the telemetry export directory for a video:
// <dir>/<stem>_metadata.
func MetadataDir(videoPath string) string {
	stem, _ := SplitExt(filepath.Base(videoPath))
	return filepath.Join(filepath.Dir(videoPath), stem+"_metadata")
}
