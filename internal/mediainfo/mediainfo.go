// Package mediainfo inspects recordings with ffprobe and parses its
// XML report into stream and format facts the toolkit cares about:
// duration, resolution, frame rate, rotation, and whether a GoPro
// telemetry stream is present.
package mediainfo

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/mediatools"
)

// Info holds the facts extracted from one ffprobe report.
type Info struct {
	// Path is the probed file.
	Path string

	// FormatName is ffprobe's container format list, e.g.
	// "mov,mp4,m4a,3gp,3g2,mj2".
	FormatName string

	// Duration is the container duration in seconds.
	Duration float64

	// Size is the file size in bytes as reported by ffprobe.
	Size int64

	// BitRate is the overall bit rate in bits per second.
	BitRate int64

	// Video describes the first video stream, nil when there is none.
	Video *VideoStream

	// AudioChannels is the channel count of the first audio stream,
	// zero when there is none.
	AudioChannels int

	// HasTelemetry reports whether a gpmd data stream is present.
	HasTelemetry bool
}

// VideoStream describes a video stream.
type VideoStream struct {
	Codec     string
	Width     int
	Height    int
	FrameRate float64
	Rotation  int
}

// Prober runs ffprobe and parses its reports.
type Prober struct {
	tool *mediatools.Tool
}

// New creates a Prober around the given ffprobe tool.
func New(tool *mediatools.Tool) *Prober {
	return &Prober{tool: tool}
}

// Probe inspects the file at path and returns its media facts.
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	res, err := p.tool.Run(ctx,
		"-v", "error",
		"-print_format", "xml",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}
	return ParseReport(res.Stdout, path)
}

// Duration inspects the file at path and returns just its duration in
// seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// RawReport returns the unparsed ffprobe XML report for path. The probe
// command uses it for --xpath queries and raw output.
func (p *Prober) RawReport(ctx context.Context, path string) ([]byte, error) {
	res, err := p.tool.Run(ctx,
		"-v", "error",
		"-print_format", "xml",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// ParseReport parses an ffprobe XML report. path is only used for error
// context.
func ParseReport(data []byte, path string) (*Info, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, headcamerrors.NewParse("ffprobe report", path, err.Error())
	}

	format, err := xmlquery.Query(doc, "//format")
	if err != nil {
		return nil, headcamerrors.NewParse("ffprobe report", path, err.Error())
	}
	if format == nil {
		return nil, headcamerrors.NewParse("ffprobe report", path, "no format element")
	}

	info := &Info{
		Path:       path,
		FormatName: format.SelectAttr("format_name"),
		Duration:   parseFloat(format.SelectAttr("duration")),
		Size:       parseInt(format.SelectAttr("size")),
		BitRate:    parseInt(format.SelectAttr("bit_rate")),
	}

	video, err := xmlquery.Query(doc, "//stream[@codec_type='video']")
	if err == nil && video != nil {
		vs := &VideoStream{
			Codec:     video.SelectAttr("codec_name"),
			Width:     int(parseInt(video.SelectAttr("width"))),
			Height:    int(parseInt(video.SelectAttr("height"))),
			FrameRate: parseFrameRate(video.SelectAttr("r_frame_rate")),
		}
		if rotate, err := xmlquery.Query(video, "tag[@key='rotate']"); err == nil && rotate != nil {
			vs.Rotation = int(parseInt(rotate.SelectAttr("value")))
		}
		// Streams missing duration fall back to the format value, and
		// the reverse covers containers that only report per-stream.
		if info.Duration == 0 {
			info.Duration = parseFloat(video.SelectAttr("duration"))
		}
		info.Video = vs
	}

	audio, err := xmlquery.Query(doc, "//stream[@codec_type='audio']")
	if err == nil && audio != nil {
		info.AudioChannels = int(parseInt(audio.SelectAttr("channels")))
	}

	gpmd, err := xmlquery.Query(doc, "//stream[@codec_tag_string='gpmd']")
	if err == nil && gpmd != nil {
		info.HasTelemetry = true
	}

	return info, nil
}

// Query runs a caller-supplied XPath expression against an ffprobe
// report and returns the matching nodes' text. The expression is
// compiled first so invalid input is reported as such rather than as an
// empty result.
func Query(data []byte, expr string) ([]string, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}

	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	results := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == xmlquery.AttributeNode {
			results = append(results, n.InnerText())
			continue
		}
		results = append(results, strings.TrimSpace(n.InnerText()))
	}
	return results, nil
}

// parseFrameRate parses ffprobe's fractional rate notation ("60000/1001")
// into frames per second.
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
