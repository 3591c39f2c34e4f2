package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/headcamlab/headcam/core/catalog"
	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/mediainfo"
	"github.com/headcamlab/headcam/internal/mediatools"
	"github.com/headcamlab/headcam/internal/pool"
)

// DriftThreshold is the probed-versus-stored difference, in seconds,
// beyond which a catalog duration counts as stale.
const DriftThreshold = 1.0

// DurationsConfig holds configuration for a duration sweep.
type DurationsConfig struct {
	Root     string
	Tools    *mediatools.Toolset
	Workers  int
	Catalog  *catalog.Catalog // optional; enables drift detection
	Progress ProgressFunc
}

// DurationEntry is one probed recording.
type DurationEntry struct {
	Path    string
	Seconds float64
	Err     error
}

// DriftEntry flags a recording whose stored duration no longer matches
// what ffprobe reports.
type DriftEntry struct {
	Path   string
	Probed float64
	Stored float64
}

// DurationsReport summarizes a duration sweep.
type DurationsReport struct {
	Entries []DurationEntry // sorted by path
	Total   float64         // sum of successful probes, seconds
	Failed  int
	Drift   []DriftEntry
}

// Durations probes every recording under root with ffprobe and sums the
// results. When a catalog is configured, probed values are compared to
// the stored ones and differences beyond DriftThreshold are flagged.
func Durations(ctx context.Context, cfg DurationsConfig) (*DurationsReport, error) {
	if cfg.Tools == nil {
		return nil, headcamerrors.NewValidation("tools", "duration sweep requires ffprobe")
	}

	paths, err := CollectVideos(cfg.Root)
	if err != nil {
		return nil, err
	}

	report := &DurationsReport{}
	if len(paths) == 0 {
		return report, nil
	}

	prober := mediainfo.New(cfg.Tools.FFprobe)
	done := 0
	p := pool.New[string, DurationEntry](workers(cfg.Workers), len(paths))
	p.Start(func(path string) DurationEntry {
		seconds, err := prober.Duration(ctx, path)
		return DurationEntry{Path: path, Seconds: seconds, Err: err}
	})
	for _, path := range paths {
		p.Submit(path)
	}
	p.Close()
	for e := range p.Results() {
		done++
		report.Entries = append(report.Entries, e)
		if cfg.Progress != nil {
			cfg.Progress("probe", done, len(paths), filepath.Base(e.Path))
		}
	}
	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].Path < report.Entries[j].Path
	})

	for _, e := range report.Entries {
		if e.Err != nil {
			report.Failed++
			continue
		}
		report.Total += e.Seconds
	}

	if cfg.Catalog != nil {
		stored, err := cfg.Catalog.Durations()
		if err != nil {
			return nil, err
		}
		for _, e := range report.Entries {
			if e.Err != nil {
				continue
			}
			s, ok := stored[e.Path]
			if !ok {
				continue
			}
			if math.Abs(e.Seconds-s) > DriftThreshold {
				report.Drift = append(report.Drift, DriftEntry{Path: e.Path, Probed: e.Seconds, Stored: s})
			}
		}
	}

	return report, nil
}

// WriteCSV writes the report as path,seconds rows with a header and a
// trailing total row. Failed probes are omitted.
func (r *DurationsReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"path", "seconds"}); err != nil {
		return err
	}
	for _, e := range r.Entries {
		if e.Err != nil {
			continue
		}
		if err := cw.Write([]string{e.Path, formatSeconds(e.Seconds)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"total", formatSeconds(r.Total)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
