package dataset

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/headcamlab/headcam/core/catalog"
	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/core/mp4"
	"github.com/headcamlab/headcam/internal/hashing"
	"github.com/headcamlab/headcam/internal/logging"
	"github.com/headcamlab/headcam/internal/mediainfo"
	"github.com/headcamlab/headcam/internal/mediatools"
	"github.com/headcamlab/headcam/internal/naming"
	"github.com/headcamlab/headcam/internal/pool"
)

// ScanConfig holds configuration for a dataset scan.
type ScanConfig struct {
	Root     string              // dataset root to walk
	Catalog  *catalog.Catalog    // destination catalog
	Tools    *mediatools.Toolset // for ffprobe; unused when NoProbe
	Workers  int                 // concurrent files; DefaultWorkers when zero
	NoProbe  bool                // skip duration probing
	Progress ProgressFunc        // optional per-file callback
}

// FileResult is the outcome of scanning one recording.
type FileResult struct {
	Path  string
	Video *catalog.Video // nil when Err is set
	Err   error
}

// ScanReport summarizes a finished scan.
type ScanReport struct {
	Root    string
	Total   int
	Scanned int
	Failed  int
	Results []FileResult
	Elapsed time.Duration
}

// Scan walks the dataset root, fingerprints every recording and upserts
// it into the catalog. Files that fail are reported and skipped; the
// scan itself only fails on walk or catalog errors.
func Scan(ctx context.Context, cfg ScanConfig) (*ScanReport, error) {
	if cfg.Catalog == nil {
		return nil, headcamerrors.NewValidation("catalog", "scan requires an open catalog")
	}

	paths, err := CollectVideos(cfg.Root)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &ScanReport{Root: cfg.Root, Total: len(paths)}
	if len(paths) == 0 {
		return report, nil
	}

	var prober *mediainfo.Prober
	if !cfg.NoProbe && cfg.Tools != nil {
		prober = mediainfo.New(cfg.Tools.FFprobe)
	}

	p := pool.New[string, FileResult](workers(cfg.Workers), len(paths))
	p.Start(func(path string) FileResult {
		if err := ctx.Err(); err != nil {
			return FileResult{Path: path, Err: err}
		}
		v, err := scanFile(ctx, prober, path)
		return FileResult{Path: path, Video: v, Err: err}
	})
	for _, path := range paths {
		p.Submit(path)
	}
	p.Close()

	// Workers hash and probe; the catalog is written from this single
	// goroutine so SQLite never sees competing writers.
	done := 0
	for res := range p.Results() {
		done++
		if res.Err == nil {
			res.Err = assignUID(cfg.Catalog, res.Video)
		}
		if res.Err == nil {
			res.Err = cfg.Catalog.Upsert(res.Video)
		}
		if res.Err != nil {
			report.Failed++
			logging.FileError(res.Path, "scan", res.Err)
		} else {
			report.Scanned++
		}
		report.Results = append(report.Results, res)
		if cfg.Progress != nil {
			cfg.Progress("scan", done, len(paths), filepath.Base(res.Path))
		}
		logging.ScanProgress(done, len(paths), res.Path)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// assignUID fills in the video's unique ID. Processed names carry their
// own; raw files keep the ID from an earlier scan of the same path, so
// rescans do not churn identities.
func assignUID(cat *catalog.Catalog, v *catalog.Video) error {
	if v.UID != "" {
		return nil
	}
	prev, err := cat.ByPath(v.Path)
	switch {
	case err == nil:
		v.UID = prev.UID
	case headcamerrors.Is(err, headcamerrors.ErrNotFound):
		v.UID = naming.NewUniqueID()
	default:
		return err
	}
	return nil
}

// scanFile builds the catalog record for one recording. The UID is left
// empty for raw names and assigned later on the catalog goroutine.
func scanFile(ctx context.Context, prober *mediainfo.Prober, path string) (*catalog.Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, headcamerrors.NewIO("stat recording", path, err)
	}

	v := &catalog.Video{
		Path:      path,
		SizeBytes: info.Size(),
		ScannedAt: time.Now().UTC(),
	}

	if p, err := naming.ParseProcessedName(path); err == nil {
		v.UID = p.UID
		v.Subject = p.Subject
		v.Session = p.Session
		v.Recorded = p.Date
	} else if r, err := naming.ParseRawName(path); err == nil {
		v.Subject = r.Subject
		v.Session = r.Session
		v.Recorded = r.WeekStart
		v.RawName = filepath.Base(path)
	} else {
		return nil, headcamerrors.NewParse("file name", filepath.Base(path),
			"matches neither raw nor processed naming")
	}

	digest, err := hashing.File(path)
	if err != nil {
		return nil, err
	}
	v.BLAKE3 = digest.BLAKE3
	v.SHA256 = digest.SHA256

	if prober != nil {
		seconds, err := prober.Duration(ctx, path)
		if err != nil {
			return nil, err
		}
		v.Duration = seconds
	}

	// Best effort: AVI clips and low-res proxies carry no GoPro boxes.
	if id, err := mp4.ExtractDeviceID(path); err == nil {
		v.DeviceID = id
	}
	if marks, err := mp4.ExtractHighlights(path); err == nil {
		v.Highlights = len(marks)
	}

	return v, nil
}
