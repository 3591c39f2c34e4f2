package dataset

import (
	"encoding/csv"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/headcamlab/headcam/core/catalog"
	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/logging"
	"github.com/headcamlab/headcam/internal/naming"
)

// MappingName is the CSV written into the dataset root after renames,
// recording every old,new file name pair so a rename can be traced back.
const MappingName = "rename_mapping.csv"

// RenameConfig holds configuration for a rename pass.
type RenameConfig struct {
	Root    string
	Apply   bool             // false plans only, nothing on disk changes
	Catalog *catalog.Catalog // optional; rows follow their renamed files
}

// Mapping pairs a raw file with its processed replacement. Paths are
// relative to the dataset root; renames never move files between
// directories.
type Mapping struct {
	Old string
	New string
}

// RenameReport summarizes a rename pass.
type RenameReport struct {
	Planned   []Mapping
	Processed int    // files already carrying processed names
	Applied   int    // renames performed; zero on a plan-only pass
	Failed    int    // renames that errored
	Mapping   string // mapping CSV path, set after an applied pass
}

// PlanRename walks root and plans a processed name for every file whose
// name parses as a raw recording. Files already in processed form are
// counted; anything else (sidecars, exports, strays) is ignored. Each
// planned name embeds a fresh unique ID, so plans are not stable across
// calls.
func PlanRename(root string) (*RenameReport, error) {
	report := &RenameReport{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, err := naming.ParseProcessedName(path); err == nil {
			report.Processed++
			return nil
		}
		r, err := naming.ParseRawName(path)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return headcamerrors.NewIO("resolve path", path, err)
		}
		processed := naming.FromRaw(r, naming.NewUniqueID())
		report.Planned = append(report.Planned, Mapping{
			Old: rel,
			New: filepath.Join(filepath.Dir(rel), processed.String()),
		})
		return nil
	})
	if err != nil {
		return nil, headcamerrors.NewIO("walk dataset", root, err)
	}
	return report, nil
}

// Rename plans and, when Apply is set, performs the renames and writes
// the mapping CSV to the dataset root. A failed rename leaves its file
// untouched and the pass continues. Without Apply this is a dry run:
// the plan comes back for printing and the tree is not modified.
func Rename(cfg RenameConfig) (*RenameReport, error) {
	report, err := PlanRename(cfg.Root)
	if err != nil {
		return nil, err
	}
	if !cfg.Apply {
		return report, nil
	}

	var applied []Mapping
	for _, m := range report.Planned {
		oldPath := filepath.Join(cfg.Root, m.Old)
		newPath := filepath.Join(cfg.Root, m.New)
		if err := os.Rename(oldPath, newPath); err != nil {
			report.Failed++
			logging.FileError(oldPath, "rename", err)
			continue
		}
		report.Applied++
		applied = append(applied, m)
		if cfg.Catalog != nil {
			if err := moveCatalogRow(cfg.Catalog, oldPath, newPath); err != nil {
				logging.FileError(newPath, "catalog update", err)
			}
		}
	}

	if len(applied) == 0 {
		return report, nil
	}
	mappingPath := filepath.Join(cfg.Root, MappingName)
	if err := writeMapping(mappingPath, applied); err != nil {
		return report, err
	}
	report.Mapping = mappingPath
	return report, nil
}

// moveCatalogRow re-keys a catalog row after its file was renamed. The
// new row takes the UID embedded in the processed name; fingerprints
// and probe results carry over from the old row when one exists.
func moveCatalogRow(cat *catalog.Catalog, oldPath, newPath string) error {
	p, err := naming.ParseProcessedName(newPath)
	if err != nil {
		return err
	}

	v := &catalog.Video{
		UID:       p.UID,
		Subject:   p.Subject,
		Session:   p.Session,
		Recorded:  p.Date,
		RawName:   filepath.Base(oldPath),
		Path:      newPath,
		ScannedAt: time.Now().UTC(),
	}

	if prev, err := cat.ByPath(oldPath); err == nil {
		v.SizeBytes = prev.SizeBytes
		v.BLAKE3 = prev.BLAKE3
		v.SHA256 = prev.SHA256
		v.Duration = prev.Duration
		v.DeviceID = prev.DeviceID
		v.Highlights = prev.Highlights
		if err := cat.DeleteByPath(oldPath); err != nil {
			return err
		}
	} else if info, statErr := os.Stat(newPath); statErr == nil {
		v.SizeBytes = info.Size()
	}

	return cat.Upsert(v)
}

// writeMapping writes old,new rows for every applied rename.
func writeMapping(path string, applied []Mapping) error {
	f, err := os.Create(path)
	if err != nil {
		return headcamerrors.NewIO("create mapping", path, err)
	}

	rows := make([][]string, 0, len(applied)+1)
	rows = append(rows, []string{"old", "new"})
	for _, m := range applied {
		rows = append(rows, []string{m.Old, m.New})
	}

	err = csv.NewWriter(f).WriteAll(rows)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
