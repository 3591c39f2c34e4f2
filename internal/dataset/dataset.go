// Package dataset implements the bulk operations that run over a whole
// recording tree: scanning files into the catalog, probing durations,
// and renaming raw uploads to the processed convention. The CLI dataset
// subcommands and the dashboard's scan endpoint both call into here.
package dataset

import (
	"io/fs"
	"path/filepath"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/naming"
)

// DefaultWorkers is the worker count used when a config leaves it zero.
const DefaultWorkers = 4

// ProgressFunc receives per-file progress during a bulk operation.
// done counts completed files, total the files found, and message
// names the file just finished.
type ProgressFunc func(stage string, done, total int, message string)

// CollectVideos walks root and returns every recording file path, in
// the lexical order filepath.WalkDir visits them.
func CollectVideos(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if naming.IsVideo(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, headcamerrors.NewIO("walk dataset", root, err)
	}
	return paths, nil
}

// workers returns n, or DefaultWorkers when n is not positive.
func workers(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}
	return n
}
