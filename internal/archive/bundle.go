package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
)

// Compression selects the bundle codec.
type Compression string

const (
	// XZ is the default bundle codec.
	XZ Compression = "xz"
	// Gzip trades compression ratio for ubiquity.
	Gzip Compression = "gzip"
	// None writes a plain tar.
	None Compression = "none"
)

// ParseCompression validates a --compression flag value.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case XZ:
		return XZ, nil
	case Gzip:
		return Gzip, nil
	case None:
		return None, nil
	}
	return "", headcamerrors.NewUnsupported(fmt.Sprintf("compression %q", s), "want xz, gzip or none")
}

// Extension returns the bundle filename suffix for the codec.
func (c Compression) Extension() string {
	switch c {
	case Gzip:
		return ".tar.gz"
	case None:
		return ".tar"
	default:
		return ".tar.xz"
	}
}

// BundlePath returns the bundle file path for a metadata directory.
func BundlePath(metaDir string, comp Compression) string {
	return filepath.Clean(metaDir) + comp.Extension()
}

// Create archives srcDir into dstPath. The baseDir parameter specifies
// the directory name entries carry inside the bundle. If
// createParentDir is true, parent directories of dstPath are created.
func Create(srcDir, dstPath, baseDir string, comp Compression, createParentDir bool) error {
	if createParentDir {
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}

	var w io.Writer = outFile
	var closeCompressor func() error
	switch comp {
	case Gzip:
		gw := gzip.NewWriter(outFile)
		w = gw
		closeCompressor = gw.Close
	case None:
	default:
		xw, err := xz.NewWriter(outFile)
		if err != nil {
			outFile.Close()
			return fmt.Errorf("xz writer: %w", err)
		}
		w = xw
		closeCompressor = xw.Close
	}

	tw := tar.NewWriter(w)
	now := time.Now()

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		// Skip root directory
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		// Set the name with the base directory prefix
		header.Name = baseDir + "/" + filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		// Normalize timestamps for reproducibility
		header.ModTime = now

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if !info.IsDir() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := io.Copy(tw, file); err != nil {
				return err
			}
		}

		return nil
	})

	// Close order matters: tar trailer, then compression trailer, then file.
	closeErr := tw.Close()
	if closeCompressor != nil {
		if err := closeCompressor(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	if err := outFile.Close(); err != nil && closeErr == nil {
		closeErr = err
	}

	if walkErr != nil {
		return fmt.Errorf("failed to create bundle: %w", walkErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize bundle: %w", closeErr)
	}
	return nil
}

// CreateBundle archives a metadata directory next to itself and
// verifies the result before returning. Entries are prefixed with the
// directory basename, so `GX010042_metadata/` bundles to
// `GX010042_metadata.tar.xz` containing `GX010042_metadata/...`.
func CreateBundle(metaDir string, comp Compression) (string, error) {
	info, err := os.Stat(metaDir)
	if err != nil {
		return "", fmt.Errorf("stat metadata dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", metaDir)
	}

	dstPath := BundlePath(metaDir, comp)
	baseDir := filepath.Base(filepath.Clean(metaDir))
	if err := Create(metaDir, dstPath, baseDir, comp, false); err != nil {
		return "", err
	}
	if err := VerifyBundle(dstPath, metaDir); err != nil {
		os.Remove(dstPath)
		return "", err
	}
	return dstPath, nil
}

// VerifyBundle re-reads a bundle and checks that every regular file
// under srcDir is present with a matching size. Callers that remove
// the source directory after bundling must verify first.
func VerifyBundle(bundlePath, srcDir string) error {
	want := map[string]int64{}
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		want[filepath.ToSlash(rel)] = info.Size()
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk source: %w", err)
	}

	got := map[string]int64{}
	err = IterateBundle(bundlePath, func(header *tar.Header, _ io.Reader) (bool, error) {
		if header.Typeflag != tar.TypeReg {
			return false, nil
		}
		name := header.Name
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		got[name] = header.Size
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("verify bundle: %w", err)
	}

	for name, size := range want {
		gotSize, ok := got[name]
		if !ok {
			return fmt.Errorf("bundle missing %s", name)
		}
		if gotSize != size {
			return fmt.Errorf("bundle entry %s has %d bytes, want %d", name, gotSize, size)
		}
	}
	return nil
}
