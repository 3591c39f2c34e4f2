package telemetry

import (
	"bufio"
	"encoding/csv"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
)

// Export file names of the motion streams inside a metadata directory.
const (
	AcclExport = "ACCL_meta.txt"
	GyroExport = "GYRO_meta.txt"
)

// imuHeader is the column layout of a combined IMU CSV.
var imuHeader = []string{"index", "accl_x", "accl_y", "accl_z", "gyro_x", "gyro_y", "gyro_z"}

// Sample is one three-axis reading, kept as the export's own decimal
// text so the CSV carries the values exactly as gpmfdemo printed them.
type Sample [3]string

// ParseStream reads a gpmfdemo text export and returns the samples for
// the given tag. Export files open with header noise (device name,
// stream descriptions); only lines of the form `TAG v1 v2 v3` with
// numeric values count as samples, everything else is skipped.
func ParseStream(path, tag string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, headcamerrors.NewIO("open", path, err)
	}
	defer f.Close()

	var samples []Sample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] != tag {
			continue
		}
		ok := true
		for _, v := range fields[1:4] {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		samples = append(samples, Sample{fields[1], fields[2], fields[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, headcamerrors.NewIO("read", path, err)
	}

	return samples, nil
}

// CombineIMU reads the ACCL and GYRO exports in metaDir and writes the
// combined CSV imu_combined_<stem>.csv into the same directory, where
// <stem> is the directory name without its _metadata suffix. Rows are
// aligned by sample index with blank cells where one stream is shorter.
// The CSV path is returned.
func CombineIMU(metaDir string) (string, error) {
	accl, err := ParseStream(filepath.Join(metaDir, AcclExport), "ACCL")
	if err != nil {
		return "", err
	}
	gyro, err := ParseStream(filepath.Join(metaDir, GyroExport), "GYRO")
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(metaDir), "_metadata")
	outPath := filepath.Join(metaDir, "imu_combined_"+stem+".csv")

	f, err := os.Create(outPath)
	if err != nil {
		return "", headcamerrors.NewIO("create", outPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(imuHeader); err != nil {
		return "", headcamerrors.NewIO("write", outPath, err)
	}

	rows := max(len(accl), len(gyro))
	for i := 0; i < rows; i++ {
		row := make([]string, 0, len(imuHeader))
		row = append(row, strconv.Itoa(i))
		row = appendAxes(row, accl, i)
		row = appendAxes(row, gyro, i)
		if err := w.Write(row); err != nil {
			return "", headcamerrors.NewIO("write", outPath, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", headcamerrors.NewIO("write", outPath, err)
	}
	return outPath, nil
}

// appendAxes appends the i-th sample of a stream, or blank cells when
// the stream has run out.
func appendAxes(row []string, samples []Sample, i int) []string {
	if i < len(samples) {
		return append(row, samples[i][0], samples[i][1], samples[i][2])
	}
	return append(row, "", "", "")
}

// FindMetadataDirs walks root and returns every directory containing an
// ACCL export, for batch IMU conversion.
func FindMetadataDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == AcclExport {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, headcamerrors.NewIO("walk", root, err)
	}
	return dirs, nil
}
