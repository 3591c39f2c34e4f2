package telemetry

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// acclExport mimics a gpmfdemo ACCL text export: header noise followed
// by sample lines.
const acclExport = `VERSION: 07 06 00
DEVICE ID: 1
DEVICE NAME: Hero11 Black
STRM: 3-axis accelerometer
ACCL 9.556802 -0.478241 -1.532935
ACCL 9.561593 -0.480636 -1.525748
ACCL 9.549616 -0.475845 -1.540122
`

const gyroExport = `VERSION: 07 06 00
DEVICE NAME: Hero11 Black
GYRO 0.001065 -0.002131 0.003196
GYRO 0.000000 -0.001065 0.002131
`

// writeMetaDir lays out a metadata directory with the given exports.
func writeMetaDir(t *testing.T, root, stem string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, stem+"_metadata")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating metadata dir: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

// TestParseStream verifies only well-formed sample lines count.
func TestParseStream(t *testing.T) {
	dir := writeMetaDir(t, t.TempDir(), "GX010042", map[string]string{
		AcclExport: acclExport,
	})

	samples, err := ParseStream(filepath.Join(dir, AcclExport), "ACCL")
	if err != nil {
		t.Fatalf("ParseStream failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	want := Sample{"9.556802", "-0.478241", "-1.532935"}
	if samples[0] != want {
		t.Errorf("samples[0] = %v, want %v", samples[0], want)
	}
}

// TestParseStreamSkipsMalformed verifies short and non-numeric lines
// are ignored rather than failing the parse.
func TestParseStreamSkipsMalformed(t *testing.T) {
	content := `ACCL 1.0 2.0
ACCL one two three
ACCL 1.0 2.0 3.0
GYRO 9.9 9.9 9.9
`
	dir := writeMetaDir(t, t.TempDir(), "clip", map[string]string{AcclExport: content})

	samples, err := ParseStream(filepath.Join(dir, AcclExport), "ACCL")
	if err != nil {
		t.Fatalf("ParseStream failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0] != (Sample{"1.0", "2.0", "3.0"}) {
		t.Errorf("samples[0] = %v", samples[0])
	}
}

// TestParseStreamMissingFile verifies a missing export is an error.
func TestParseStreamMissingFile(t *testing.T) {
	_, err := ParseStream(filepath.Join(t.TempDir(), AcclExport), "ACCL")
	if err == nil {
		t.Fatal("ParseStream on missing file succeeded")
	}
}

// TestCombineIMU verifies the combined CSV layout, including blank
// cells where the shorter stream has run out.
func TestCombineIMU(t *testing.T) {
	dir := writeMetaDir(t, t.TempDir(), "GX010042", map[string]string{
		AcclExport: acclExport,
		GyroExport: gyroExport,
	})

	outPath, err := CombineIMU(dir)
	if err != nil {
		t.Fatalf("CombineIMU failed: %v", err)
	}
	if filepath.Base(outPath) != "imu_combined_GX010042.csv" {
		t.Errorf("output name = %q, want imu_combined_GX010042.csv", filepath.Base(outPath))
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("opening CSV: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}

	wantHeader := []string{"index", "accl_x", "accl_y", "accl_z", "gyro_x", "gyro_y", "gyro_z"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}
	// 3 ACCL samples vs 2 GYRO samples: 3 data rows, last gyro blank.
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4 (header + 3 samples)", len(rows))
	}
	wantFirst := []string{"0", "9.556802", "-0.478241", "-1.532935", "0.001065", "-0.002131", "0.003196"}
	if !reflect.DeepEqual(rows[1], wantFirst) {
		t.Errorf("rows[1] = %v, want %v", rows[1], wantFirst)
	}
	wantLast := []string{"2", "9.549616", "-0.475845", "-1.540122", "", "", ""}
	if !reflect.DeepEqual(rows[3], wantLast) {
		t.Errorf("rows[3] = %v, want %v", rows[3], wantLast)
	}
}

// TestCombineIMUMissingStream verifies a metadata dir without a GYRO
// export fails.
func TestCombineIMUMissingStream(t *testing.T) {
	dir := writeMetaDir(t, t.TempDir(), "GX010042", map[string]string{
		AcclExport: acclExport,
	})

	if _, err := CombineIMU(dir); err == nil {
		t.Fatal("CombineIMU succeeded without GYRO export")
	}
}

// TestFindMetadataDirs verifies the batch walk finds every directory
// holding an ACCL export.
func TestFindMetadataDirs(t *testing.T) {
	root := t.TempDir()
	a := writeMetaDir(t, root, "GX010001", map[string]string{AcclExport: acclExport})
	b := writeMetaDir(t, filepath.Join(root, "week2"), "GX010002", map[string]string{AcclExport: acclExport})
	writeMetaDir(t, root, "GX010003", map[string]string{GyroExport: gyroExport})

	dirs, err := FindMetadataDirs(root)
	if err != nil {
		t.Fatalf("FindMetadataDirs failed: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("found %d dirs, want 2: %v", len(dirs), dirs)
	}

	found := map[string]bool{}
	for _, d := range dirs {
		found[d] = true
	}
	if !found[a] || !found[b] {
		t.Errorf("dirs = %v, want to include %s and %s", dirs, a, b)
	}
}
