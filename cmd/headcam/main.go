// Command headcam is the CLI tool for the headcam dataset toolkit.
// It provides commands for cataloguing head-mounted camera recordings,
// extracting embedded metadata, and exporting sensor telemetry.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/headcamlab/headcam/core/catalog"
	"github.com/headcamlab/headcam/core/mp4"
	"github.com/headcamlab/headcam/core/telemetry"
	"github.com/headcamlab/headcam/internal/archive"
	"github.com/headcamlab/headcam/internal/config"
	"github.com/headcamlab/headcam/internal/dataset"
	"github.com/headcamlab/headcam/internal/logging"
	"github.com/headcamlab/headcam/internal/mediainfo"
	"github.com/headcamlab/headcam/internal/mediatools"
	"github.com/headcamlab/headcam/internal/naming"
	"github.com/headcamlab/headcam/internal/pool"
	"github.com/headcamlab/headcam/internal/server"
)

const version = "0.2.0"

// CLI defines the command-line interface for headcam.
var CLI struct {
	// Global flags
	Config    string `short:"c" help:"Configuration file path (default: $HEADCAM_CONFIG)" type:"path"`
	LogLevel  string `help:"Log level: debug, info, warn, error (default: from config)"`
	LogFormat string `help:"Log format: text, json (default: from config)"`

	// Command groups (noun-first organization)
	Media     MediaGroup     `cmd:"" help:"Recording inspection and embedded metadata"`
	Telemetry TelemetryGroup `cmd:"" help:"Sensor stream export"`
	IMU       IMUGroup       `cmd:"imu" help:"IMU text-export conversion"`
	Audio     AudioGroup     `cmd:"" help:"Audio track extraction"`
	Dataset   DatasetGroup   `cmd:"" help:"Dataset scanning and catalog maintenance"`
	Serve     ServeCmd       `cmd:"" help:"Start the dashboard server"`
	Version   VersionCmd     `cmd:"" help:"Print version information"`
}

// MediaGroup contains recording inspection commands.
type MediaGroup struct {
	Deviceid   DeviceIDCmd   `cmd:"" help:"Extract camera device identifiers into sidecar files"`
	Highlights HighlightsCmd `cmd:"" help:"Extract recorded highlight timestamps"`
	Boxes      BoxesCmd      `cmd:"" help:"Dump the container box tree of a recording"`
	Probe      ProbeCmd      `cmd:"" help:"Probe recordings with ffprobe"`
}

// TelemetryGroup contains sensor stream export commands.
type TelemetryGroup struct {
	Extract TelemetryExtractCmd `cmd:"" help:"Export sensor streams to per-tag text files"`
	Tags    TelemetryTagsCmd    `cmd:"" help:"List the supported stream tags"`
}

// IMUGroup contains IMU conversion commands.
type IMUGroup struct {
	Convert IMUConvertCmd `cmd:"" help:"Combine ACCL and GYRO exports into one CSV"`
}

// AudioGroup contains audio extraction commands.
type AudioGroup struct {
	Extract AudioExtractCmd `cmd:"" help:"Extract audio tracks as 16 kHz mono WAV"`
}

// DatasetGroup contains dataset maintenance commands.
type DatasetGroup struct {
	Scan      ScanCmd      `cmd:"" help:"Walk the dataset and catalog every recording"`
	Stats     StatsCmd     `cmd:"" help:"Print catalog statistics"`
	Durations DurationsCmd `cmd:"" help:"Probe per-recording durations and total them"`
	Rename    RenameCmd    `cmd:"" help:"Rename raw recordings to processed names"`
	Archive   ArchiveCmd   `cmd:"" help:"Bundle metadata directories into verified archives"`
}

// DeviceIDCmd extracts the camera device identifier from each recording
// and writes it to a GP-Device_name sidecar next to the video.
type DeviceIDCmd struct {
	Paths   []string `arg:"" optional:"" help:"Recordings to process (prompts for one when omitted)" type:"existingfile"`
	Workers int      `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

type deviceIDResult struct {
	path    string
	id      string
	sidecar string
	err     error
}

func (c *DeviceIDCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := c.Paths
	if len(paths) == 0 {
		path, err := promptForFile("Enter the recording filename: ")
		if err != nil {
			return err
		}
		paths = []string{path}
	}

	results := pool.Map(workerCount(c.Workers, cfg), paths, func(path string) deviceIDResult {
		res := deviceIDResult{path: path}
		res.id, res.err = mp4.ExtractDeviceID(path)
		if res.err != nil {
			return res
		}
		res.sidecar = naming.SidecarPath(path, naming.SidecarDeviceName)
		if err := os.WriteFile(res.sidecar, []byte(res.id), 0644); err != nil {
			res.err = fmt.Errorf("writing sidecar: %w", err)
		}
		return res
	})
	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	failed := 0
	for _, res := range results {
		if res.err != nil {
			fmt.Printf("[FAIL] %s: %v\n", res.path, res.err)
			failed++
			continue
		}
		id := res.id
		if id == "" {
			id = "(empty)"
		}
		fmt.Printf("%s\n", res.path)
		fmt.Printf("  Device ID: %s\n", id)
		fmt.Printf("  Sidecar:   %s\n", res.sidecar)
	}

	if len(paths) > 1 {
		fmt.Printf("\nResults: %d extracted, %d failed\n", len(paths)-failed, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// HighlightsCmd extracts the highlight timestamps recorded in each
// video and writes them to a GP-Highlights sidecar, or prints them as
// CSV rows with --csv.
type HighlightsCmd struct {
	Paths   []string `arg:"" optional:"" help:"Recordings to process (prompts for one when omitted)" type:"existingfile"`
	CSV     bool     `help:"Print path,count,timestamps rows instead of writing sidecars"`
	Workers int      `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

type highlightsResult struct {
	path    string
	stamps  []float64
	sidecar string
	err     error
}

func (c *HighlightsCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := c.Paths
	if len(paths) == 0 {
		path, err := promptForFile("Enter the recording filename: ")
		if err != nil {
			return err
		}
		paths = []string{path}
	}

	results := pool.Map(workerCount(c.Workers, cfg), paths, func(path string) highlightsResult {
		res := highlightsResult{path: path}
		res.stamps, res.err = mp4.ExtractHighlights(path)
		if res.err != nil || c.CSV {
			return res
		}
		res.sidecar = naming.SidecarPath(path, naming.SidecarHighlights)
		if err := writeHighlightSidecar(res.sidecar, path, res.stamps); err != nil {
			res.err = fmt.Errorf("writing sidecar: %w", err)
		}
		return res
	})
	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	failed := 0
	if c.CSV {
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"path", "count", "timestamps"}); err != nil {
			return err
		}
		for _, res := range results {
			if res.err != nil {
				fmt.Fprintf(os.Stderr, "[FAIL] %s: %v\n", res.path, res.err)
				failed++
				continue
			}
			row := []string{res.path, strconv.Itoa(len(res.stamps)), joinTimestamps(res.stamps)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.err != nil {
				fmt.Printf("[FAIL] %s: %v\n", res.path, res.err)
				failed++
				continue
			}
			fmt.Printf("%s\n", res.path)
			fmt.Printf("  Highlights: %d\n", len(res.stamps))
			fmt.Printf("  Sidecar:    %s\n", res.sidecar)
		}
		if len(paths) > 1 {
			fmt.Printf("\nResults: %d extracted, %d failed\n", len(paths)-failed, failed)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// writeHighlightSidecar writes the video basename as a header line,
// then one formatted timestamp per line.
func writeHighlightSidecar(path, videoPath string, stamps []float64) error {
	var b strings.Builder
	b.WriteString(filepath.Base(videoPath))
	b.WriteString("\n")
	for _, s := range stamps {
		b.WriteString(mp4.FormatTimestamp(s))
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// joinTimestamps renders timestamps as a semicolon-separated list so
// they stay a single CSV field.
func joinTimestamps(stamps []float64) string {
	parts := make([]string, len(stamps))
	for i, s := range stamps {
		parts[i] = mp4.FormatTimestamp(s)
	}
	return strings.Join(parts, ";")
}

// BoxesCmd dumps the box tree of a recording for container debugging.
type BoxesCmd struct {
	Path     string `arg:"" help:"Recording to inspect" type:"existingfile"`
	MaxDepth int    `help:"Deepest nesting level to descend" default:"4"`
}

func (c *BoxesCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	nodes, err := mp4.DumpFile(c.Path, c.MaxDepth)
	if err != nil {
		return err
	}

	fmt.Printf("Box tree: %s\n\n", c.Path)
	printBoxNodes(nodes, 0)
	return nil
}

// printBoxNodes prints a box subtree with two-space indentation per
// nesting level.
func printBoxNodes(nodes []mp4.Node, depth int) {
	for _, n := range nodes {
		indent := strings.Repeat("  ", depth)
		fmt.Printf("%s%-4s  %10d..%-10d  %d bytes\n",
			indent, n.Tag, n.Extent.Start, n.Extent.End, n.Size())
		printBoxNodes(n.Children, depth+1)
	}
}

// ProbeCmd inspects recordings with ffprobe and prints the facts that
// matter for the dataset: duration, resolution, frame rate, rotation.
type ProbeCmd struct {
	Paths []string `arg:"" help:"Recordings to probe" type:"existingfile"`
	XPath string   `name:"xpath" help:"Evaluate an XPath expression against the raw ffprobe XML instead"`
	CSV   bool     `help:"Print CSV rows instead of a table"`
}

func (c *ProbeCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prober := mediainfo.New(mediatools.FromConfig(cfg).FFprobe)
	ctx := context.Background()

	if c.XPath != "" {
		return c.runXPath(ctx, prober)
	}

	var infos []*mediainfo.Info
	failed := 0
	for _, path := range c.Paths {
		info, err := prober.Probe(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[FAIL] %s: %v\n", path, err)
			failed++
			continue
		}
		infos = append(infos, info)
	}

	if c.CSV {
		if err := writeProbeCSV(os.Stdout, infos); err != nil {
			return err
		}
	} else {
		printProbeTable(infos)
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func (c *ProbeCmd) runXPath(ctx context.Context, prober *mediainfo.Prober) error {
	failed := 0
	for _, path := range c.Paths {
		report, err := prober.RawReport(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[FAIL] %s: %v\n", path, err)
			failed++
			continue
		}
		values, err := mediainfo.Query(report, c.XPath)
		if err != nil {
			return fmt.Errorf("evaluating %q: %w", c.XPath, err)
		}
		for _, v := range values {
			if len(c.Paths) > 1 {
				fmt.Printf("%s: %s\n", path, v)
			} else {
				fmt.Println(v)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func printProbeTable(infos []*mediainfo.Info) {
	fmt.Printf("%-44s %10s %11s %8s %4s\n", "FILE", "DURATION", "RESOLUTION", "FPS", "ROT")
	fmt.Printf("%-44s %10s %11s %8s %4s\n", "----", "--------", "----------", "---", "---")
	for _, info := range infos {
		res, fps, rot := "-", "-", "-"
		if info.Video != nil {
			res = fmt.Sprintf("%dx%d", info.Video.Width, info.Video.Height)
			fps = strconv.FormatFloat(info.Video.FrameRate, 'f', 2, 64)
			rot = strconv.Itoa(info.Video.Rotation)
		}
		fmt.Printf("%-44s %10s %11s %8s %4s\n",
			filepath.Base(info.Path), formatDuration(info.Duration), res, fps, rot)
	}
}

func writeProbeCSV(w io.Writer, infos []*mediainfo.Info) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"path", "duration_seconds", "width", "height", "frame_rate", "rotation"}); err != nil {
		return err
	}
	for _, info := range infos {
		width, height, fps, rot := "", "", "", ""
		if info.Video != nil {
			width = strconv.Itoa(info.Video.Width)
			height = strconv.Itoa(info.Video.Height)
			fps = strconv.FormatFloat(info.Video.FrameRate, 'f', 3, 64)
			rot = strconv.Itoa(info.Video.Rotation)
		}
		row := []string{
			info.Path,
			strconv.FormatFloat(info.Duration, 'f', 3, 64),
			width, height, fps, rot,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TelemetryExtractCmd exports the requested sensor streams for each
// recording into its metadata directory.
type TelemetryExtractCmd struct {
	Paths   []string `arg:"" help:"Recordings to export" type:"existingfile"`
	Tags    string   `help:"Comma-separated stream tags (default: all supported tags)"`
	Workers int      `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

type telemetryResult struct {
	path    string
	metaDir string
	err     error
}

func (c *TelemetryExtractCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tags := cfg.Telemetry.Tags
	if c.Tags != "" {
		tags = splitTags(c.Tags)
	}
	for _, tag := range tags {
		if err := telemetry.ValidateTag(tag); err != nil {
			return err
		}
	}

	ext := telemetry.NewExtractor(mediatools.FromConfig(cfg).GPMFDemo)
	ctx := context.Background()

	results := pool.Map(workerCount(c.Workers, cfg), c.Paths, func(path string) telemetryResult {
		dir, err := ext.ExtractFile(ctx, path, tags)
		return telemetryResult{path: path, metaDir: dir, err: err}
	})
	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	failed := 0
	for _, res := range results {
		if res.err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", res.path, res.err)
			failed++
			continue
		}
		fmt.Printf("  [OK] %s\n", res.path)
		fmt.Printf("       %s\n", res.metaDir)
	}

	fmt.Printf("\nResults: %d exported, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// splitTags parses a comma-separated tag list, uppercasing entries so
// `--tags accl,gyro` works.
func splitTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

// TelemetryTagsCmd lists the supported stream tags.
type TelemetryTagsCmd struct{}

func (c *TelemetryTagsCmd) Run() error {
	fmt.Printf("%-6s %s\n", "TAG", "DESCRIPTION")
	fmt.Printf("%-6s %s\n", "---", "-----------")
	for _, tag := range telemetry.AllTags {
		fmt.Printf("%-6s %s\n", tag, telemetry.TagDescriptions[tag])
	}
	fmt.Printf("\nTotal: %d tags\n", len(telemetry.AllTags))
	return nil
}

// IMUConvertCmd combines a recording's accelerometer and gyroscope
// text exports into one aligned CSV.
type IMUConvertCmd struct {
	Dirs    []string `arg:"" optional:"" help:"Metadata directories to convert" type:"existingdir"`
	Root    string   `help:"Convert every metadata directory under this root instead" type:"existingdir"`
	Workers int      `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

type imuResult struct {
	dir string
	csv string
	err error
}

func (c *IMUConvertCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dirs := c.Dirs
	if c.Root != "" {
		found, err := telemetry.FindMetadataDirs(c.Root)
		if err != nil {
			return err
		}
		dirs = append(dirs, found...)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("specify metadata directories or use --root")
	}

	results := pool.Map(workerCount(c.Workers, cfg), dirs, func(dir string) imuResult {
		res := imuResult{dir: dir}
		res.csv, res.err = telemetry.CombineIMU(dir)
		return res
	})
	sort.Slice(results, func(i, j int) bool { return results[i].dir < results[j].dir })

	failed := 0
	for _, res := range results {
		if res.err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", res.dir, res.err)
			failed++
			continue
		}
		fmt.Printf("  [OK] %s\n", res.csv)
	}

	fmt.Printf("\nResults: %d converted, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d conversion(s) failed", failed)
	}
	return nil
}

// AudioExtractCmd extracts each recording's audio track with ffmpeg.
type AudioExtractCmd struct {
	Paths     []string `arg:"" help:"Recordings to extract" type:"existingfile"`
	OutputDir string   `short:"o" help:"Directory for WAV files (default: beside each recording)" type:"path"`
	Workers   int      `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

type audioResult struct {
	path string
	wav  string
	err  error
}

func (c *AudioExtractCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ffmpeg := mediatools.FromConfig(cfg).FFmpeg
	ctx := context.Background()

	results := pool.Map(workerCount(c.Workers, cfg), c.Paths, func(path string) audioResult {
		res := audioResult{path: path}
		res.wav, res.err = mediatools.ExtractWAV(ctx, ffmpeg, path, c.OutputDir)
		return res
	})
	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	failed := 0
	for _, res := range results {
		if res.err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", res.path, res.err)
			failed++
			continue
		}
		fmt.Printf("  [OK] %s\n", res.wav)
	}

	fmt.Printf("\nResults: %d extracted, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// ScanCmd walks the dataset root and upserts every recording into the
// catalog.
type ScanCmd struct {
	Root    string `arg:"" optional:"" help:"Dataset root (default: from config)" type:"existingdir"`
	NoProbe bool   `help:"Skip ffprobe duration capture"`
	Workers int    `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

func (c *ScanCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := c.Root
	if root == "" {
		root = cfg.DatasetRoot
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.Migrate(); err != nil {
		return err
	}

	fmt.Printf("Scanning %s\n", root)

	report, err := dataset.Scan(context.Background(), dataset.ScanConfig{
		Root:    root,
		Catalog: cat,
		Tools:   mediatools.FromConfig(cfg),
		Workers: workerCount(c.Workers, cfg),
		NoProbe: c.NoProbe,
		Progress: func(_ string, done, total int, message string) {
			fmt.Printf("  [%d/%d] %s\n", done, total, message)
		},
	})
	if err != nil {
		return err
	}

	fmt.Println()
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", res.Path, res.Err)
		}
	}
	fmt.Printf("Scanned %d of %d recording(s) in %s (%d failed)\n",
		report.Scanned, report.Total, report.Elapsed.Round(time.Millisecond), report.Failed)
	fmt.Printf("Catalog: %s\n", cfg.CatalogPath)

	if report.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", report.Failed)
	}
	return nil
}

// StatsCmd prints catalog statistics.
type StatsCmd struct{}

func (c *StatsCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.CatalogPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no catalog at %s (run 'headcam dataset scan' first)", cfg.CatalogPath)
	}

	cat, err := catalog.OpenReadOnly(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	stats, err := cat.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Catalog: %s\n\n", cfg.CatalogPath)
	fmt.Printf("  Videos:   %d\n", stats.TotalVideos)
	fmt.Printf("  Size:     %s\n", formatBytes(stats.TotalBytes))
	fmt.Printf("  Duration: %s\n", formatDuration(stats.TotalDuration))

	if len(stats.Subjects) > 0 {
		fmt.Println()
		fmt.Printf("%-10s %8s %12s %10s\n", "SUBJECT", "VIDEOS", "SIZE", "DURATION")
		fmt.Printf("%-10s %8s %12s %10s\n", "-------", "------", "----", "--------")
		for _, s := range stats.Subjects {
			fmt.Printf("%-10s %8d %12s %10s\n",
				s.Subject, s.Videos, formatBytes(s.Bytes), formatDuration(s.Duration))
		}
	}
	return nil
}

// DurationsCmd probes per-recording durations with ffprobe and prints
// a path,seconds CSV with a trailing total row.
type DurationsCmd struct {
	Root    string `arg:"" optional:"" help:"Dataset root (default: from config)" type:"existingdir"`
	Catalog bool   `help:"Compare probed durations against the catalog and flag drift"`
	Workers int    `short:"w" help:"Number of parallel workers (default: from config)" default:"0"`
}

func (c *DurationsCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := c.Root
	if root == "" {
		root = cfg.DatasetRoot
	}

	dcfg := dataset.DurationsConfig{
		Root:    root,
		Tools:   mediatools.FromConfig(cfg),
		Workers: workerCount(c.Workers, cfg),
	}
	if c.Catalog {
		if _, err := os.Stat(cfg.CatalogPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no catalog at %s (run 'headcam dataset scan' first)", cfg.CatalogPath)
		}
		cat, err := catalog.OpenReadOnly(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		dcfg.Catalog = cat
	}

	report, err := dataset.Durations(context.Background(), dcfg)
	if err != nil {
		return err
	}

	if err := report.WriteCSV(os.Stdout); err != nil {
		return err
	}

	// Failures and drift go to stderr so the CSV stays machine-readable.
	for _, e := range report.Entries {
		if e.Err != nil {
			fmt.Fprintf(os.Stderr, "[FAIL] %s: %v\n", e.Path, e.Err)
		}
	}
	for _, d := range report.Drift {
		fmt.Fprintf(os.Stderr, "[DRIFT] %s: probed %.3fs, catalog %.3fs\n", d.Path, d.Probed, d.Stored)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", report.Failed)
	}
	return nil
}

// RenameCmd renames raw recordings to the processed naming convention.
// Without --apply it only prints the plan.
type RenameCmd struct {
	Root   string `arg:"" optional:"" help:"Dataset root (default: from config)" type:"existingdir"`
	Apply  bool   `help:"Perform the renames and update the catalog"`
	DryRun bool   `help:"Print the plan without renaming (the default)"`
}

func (c *RenameCmd) Run() error {
	if c.Apply && c.DryRun {
		return fmt.Errorf("--apply and --dry-run are mutually exclusive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := c.Root
	if root == "" {
		root = cfg.DatasetRoot
	}

	rcfg := dataset.RenameConfig{Root: root, Apply: c.Apply}
	if c.Apply {
		cat, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		if err := cat.Migrate(); err != nil {
			return err
		}
		rcfg.Catalog = cat
	}

	report, err := dataset.Rename(rcfg)
	if err != nil {
		return err
	}

	if len(report.Planned) == 0 {
		fmt.Printf("No raw recordings under %s (%d already processed)\n", root, report.Processed)
		return nil
	}

	for _, m := range report.Planned {
		fmt.Printf("  %s -> %s\n", m.Old, m.New)
	}
	fmt.Println()

	if !c.Apply {
		fmt.Printf("Planned %d rename(s), %d file(s) already processed. Re-run with --apply to rename.\n",
			len(report.Planned), report.Processed)
		return nil
	}

	fmt.Printf("Applied %d of %d rename(s) (%d failed)\n",
		report.Applied, len(report.Planned), report.Failed)
	if report.Mapping != "" {
		fmt.Printf("Mapping: %s\n", report.Mapping)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d rename(s) failed", report.Failed)
	}
	return nil
}

// ArchiveCmd bundles every metadata directory under the root into a
// verified tar archive.
type ArchiveCmd struct {
	Root         string `arg:"" optional:"" help:"Root to sweep for metadata directories (default: from config)" type:"existingdir"`
	Compression  string `help:"Bundle compression" enum:"xz,gzip,none" default:"xz"`
	RemoveSource bool   `help:"Delete each metadata directory after its bundle verifies"`
}

func (c *ArchiveCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	comp, err := archive.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	root := c.Root
	if root == "" {
		root = cfg.DatasetRoot
	}

	dirs, err := findMetadataDirs(root)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Printf("No metadata directories under %s\n", root)
		return nil
	}

	fmt.Printf("Bundling %d metadata directories\n\n", len(dirs))
	failed := 0
	for _, dir := range dirs {
		bundle, err := archive.CreateBundle(dir, comp)
		if err != nil {
			fmt.Printf("  [FAIL] %s: %v\n", dir, err)
			failed++
			continue
		}
		fmt.Printf("  [OK] %s\n", bundle)
		if c.RemoveSource {
			// CreateBundle has already verified the archive contents.
			if err := os.RemoveAll(dir); err != nil {
				fmt.Printf("  [FAIL] %s: removing source: %v\n", dir, err)
				failed++
			}
		}
	}

	fmt.Printf("\nResults: %d bundled, %d failed\n", len(dirs)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d bundle(s) failed", failed)
	}
	return nil
}

// ServeCmd starts the dashboard server and runs it until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address (default: from config)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := c.Addr
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, server.Config{
		Addr:           addr,
		CatalogPath:    cfg.CatalogPath,
		DatasetRoot:    cfg.DatasetRoot,
		AllowedOrigins: cfg.Serve.AllowedOrigins,
		StatsTTL:       cfg.StatsCacheTTL(),
		Tools:          mediatools.FromConfig(cfg),
		Version:        version,
	})
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("headcam version %s\n", version)
	return nil
}

// Helper functions

// loadConfig loads the toolkit configuration and initializes logging
// from it, with the global flags taking precedence over the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.LogFormat != "" {
		cfg.Log.Format = CLI.LogFormat
	}
	logging.InitLogger(logging.ParseLevel(cfg.Log.Level), logging.ParseFormat(cfg.Log.Format))
	return cfg, nil
}

// workerCount resolves a command's --workers flag against the config.
func workerCount(flag int, cfg *config.Config) int {
	if flag > 0 {
		return flag
	}
	return cfg.Workers
}

// promptForFile reads a single path from stdin, for commands invoked
// without arguments.
func promptForFile(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	path := strings.TrimSpace(line)
	if path == "" {
		if err != nil {
			return "", fmt.Errorf("reading filename: %w", err)
		}
		return "", fmt.Errorf("no filename given")
	}
	return path, nil
}

// findMetadataDirs walks root and returns every *_metadata directory.
// Matches are not descended into, so nested exports stay inside their
// parent's bundle.
func findMetadataDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasSuffix(d.Name(), "_metadata") {
			dirs = append(dirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return dirs, nil
}

// formatDuration renders seconds as H:MM:SS for human-readable output.
func formatDuration(secs float64) string {
	d := time.Duration(secs * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// formatBytes renders a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("headcam"),
		kong.Description("headcam - head-mounted camera dataset toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
