package catalog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	headcamerrors "github.com/headcamlab/headcam/core/errors"
)

// openTestCatalog opens a migrated catalog in a temp directory.
func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return c
}

func testVideo(uid, subject, path string) *Video {
	return &Video{
		UID:        uid,
		Subject:    subject,
		Session:    "L",
		Recorded:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		RawName:    "04540202_GX010042_06.10.2024-06.16.2024.MP4",
		Path:       path,
		SizeBytes:  1024,
		BLAKE3:     "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		SHA256:     "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Duration:   61.5,
		DeviceID:   "HERO11 Black",
		Highlights: 2,
		ScannedAt:  time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestMigrateIdempotent verifies Migrate can run repeatedly.
func TestMigrateIdempotent(t *testing.T) {
	c := openTestCatalog(t)
	if err := c.Migrate(); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

// TestUpsertAndGet round-trips a full record through the database.
func TestUpsertAndGet(t *testing.T) {
	c := openTestCatalog(t)

	want := testVideo("ab12cd34ef", "04540202", "/data/a.mp4")
	if err := c.Upsert(want); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := c.Get("ab12cd34ef")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.UID != want.UID {
		t.Errorf("UID = %q, want %q", got.UID, want.UID)
	}
	if got.Subject != want.Subject {
		t.Errorf("Subject = %q, want %q", got.Subject, want.Subject)
	}
	if got.Session != want.Session {
		t.Errorf("Session = %q, want %q", got.Session, want.Session)
	}
	if !got.Recorded.Equal(want.Recorded) {
		t.Errorf("Recorded = %v, want %v", got.Recorded, want.Recorded)
	}
	if got.RawName != want.RawName {
		t.Errorf("RawName = %q, want %q", got.RawName, want.RawName)
	}
	if got.Path != want.Path {
		t.Errorf("Path = %q, want %q", got.Path, want.Path)
	}
	if got.SizeBytes != want.SizeBytes {
		t.Errorf("SizeBytes = %d, want %d", got.SizeBytes, want.SizeBytes)
	}
	if got.BLAKE3 != want.BLAKE3 {
		t.Errorf("BLAKE3 = %q, want %q", got.BLAKE3, want.BLAKE3)
	}
	if got.SHA256 != want.SHA256 {
		t.Errorf("SHA256 = %q, want %q", got.SHA256, want.SHA256)
	}
	if got.Duration != want.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, want.Duration)
	}
	if got.DeviceID != want.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, want.DeviceID)
	}
	if got.Highlights != want.Highlights {
		t.Errorf("Highlights = %d, want %d", got.Highlights, want.Highlights)
	}
	if !got.ScannedAt.Equal(want.ScannedAt) {
		t.Errorf("ScannedAt = %v, want %v", got.ScannedAt, want.ScannedAt)
	}
}

// TestUpsertReplacesByPath verifies a second upsert for the same path
// updates the row instead of inserting a duplicate.
func TestUpsertReplacesByPath(t *testing.T) {
	c := openTestCatalog(t)

	v := testVideo("ab12cd34ef", "04540202", "/data/a.mp4")
	if err := c.Upsert(v); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	v.UID = "ff00ff00ff"
	v.SizeBytes = 2048
	if err := c.Upsert(v); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	videos, err := c.List(ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("List() returned %d videos, want 1", len(videos))
	}
	if videos[0].UID != "ff00ff00ff" {
		t.Errorf("UID after replace = %q, want %q", videos[0].UID, "ff00ff00ff")
	}
	if videos[0].SizeBytes != 2048 {
		t.Errorf("SizeBytes after replace = %d, want 2048", videos[0].SizeBytes)
	}
}

// TestUpsertValidation rejects records without a UID or path.
func TestUpsertValidation(t *testing.T) {
	c := openTestCatalog(t)

	if err := c.Upsert(&Video{Path: "/data/a.mp4"}); err == nil {
		t.Error("Upsert() with empty UID should fail")
	}
	if err := c.Upsert(&Video{UID: "ab12cd34ef"}); err == nil {
		t.Error("Upsert() with empty path should fail")
	}
}

// TestGetNotFound returns ErrNotFound for unknown UIDs.
func TestGetNotFound(t *testing.T) {
	c := openTestCatalog(t)

	_, err := c.Get("nope")
	if !errors.Is(err, headcamerrors.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

// TestByPath looks a record up by filesystem path.
func TestByPath(t *testing.T) {
	c := openTestCatalog(t)

	v := testVideo("ab12cd34ef", "04540202", "/data/a.mp4")
	if err := c.Upsert(v); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := c.ByPath("/data/a.mp4")
	if err != nil {
		t.Fatalf("ByPath() error = %v", err)
	}
	if got.UID != v.UID {
		t.Errorf("UID = %q, want %q", got.UID, v.UID)
	}

	if _, err := c.ByPath("/data/missing.mp4"); !errors.Is(err, headcamerrors.ErrNotFound) {
		t.Errorf("ByPath(missing) error = %v, want ErrNotFound", err)
	}
}

// TestDeleteByPath removes a record and reports missing paths.
func TestDeleteByPath(t *testing.T) {
	c := openTestCatalog(t)

	v := testVideo("ab12cd34ef", "04540202", "/data/a.mp4")
	if err := c.Upsert(v); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := c.DeleteByPath("/data/a.mp4"); err != nil {
		t.Fatalf("DeleteByPath() error = %v", err)
	}
	if _, err := c.ByPath("/data/a.mp4"); !errors.Is(err, headcamerrors.ErrNotFound) {
		t.Errorf("ByPath() after delete error = %v, want ErrNotFound", err)
	}

	if err := c.DeleteByPath("/data/a.mp4"); !errors.Is(err, headcamerrors.ErrNotFound) {
		t.Errorf("DeleteByPath(missing) error = %v, want ErrNotFound", err)
	}
}

// TestListFilterAndLimit exercises the subject filter and limit.
func TestListFilterAndLimit(t *testing.T) {
	c := openTestCatalog(t)

	seed := []*Video{
		testVideo("aaaaaaaaaa", "04540202", "/data/a.mp4"),
		testVideo("bbbbbbbbbb", "04540202", "/data/b.mp4"),
		testVideo("cccccccccc", "04540321", "/data/c.mp4"),
	}
	for _, v := range seed {
		if err := c.Upsert(v); err != nil {
			t.Fatalf("Upsert(%s) error = %v", v.UID, err)
		}
	}

	all, err := c.List(ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d videos, want 3", len(all))
	}

	filtered, err := c.List(ListOptions{Subject: "04540202"})
	if err != nil {
		t.Fatalf("List(subject) error = %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("List(subject) returned %d videos, want 2", len(filtered))
	}
	for _, v := range filtered {
		if v.Subject != "04540202" {
			t.Errorf("filtered subject = %q, want 04540202", v.Subject)
		}
	}

	limited, err := c.List(ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(limit=1) returned %d videos, want 1", len(limited))
	}
}

// TestStats verifies totals and the per-subject breakdown.
func TestStats(t *testing.T) {
	c := openTestCatalog(t)

	a := testVideo("aaaaaaaaaa", "04540202", "/data/a.mp4")
	a.SizeBytes, a.Duration = 100, 10
	b := testVideo("bbbbbbbbbb", "04540202", "/data/b.mp4")
	b.SizeBytes, b.Duration = 200, 20
	d := testVideo("cccccccccc", "04540321", "/data/c.mp4")
	d.SizeBytes, d.Duration = 400, 40
	for _, v := range []*Video{a, b, d} {
		if err := c.Upsert(v); err != nil {
			t.Fatalf("Upsert(%s) error = %v", v.UID, err)
		}
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.TotalVideos != 3 {
		t.Errorf("TotalVideos = %d, want 3", stats.TotalVideos)
	}
	if stats.TotalBytes != 700 {
		t.Errorf("TotalBytes = %d, want 700", stats.TotalBytes)
	}
	if stats.TotalDuration != 70 {
		t.Errorf("TotalDuration = %v, want 70", stats.TotalDuration)
	}
	if len(stats.Subjects) != 2 {
		t.Fatalf("Subjects = %d rows, want 2", len(stats.Subjects))
	}
	if stats.Subjects[0].Subject != "04540202" || stats.Subjects[0].Videos != 2 || stats.Subjects[0].Bytes != 300 {
		t.Errorf("subject[0] = %+v, want 04540202/2 videos/300 bytes", stats.Subjects[0])
	}
	if stats.Subjects[1].Subject != "04540321" || stats.Subjects[1].Videos != 1 {
		t.Errorf("subject[1] = %+v, want 04540321/1 video", stats.Subjects[1])
	}
}

// TestStatsEmpty returns zeroes for an empty catalog.
func TestStatsEmpty(t *testing.T) {
	c := openTestCatalog(t)

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalVideos != 0 || stats.TotalBytes != 0 || stats.TotalDuration != 0 {
		t.Errorf("empty stats = %+v, want zeroes", stats)
	}
	if len(stats.Subjects) != 0 {
		t.Errorf("empty Subjects = %d rows, want 0", len(stats.Subjects))
	}
}

// TestDurations returns the stored durations keyed by path.
func TestDurations(t *testing.T) {
	c := openTestCatalog(t)

	a := testVideo("aaaaaaaaaa", "04540202", "/data/a.mp4")
	a.Duration = 12.5
	b := testVideo("bbbbbbbbbb", "04540202", "/data/b.mp4")
	b.Duration = 7.25
	for _, v := range []*Video{a, b} {
		if err := c.Upsert(v); err != nil {
			t.Fatalf("Upsert(%s) error = %v", v.UID, err)
		}
	}

	durations, err := c.Durations()
	if err != nil {
		t.Fatalf("Durations() error = %v", err)
	}
	if len(durations) != 2 {
		t.Fatalf("Durations() returned %d entries, want 2", len(durations))
	}
	if durations["/data/a.mp4"] != 12.5 {
		t.Errorf("duration[a] = %v, want 12.5", durations["/data/a.mp4"])
	}
	if durations["/data/b.mp4"] != 7.25 {
		t.Errorf("duration[b] = %v, want 7.25", durations["/data/b.mp4"])
	}
}

// TestZeroDatesSurviveRoundTrip keeps zero times zero instead of
// storing a bogus epoch date.
func TestZeroDatesSurviveRoundTrip(t *testing.T) {
	c := openTestCatalog(t)

	v := &Video{UID: "ab12cd34ef", Subject: "04540202", Path: "/data/a.mp4"}
	if err := c.Upsert(v); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := c.Get("ab12cd34ef")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Recorded.IsZero() {
		t.Errorf("Recorded = %v, want zero time", got.Recorded)
	}
	// ScannedAt defaults to now on upsert.
	if got.ScannedAt.IsZero() {
		t.Error("ScannedAt should have been defaulted, got zero time")
	}
}

// TestOpenReadOnly reads an existing catalog without write access.
func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := c.Upsert(testVideo("ab12cd34ef", "04540202", "/data/a.mp4")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	c.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly() error = %v", err)
	}
	defer ro.Close()

	got, err := ro.Get("ab12cd34ef")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Subject != "04540202" {
		t.Errorf("Subject = %q, want 04540202", got.Subject)
	}
}
