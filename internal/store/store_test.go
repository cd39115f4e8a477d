package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotregistry/internal/model"
)

func TestLoadBaselineMissingFileIsEmpty(t *testing.T) {
	b, err := LoadBaseline(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, b.Robots)
	assert.NotNil(t, b.Robots)
	assert.Nil(t, b.ScrapedAt)
}

func TestLoadBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "sites": [{"id": "a.example", "baseUrl": "http://a.example/", "status": "active"}],
  "robots": [
    {"id": "r1", "siteId": "a.example", "type": "AMR", "name": "robot-01",
     "description": "", "mac": "AA:BB:CC:DD:EE:FF", "rawMac": "aabbccddeeff",
     "source": "seed", "createdAt": "2025-01-01"}
  ],
  "scrapedAt": "2026-10-01T00:00:00Z"
}`), 0o644))

	b, err := LoadBaseline(path)
	require.NoError(t, err)
	require.Len(t, b.Robots, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", b.Robots[0].MAC)
	assert.Equal(t, model.SourceSeed, b.Robots[0].Source)
	require.NotNil(t, b.ScrapedAt)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), b.ScrapedAt.UTC())
}

func TestLoadBaselineDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"robots": [`), 0o644))

	_, err := LoadBaseline(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileIO)

	var fe *FileIOError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "decode", fe.Op)
	assert.Equal(t, path, fe.Path)
}

func TestLoadBatchOptional(t *testing.T) {
	b, err := LoadBatch(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestLoadMergedRequired(t *testing.T) {
	_, err := LoadMerged(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrFileIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveBatchRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "batch.json")
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	in := &model.BatchResult{
		RunID:     "run-1",
		ScrapedAt: at,
		Sites: []model.SiteScrapeResult{
			{SiteID: "a.example", Robots: []model.RawRecord{{Name: "r", MAC: "aabbccddeeff"}}, ScrapedAt: at, Success: true, DurationMs: 1200},
			{SiteID: "b.example", Robots: []model.RawRecord{}, ScrapedAt: at, Error: "timeout", Stage: "waiting_for_content"},
		},
		TotalRobots: 1,
	}

	require.NoError(t, SaveBatch(path, in))
	out, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveMergedWritesNullScrapedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.json")
	cat := &model.MergedCatalog{
		Sites:    []model.Site{},
		Robots:   []model.DeviceRecord{},
		MergedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, SaveMerged(path, cat))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"scrapedAt": null`)
	assert.Contains(t, string(raw), `"robots": []`)

	// A merged catalog is a valid baseline.
	b, err := LoadBaseline(path)
	require.NoError(t, err)
	assert.Nil(t, b.ScrapedAt)
	assert.Empty(t, b.Robots)
}

func TestWriteJSONReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, WriteJSON(path, map[string]int{"total": 3}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 3}`, string(raw))
}

func TestWriteJSONEncodeErrorLeavesTargetUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o644))

	err := WriteJSON(path, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileIO)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(raw))
}

func TestExportCSV(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	cat := &model.MergedCatalog{Robots: []model.DeviceRecord{
		{SiteID: "b.example", MAC: "00:00:00:00:00:01", Name: "b1", Source: model.SourceSeed},
		{SiteID: "a.example", MAC: "AA:BB:CC:DD:EE:FF", Name: "a1", Type: "AMR", Description: "dock, east", Source: model.SourceLive, ScrapedAt: &at},
	}}

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, cat))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "site_id,mac,name,type,description,source,created_at,scraped_at", lines[0])
	assert.Equal(t, `a.example,AA:BB:CC:DD:EE:FF,a1,AMR,"dock, east",live,,2026-10-15T09:00:00Z`, lines[1])
	assert.Equal(t, "b.example,00:00:00:00:00:01,b1,,,seed,,", lines[2])
}
