package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotregistry/internal/config"
	"robotregistry/internal/logging"
	"robotregistry/internal/store"
)

const sitesYAML = `sites:
  - id: a.example
    loginUrl: http://a.example/login
    listingUrl: http://a.example/robot
    locators:
      usernameInput: "#user"
      passwordInput: "#pass"
      loginButton: "#login"
      waitForElement: table tbody tr
    columnMapping:
      type: 1
      name: 2
      mac: 3
      description: 4
      registeredDate: 5
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--log-format", "json", "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testEnv(t *testing.T) string {
	dir := t.TempDir()
	sitesFile := filepath.Join(dir, "sites.yaml")
	require.NoError(t, os.WriteFile(sitesFile, []byte(sitesYAML), 0o644))

	t.Setenv("SITES_FILE", sitesFile)
	t.Setenv("BASELINE_FILE", filepath.Join(dir, "robots.json"))
	t.Setenv("BATCH_FILE", filepath.Join(dir, "scraped-robots.json"))
	t.Setenv("MERGED_FILE", filepath.Join(dir, "merged-robots.json"))
	t.Setenv("REGISTRY_USERNAME", "")
	t.Setenv("REGISTRY_PASSWORD", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("METRICS_PORT", "")
	return dir
}

func TestSitesCommand(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "sites")
	require.NoError(t, err)
	assert.Contains(t, out, "a.example")
	assert.Contains(t, out, "http://a.example/robot")
}

func TestScrapeRequiresCredentials(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "scrape")
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestMergeCommandWithoutInputs(t *testing.T) {
	dir := testEnv(t)

	out, err := execute(t, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "0 robots (0 live, 0 seed)")

	cat, err := store.LoadMerged(filepath.Join(dir, "merged-robots.json"))
	require.NoError(t, err)
	assert.Nil(t, cat.ScrapedAt)
}

func TestRunRejectsBadSchedule(t *testing.T) {
	testEnv(t)
	t.Setenv("REGISTRY_USERNAME", "operator")
	t.Setenv("REGISTRY_PASSWORD", "secret")

	_, err := execute(t, "run", "--schedule", "every so often")
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestExportCommand(t *testing.T) {
	dir := testEnv(t)

	_, err := execute(t, "export")
	assert.ErrorIs(t, err, store.ErrFileIO, "no merged catalog yet")

	_, err = execute(t, "merge")
	require.NoError(t, err)

	out := filepath.Join(dir, "robots.csv")
	_, err = execute(t, "export", "-o", out)
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "site_id,mac,name,type,description,source,created_at,scraped_at\n", string(raw))
}

func TestSitesCommandShowsOneSite(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "sites", "a.example")
	require.NoError(t, err)
	assert.Contains(t, out, "#user")
	assert.Contains(t, out, "column mac")

	_, err = execute(t, "sites", "nope.example")
	assert.ErrorContains(t, err, "unknown site")
}

func TestBackendCommandsNeedConfiguration(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "devices", "a.example")
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = execute(t, "history", "a.example")
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = execute(t, "export", "--from-cache")
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestLogConfigFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\nLOG_FORMAT=json\n"), 0o644))
	t.Chdir(dir)
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	config.LoadDotEnv()

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	assert.Equal(t, logging.Config{Level: "debug", Format: "json"}, logConfig(cmd, "info", "auto"))

	cmd = newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "warn"}))
	assert.Equal(t, logging.Config{Level: "warn", Format: "json"}, logConfig(cmd, "warn", "auto"))
}
