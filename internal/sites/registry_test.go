package sites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sites:
  - id: a.example
    loginUrl: http://a.example/login
    listingUrl: http://a.example/robot
    locators:
      usernameInput: "input[type=text]"
      passwordInput: "input[type=password]"
      loginButton: "button.login"
      waitForElement: "table tbody tr"
    columnMapping:
      type: 1
      name: 2
      mac: 3
      description: 4
      registeredDate: 5
  - id: b.example
    loginUrl: https://b.example/auth
    listingUrl: https://b.example/devices
    locators:
      usernameInput: "#user"
      passwordInput: "#pass"
      loginButton: "#submit"
      waitForElement: "#grid"
      rowSelector: "#grid tr"
    minCells: 3
    columnMapping:
      name: 0
      mac: 1
`

const sampleJSON = `{"sites":[{"id":"c.example","loginUrl":"http://c.example/login","listingUrl":"http://c.example/robot",
"locators":{"usernameInput":"#u","passwordInput":"#p","loginButton":"#b","waitForElement":"table"},
"columnMapping":{"name":0,"mac":2}}]}`

func TestParseYAML(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	all := r.Sites()
	assert.Equal(t, "a.example", all[0].ID)
	assert.Equal(t, "b.example", all[1].ID)

	a, ok := r.Get("a.example")
	require.True(t, ok)
	idx, ok := a.ColumnMapping.Index(FieldMAC)
	assert.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, DefaultRowSelector, a.Rows())
	assert.Equal(t, DefaultMinCells, a.MinimumCells())

	b, _ := r.Get("b.example")
	assert.Equal(t, "#grid tr", b.Rows())
	assert.Equal(t, 3, b.MinimumCells())
	_, ok = b.ColumnMapping.Index(FieldType)
	assert.False(t, ok)
}

func TestParseJSON(t *testing.T) {
	r, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	c, ok := r.Get("c.example")
	require.True(t, ok)
	assert.Equal(t, "http://c.example/robot", c.ListingURL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidation(t *testing.T) {
	base := func() SiteConfig {
		return SiteConfig{
			ID:         "a.example",
			LoginURL:   "http://a.example/login",
			ListingURL: "http://a.example/robot",
			Locators: Locators{
				UsernameInput:  "#u",
				PasswordInput:  "#p",
				LoginButton:    "#b",
				WaitForElement: "table",
			},
			ColumnMapping: ColumnMapping{FieldName: 0, FieldMAC: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*SiteConfig)
	}{
		{"missing id", func(c *SiteConfig) { c.ID = "" }},
		{"relative login url", func(c *SiteConfig) { c.LoginURL = "/login" }},
		{"ftp listing url", func(c *SiteConfig) { c.ListingURL = "ftp://a.example/robot" }},
		{"missing username locator", func(c *SiteConfig) { c.Locators.UsernameInput = "" }},
		{"missing wait locator", func(c *SiteConfig) { c.Locators.WaitForElement = "" }},
		{"missing mac column", func(c *SiteConfig) { delete(c.ColumnMapping, FieldMAC) }},
		{"missing name column", func(c *SiteConfig) { delete(c.ColumnMapping, FieldName) }},
		{"unknown column", func(c *SiteConfig) { c.ColumnMapping["serial"] = 3 }},
		{"negative column", func(c *SiteConfig) { c.ColumnMapping[FieldType] = -1 }},
		{"negative min cells", func(c *SiteConfig) { c.MinCells = -2 }},
	}

	_, err := New(base())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			_, err := New(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestDuplicateAndEmpty(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.ErrorIs(t, err, ErrConfiguration)

	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	all := r.Sites()
	_, err = New(all[0], all[0])
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestUnknownKeysRejected(t *testing.T) {
	_, err := Parse([]byte(`{"sites":[{"id":"x","robotsUrl":"http://x/robot"}]}`))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSelect(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	got, err := r.Select("b.example", "a.example")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.example", got[0].ID, "registry order is kept")

	got, err = r.Select()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = r.Select("nope.example")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRegistryIsImmutable(t *testing.T) {
	r, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	all := r.Sites()
	all[0].ColumnMapping[FieldName] = 9
	all[0].ID = "changed"

	a, ok := r.Get("a.example")
	require.True(t, ok)
	assert.Equal(t, 2, a.ColumnMapping[FieldName])
}
