// Package sites holds the declarative per-site scrape configuration: where
// to log in, which locators drive the login form and which listing columns
// map to which record fields.
package sites

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Field names a listing column.
type Field string

const (
	FieldType           Field = "type"
	FieldName           Field = "name"
	FieldMAC            Field = "mac"
	FieldDescription    Field = "description"
	FieldRegisteredDate Field = "registeredDate"
)

var knownFields = map[Field]bool{
	FieldType:           true,
	FieldName:           true,
	FieldMAC:            true,
	FieldDescription:    true,
	FieldRegisteredDate: true,
}

const (
	DefaultRowSelector = "table tbody tr"
	DefaultMinCells    = 5
)

// Locators are the CSS selectors used to drive one site.
type Locators struct {
	UsernameInput  string `yaml:"usernameInput"`
	PasswordInput  string `yaml:"passwordInput"`
	LoginButton    string `yaml:"loginButton"`
	WaitForElement string `yaml:"waitForElement"`
	RowSelector    string `yaml:"rowSelector,omitempty"`
}

// ColumnMapping maps a record field to a zero-based table cell index.
type ColumnMapping map[Field]int

// Index returns the column for f and whether it is mapped.
func (m ColumnMapping) Index(f Field) (int, bool) {
	i, ok := m[f]
	return i, ok
}

// SiteConfig is the scrape configuration of one site.
type SiteConfig struct {
	ID            string        `yaml:"id"`
	LoginURL      string        `yaml:"loginUrl"`
	ListingURL    string        `yaml:"listingUrl"`
	Locators      Locators      `yaml:"locators"`
	ColumnMapping ColumnMapping `yaml:"columnMapping"`
	MinCells      int           `yaml:"minCells,omitempty"`
}

// Rows returns the selector matching listing rows.
func (c SiteConfig) Rows() string {
	if c.Locators.RowSelector != "" {
		return c.Locators.RowSelector
	}
	return DefaultRowSelector
}

// MinimumCells returns the fewest cells a row needs to count as data.
func (c SiteConfig) MinimumCells() int {
	if c.MinCells > 0 {
		return c.MinCells
	}
	return DefaultMinCells
}

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a malformed or missing site configuration.
type ConfigurationError struct {
	SiteID string
	Field  string
	Msg    string
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.SiteID != "" && e.Field != "":
		return fmt.Sprintf("site %s: %s: %s", e.SiteID, e.Field, e.Msg)
	case e.SiteID != "":
		return fmt.Sprintf("site %s: %s", e.SiteID, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("site configuration: %s: %v", e.Msg, e.Err)
	default:
		return "site configuration: " + e.Msg
	}
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

type file struct {
	Sites []SiteConfig `yaml:"sites"`
}

// Registry is the immutable, ordered set of configured sites.
type Registry struct {
	sites []SiteConfig
	byID  map[string]int
}

// Load reads a YAML or JSON site configuration file.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Msg: "read " + path, Err: err}
	}
	return Parse(b)
}

// Parse decodes and validates a site configuration document. Unknown keys
// are rejected.
func Parse(b []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Msg: "decode", Err: err}
	}
	return New(f.Sites...)
}

// New validates configs and builds a registry preserving their order.
func New(configs ...SiteConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, &ConfigurationError{Msg: "no sites configured"}
	}

	r := &Registry{
		sites: make([]SiteConfig, 0, len(configs)),
		byID:  make(map[string]int, len(configs)),
	}
	for i, c := range configs {
		if err := validate(c); err != nil {
			return nil, err
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, &ConfigurationError{SiteID: c.ID, Msg: "duplicate site id"}
		}
		r.byID[c.ID] = i
		r.sites = append(r.sites, clone(c))
	}
	return r, nil
}

func validate(c SiteConfig) error {
	if c.ID == "" {
		return &ConfigurationError{Field: "id", Msg: "site id is required"}
	}
	for field, raw := range map[string]string{"loginUrl": c.LoginURL, "listingUrl": c.ListingURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ConfigurationError{SiteID: c.ID, Field: field, Msg: fmt.Sprintf("invalid url %q", raw)}
		}
	}

	required := []struct {
		name, value string
	}{
		{"locators.usernameInput", c.Locators.UsernameInput},
		{"locators.passwordInput", c.Locators.PasswordInput},
		{"locators.loginButton", c.Locators.LoginButton},
		{"locators.waitForElement", c.Locators.WaitForElement},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigurationError{SiteID: c.ID, Field: r.name, Msg: "locator is required"}
		}
	}

	for f, idx := range c.ColumnMapping {
		if !knownFields[f] {
			return &ConfigurationError{SiteID: c.ID, Field: "columnMapping." + string(f), Msg: "unknown field"}
		}
		if idx < 0 {
			return &ConfigurationError{SiteID: c.ID, Field: "columnMapping." + string(f), Msg: "negative column index"}
		}
	}
	for _, f := range []Field{FieldName, FieldMAC} {
		if _, ok := c.ColumnMapping[f]; !ok {
			return &ConfigurationError{SiteID: c.ID, Field: "columnMapping." + string(f), Msg: "column is required"}
		}
	}
	if c.MinCells < 0 {
		return &ConfigurationError{SiteID: c.ID, Field: "minCells", Msg: "must not be negative"}
	}
	return nil
}

func clone(c SiteConfig) SiteConfig {
	m := make(ColumnMapping, len(c.ColumnMapping))
	for k, v := range c.ColumnMapping {
		m[k] = v
	}
	c.ColumnMapping = m
	return c
}

// Sites returns the configured sites in file order.
func (r *Registry) Sites() []SiteConfig {
	out := make([]SiteConfig, 0, len(r.sites))
	for _, c := range r.sites {
		out = append(out, clone(c))
	}
	return out
}

// Len returns the number of configured sites.
func (r *Registry) Len() int { return len(r.sites) }

// Get returns the configuration of one site.
func (r *Registry) Get(id string) (SiteConfig, bool) {
	i, ok := r.byID[id]
	if !ok {
		return SiteConfig{}, false
	}
	return clone(r.sites[i]), true
}

// Select returns the named sites in registry order. An unknown id is a
// configuration error. No ids selects every site.
func (r *Registry) Select(ids ...string) ([]SiteConfig, error) {
	if len(ids) == 0 {
		return r.Sites(), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, &ConfigurationError{SiteID: id, Msg: "not configured"}
		}
		want[id] = true
	}
	out := make([]SiteConfig, 0, len(want))
	for _, c := range r.sites {
		if want[c.ID] {
			out = append(out, clone(c))
		}
	}
	return out, nil
}
