package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure of Load.
var ErrInvalid = errors.New("invalid configuration")

// ErrMissingCredentials is returned by RequireCredentials.
var ErrMissingCredentials = errors.New("REGISTRY_USERNAME and REGISTRY_PASSWORD must be set")

type Config struct {
	SitesFile    string
	BaselineFile string
	BatchFile    string
	MergedFile   string

	Username string
	Password string

	ChromePath     string
	Headless       bool
	PageTimeout    time.Duration
	ContentTimeout time.Duration
	SiteDelay      time.Duration

	DatabaseURL     string
	RedisURL        string
	MetricsPort     string
	TriggerCooldown time.Duration
	MergeLockTTL    time.Duration
}

var defaults = map[string]any{
	"sites_file":        "config/sites.yaml",
	"baseline_file":     "data/robots.json",
	"batch_file":        "data/scraped-robots.json",
	"merged_file":       "data/merged-robots.json",
	"headless":          true,
	"page_timeout":      "30s",
	"content_timeout":   "10s",
	"site_delay":        "2s",
	"metrics_port":      "",
	"trigger_cooldown":  "0s",
	"merge_lock_ttl":    "5m",
	"registry_username": "",
	"registry_password": "",
	"chrome_path":       "",
	"database_url":      "",
	"redis_url":         "",
}

// LoadDotEnv copies .env entries into the environment. Variables that are
// already set win.
func LoadDotEnv() {
	// Carrega .env da raiz do projeto
	_ = godotenv.Load("../../.env")
	// Se não encontrar, tenta no diretório atual
	_ = godotenv.Load()
}

// Load reads .env files, then the environment, then configFile when it is
// not empty. Environment variables use the upper-case key names
// (SITES_FILE, PAGE_TIMEOUT, ...).
func Load(configFile string) (*Config, error) {
	LoadDotEnv()

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		SitesFile:    v.GetString("sites_file"),
		BaselineFile: v.GetString("baseline_file"),
		BatchFile:    v.GetString("batch_file"),
		MergedFile:   v.GetString("merged_file"),
		Username:     v.GetString("registry_username"),
		Password:     v.GetString("registry_password"),
		ChromePath:   v.GetString("chrome_path"),
		Headless:     v.GetBool("headless"),
		DatabaseURL:  v.GetString("database_url"),
		RedisURL:     v.GetString("redis_url"),
		MetricsPort:  v.GetString("metrics_port"),
	}

	var err error
	durations := []struct {
		key   string
		dst   *time.Duration
		floor time.Duration
	}{
		{"page_timeout", &c.PageTimeout, time.Millisecond},
		{"content_timeout", &c.ContentTimeout, time.Millisecond},
		{"site_delay", &c.SiteDelay, 0},
		{"trigger_cooldown", &c.TriggerCooldown, 0},
		{"merge_lock_ttl", &c.MergeLockTTL, time.Second},
	}
	for _, d := range durations {
		if *d.dst, err = duration(v, d.key, d.floor); err != nil {
			return nil, err
		}
	}

	for key, val := range map[string]string{
		"sites_file":    c.SitesFile,
		"baseline_file": c.BaselineFile,
		"batch_file":    c.BatchFile,
		"merged_file":   c.MergedFile,
	} {
		if val == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalid, envName(key))
		}
	}
	return c, nil
}

// RequireCredentials reports whether the console credentials needed for
// scraping are present.
func (c *Config) RequireCredentials() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

func duration(v *viper.Viper, key string, floor time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration (e.g. 30s, 2m)", ErrInvalid, envName(key), raw)
	}
	if d < floor {
		return 0, fmt.Errorf("%w: %s must be at least %s", ErrInvalid, envName(key), floor)
	}
	return d, nil
}

func envName(key string) string {
	return strings.ToUpper(key)
}
