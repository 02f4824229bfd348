// Package config builds the explicit runtime configuration passed to every
// component constructor. Nothing else in the module reads ambient process
// state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"gopkg.in/yaml.v3"
)

// ErrMissingConfig indicates a required input was not supplied. It is fatal
// before any network activity.
var ErrMissingConfig = errors.New("missing required configuration")

// Defaults for the UrFU deployment this tool targets.
const (
	DefaultBaseURL     = "https://courses.openedu.urfu.ru"
	DefaultEmailDomain = "urfu.online"
	DefaultFreshDays   = 5
	DefaultPace        = 2 * time.Second
)

// Config is the explicit configuration value constructed once at startup.
type Config struct {
	// BaseURL of the platform, without trailing slash.
	BaseURL string
	// Username is the staff login; bare usernames are turned into emails
	// with EmailDomain during authentication.
	Username string
	// Password is sealed immediately after loading and only opened for the
	// login POST.
	Password *memguard.Enclave
	// EmailDomain is the institutional suffix for bare usernames.
	EmailDomain string
	// GradesDir is the local report-file tree scanned by the summary view.
	GradesDir string
	// SnapshotPath is the catalog snapshot database; empty disables it.
	SnapshotPath string
	// FreshDays is the age threshold below which a report counts as fresh.
	FreshDays int
	// Pace is the fixed delay between per-course trigger requests.
	Pace time.Duration
}

// fileConfig is the YAML shape of an optional config file. The password may
// be supplied here for unattended runs, but the environment always wins.
type fileConfig struct {
	BaseURL      string `yaml:"base_url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	EmailDomain  string `yaml:"email_domain"`
	GradesDir    string `yaml:"grades_dir"`
	SnapshotPath string `yaml:"snapshot_path"`
	FreshDays    int    `yaml:"fresh_days"`
	PaceSeconds  int    `yaml:"pace_seconds"`
}

// Load builds a Config from the optional YAML file at path (ignored when
// empty) overridden by the OPENEDU_* environment variables, then fills in
// deployment defaults. Credentials are not validated here; commands that
// need them call ValidateAuth.
func Load(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		BaseURL:      firstOf(os.Getenv("OPENEDU_BASE_URL"), fc.BaseURL, DefaultBaseURL),
		Username:     firstOf(os.Getenv("OPENEDU_USERNAME"), fc.Username),
		EmailDomain:  firstOf(os.Getenv("OPENEDU_EMAIL_DOMAIN"), fc.EmailDomain, DefaultEmailDomain),
		GradesDir:    firstOf(os.Getenv("OPENEDU_GRADES_DIR"), fc.GradesDir),
		SnapshotPath: firstOf(os.Getenv("OPENEDU_SNAPSHOT_PATH"), fc.SnapshotPath),
		FreshDays:    DefaultFreshDays,
		Pace:         DefaultPace,
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if fc.FreshDays > 0 {
		cfg.FreshDays = fc.FreshDays
	}
	if fc.PaceSeconds > 0 {
		cfg.Pace = time.Duration(fc.PaceSeconds) * time.Second
	}

	if pw := firstOf(os.Getenv("OPENEDU_PASSWORD"), fc.Password); pw != "" {
		cfg.Password = memguard.NewEnclave([]byte(pw))
	}
	return cfg, nil
}

// ValidateAuth checks the inputs the authenticated commands cannot run
// without. It fails before any network activity.
func (c *Config) ValidateAuth() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "OPENEDU_BASE_URL")
	}
	if c.Username == "" || c.Password == nil {
		missing = append(missing, "OPENEDU_USERNAME/OPENEDU_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateSummary checks the inputs the local summary view needs.
func (c *Config) ValidateSummary() error {
	if c.GradesDir == "" {
		return fmt.Errorf("%w: OPENEDU_GRADES_DIR", ErrMissingConfig)
	}
	return nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
