// Package config loads the watcher's YAML configuration. The config is an
// explicit, immutable value: the CLI loads it once and threads it through
// as a parameter. No package-level caching, no environment reads here —
// secrets (API tokens) are resolved by the CLI layer and passed alongside.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Collection names one watched Notion database.
type Collection struct {
	// ID is the Notion database id.
	ID string `yaml:"id"`
	// Label is the human heading used in reports. Empty falls back to ID.
	Label string `yaml:"label"`
}

// GitHub configures the report PR lifecycle. Leaving Owner/Repo empty
// disables the PR flow; reports then go to stdout or a local file only.
type GitHub struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	// BaseBranch is the branch report PRs target. Default: main.
	BaseBranch string `yaml:"base_branch"`
	// ReportBranch is the head branch holding report state. Default:
	// notion-watch/report.
	ReportBranch string `yaml:"report_branch"`
	// StatePath is the in-repo directory where snapshot state files are
	// committed. Default: .notion-watch.
	StatePath string `yaml:"state_path"`
	// ReportPath is the in-repo path of the rendered report. Default:
	// notion-report.md.
	ReportPath string `yaml:"report_path"`
}

// Config is the full watcher configuration.
type Config struct {
	// StateDir is the local snapshot store directory. Default: .notion-watch.
	StateDir string `yaml:"state_dir"`
	// Interval is the watch-mode poll interval. Default: 15m.
	Interval time.Duration `yaml:"interval"`
	// Parallelism bounds concurrent collection cycles. Default: 1
	// (sequential); collections share no state, so higher is safe.
	Parallelism int `yaml:"parallelism"`
	// MetricsAddr, when set, serves Prometheus metrics in watch mode
	// (e.g. ":9187").
	MetricsAddr string `yaml:"metrics_addr"`

	Notion struct {
		// Version is the Notion-Version API header. Empty uses the
		// client default.
		Version string `yaml:"version"`
		// PageSize is the query page size. Empty uses the client default.
		PageSize int `yaml:"page_size"`
	} `yaml:"notion"`

	GitHub      GitHub       `yaml:"github"`
	Collections []Collection `yaml:"collections"`
}

func (c *Config) defaults() {
	if c.StateDir == "" {
		c.StateDir = ".notion-watch"
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}
	if c.GitHub.BaseBranch == "" {
		c.GitHub.BaseBranch = "main"
	}
	if c.GitHub.ReportBranch == "" {
		c.GitHub.ReportBranch = "notion-watch/report"
	}
	if c.GitHub.StatePath == "" {
		c.GitHub.StatePath = ".notion-watch"
	}
	if c.GitHub.ReportPath == "" {
		c.GitHub.ReportPath = "notion-report.md"
	}
}

func (c *Config) validate() error {
	if len(c.Collections) == 0 {
		return fmt.Errorf("config: no collections configured")
	}
	seen := make(map[string]struct{}, len(c.Collections))
	for i, col := range c.Collections {
		if col.ID == "" {
			return fmt.Errorf("config: collections[%d]: missing id", i)
		}
		if _, dup := seen[col.ID]; dup {
			return fmt.Errorf("config: duplicate collection id %s", col.ID)
		}
		seen[col.ID] = struct{}{}
	}
	return nil
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.defaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
