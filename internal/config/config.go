package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFile is the dotenv file read alongside the process environment.
// Variables already set in the environment win over the file.
var EnvFile = ".env"

// SkippableStages are the stage names accepted in skipStages.
var SkippableStages = []string{"optimize", "enhance", "review", "privacy"}

// Config represents the scribe configuration.
type Config struct {
	InboxDir        string        `json:"inboxDir"`
	ArchiveDir      string        `json:"archiveDir"`
	PostsDir        string        `json:"postsDir"`
	WorkDir         string        `json:"workDir"`
	LedgerPath      string        `json:"ledgerPath,omitempty"`
	BatchSize       int           `json:"batchSize"`
	Concurrency     int           `json:"concurrency"`
	Extensions      []string      `json:"extensions"`
	SkipStages      []string      `json:"skipStages,omitempty"`
	KeepCheckpoints bool          `json:"keepCheckpoints"`
	Format          string        `json:"format"`
	FailOn          string        `json:"failOn"`
	LogLevel        string        `json:"logLevel"`
	LogFormat       string        `json:"logFormat"`
	KeywordsFile    string        `json:"keywordsFile,omitempty"`
	Privacy         PrivacyConfig `json:"privacy"`
	Cache           CacheConfig   `json:"cache"`
	Site            SiteConfig    `json:"site"`
}

// CacheConfig controls caching of redaction results.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// PrivacyConfig controls the redaction rules and inbox path policy.
type PrivacyConfig struct {
	RulesFile   string   `json:"rulesFile,omitempty"`
	RedactPaths []string `json:"redactPaths,omitempty"`
}

// SiteConfig controls the static-site generator run after publishing.
type SiteConfig struct {
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	Root           string   `json:"root"`
	Preview        bool     `json:"preview"`
	Deploy         bool     `json:"deploy"`
	PreviewSeconds int      `json:"previewSeconds"`
	DeployRetries  int      `json:"deployRetries"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		InboxDir:    "unpost",
		ArchiveDir:  "posted",
		PostsDir:    filepath.Join("source", "_posts"),
		WorkDir:     ".scribe",
		BatchSize:   10,
		Concurrency: 4,
		Extensions:  []string{".md", ".txt", ".markdown"},
		Format:      "text",
		FailOn:      "none",
		LogLevel:    "info",
		LogFormat:   "text",
		Privacy: PrivacyConfig{
			RedactPaths: []string{"**/.env", "**/*secrets*"},
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Site: SiteConfig{
			Command:        "npx",
			Args:           []string{"hexo"},
			Root:           ".",
			PreviewSeconds: 30,
			DeployRetries:  2,
		},
	}
}

// LedgerFile returns the ledger database path, defaulting to one inside
// the work directory.
func (c Config) LedgerFile() string {
	if c.LedgerPath != "" {
		return c.LedgerPath
	}
	return filepath.Join(c.WorkDir, "ledger.db")
}

// CheckpointDir is where batch checkpoints live.
func (c Config) CheckpointDir() string {
	return filepath.Join(c.WorkDir, "checkpoints")
}

// ReportDir is where run reports are written.
func (c Config) ReportDir() string {
	return filepath.Join(c.WorkDir, "reports")
}

// Skips reports whether the named optional stage is disabled.
func (c Config) Skips(stage string) bool {
	return slices.Contains(c.SkipStages, stage)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	var errs []error
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batchSize must be at least 1, got %d", c.BatchSize))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.InboxDir == "" || c.PostsDir == "" || c.WorkDir == "" {
		errs = append(errs, errors.New("inboxDir, postsDir and workDir must be set"))
	}
	for _, s := range c.SkipStages {
		if !slices.Contains(SkippableStages, s) {
			errs = append(errs, fmt.Errorf("skipStages: %q is not one of %s", s, strings.Join(SkippableStages, ", ")))
		}
	}
	switch c.Format {
	case "text", "json", "markdown", "sarif":
	default:
		errs = append(errs, fmt.Errorf("format must be text, json, markdown or sarif, got %q", c.Format))
	}
	switch c.FailOn {
	case "none", "low", "medium", "high", "critical":
	default:
		errs = append(errs, fmt.Errorf("failOn must be none, low, medium, high or critical, got %q", c.FailOn))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the platform-appropriate config directory for scribe.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scribe"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "scribe"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "scribe"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "scribe"), nil
	default:
		return filepath.Join(home, ".config", "scribe"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile reads the config file at path (the default path if empty) over
// the defaults. Keys absent from the file keep their default values. A
// missing file is not an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, or to the default path if empty.
func Save(cfg Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(path string, overrides map[string]string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// envKeys maps SCRIBE_* variables to config keys.
var envKeys = []struct{ env, key string }{
	{"SCRIBE_INBOX_DIR", "inboxDir"},
	{"SCRIBE_ARCHIVE_DIR", "archiveDir"},
	{"SCRIBE_POSTS_DIR", "postsDir"},
	{"SCRIBE_WORK_DIR", "workDir"},
	{"SCRIBE_LEDGER_PATH", "ledgerPath"},
	{"SCRIBE_BATCH_SIZE", "batchSize"},
	{"SCRIBE_CONCURRENCY", "concurrency"},
	{"SCRIBE_SKIP_STAGES", "skipStages"},
	{"SCRIBE_KEEP_CHECKPOINTS", "keepCheckpoints"},
	{"SCRIBE_FORMAT", "format"},
	{"SCRIBE_FAIL_ON", "failOn"},
	{"SCRIBE_LOG_LEVEL", "logLevel"},
	{"SCRIBE_LOG_FORMAT", "logFormat"},
	{"SCRIBE_KEYWORDS_FILE", "keywordsFile"},
	{"SCRIBE_RULES_FILE", "privacy.rulesFile"},
	{"SCRIBE_CACHE_ENABLED", "cache.enabled"},
	{"SCRIBE_CACHE_DIR", "cache.dir"},
	{"SCRIBE_SITE_ROOT", "site.root"},
}

func mergeEnv(cfg *Config) error {
	dot, err := godotenv.Read(EnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", EnvFile, err)
	}
	for _, e := range envKeys {
		v, ok := os.LookupEnv(e.env)
		if !ok {
			v = dot[e.env]
		}
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := overrides[k]; v != "" {
			if err := SetField(cfg, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Keys lists every key SetField accepts.
func Keys() []string {
	return []string{
		"inboxDir", "archiveDir", "postsDir", "workDir", "ledgerPath",
		"batchSize", "concurrency", "extensions", "skipStages", "keepCheckpoints",
		"format", "failOn", "logLevel", "logFormat", "keywordsFile",
		"privacy.rulesFile", "privacy.redactPaths",
		"cache.enabled", "cache.dir", "cache.ttlSeconds",
		"site.command", "site.args", "site.root", "site.preview", "site.deploy", "site.previewSeconds",
		"site.deployRetries",
	}
}

// SetField sets a single config field by key name. List values are comma
// separated. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "inboxDir":
		cfg.InboxDir = value
	case "archiveDir":
		cfg.ArchiveDir = value
	case "postsDir":
		cfg.PostsDir = value
	case "workDir":
		cfg.WorkDir = value
	case "ledgerPath":
		cfg.LedgerPath = value
	case "batchSize":
		return setInt(&cfg.BatchSize, key, value)
	case "concurrency":
		return setInt(&cfg.Concurrency, key, value)
	case "extensions":
		cfg.Extensions = splitList(value)
	case "skipStages":
		cfg.SkipStages = splitList(value)
	case "keepCheckpoints":
		return setBool(&cfg.KeepCheckpoints, key, value)
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "logLevel":
		cfg.LogLevel = value
	case "logFormat":
		cfg.LogFormat = value
	case "keywordsFile":
		cfg.KeywordsFile = value
	case "privacy.rulesFile", "rulesFile":
		cfg.Privacy.RulesFile = value
	case "privacy.redactPaths":
		cfg.Privacy.RedactPaths = splitList(value)
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "site.command":
		cfg.Site.Command = value
	case "site.args":
		cfg.Site.Args = splitList(value)
	case "site.root":
		cfg.Site.Root = value
	case "site.preview":
		return setBool(&cfg.Site.Preview, key, value)
	case "site.deploy":
		return setBool(&cfg.Site.Deploy, key, value)
	case "site.previewSeconds":
		return setInt(&cfg.Site.PreviewSeconds, key, value)
	case "site.deployRetries":
		return setInt(&cfg.Site.DeployRetries, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
