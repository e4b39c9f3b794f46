package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points the config dir and dotenv file at a temp dir and clears
// SCRIBE_* variables for the duration of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, e := range envKeys {
		t.Setenv(e.env, "")
		os.Unsetenv(e.env)
	}
	orig := EnvFile
	EnvFile = filepath.Join(dir, ".env")
	t.Cleanup(func() { EnvFile = orig })
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BatchSize != 10 {
		t.Errorf("Default batchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.FailOn != "none" {
		t.Errorf("Default failOn = %q, want %q", cfg.FailOn, "none")
	}
	if !cfg.Cache.Enabled {
		t.Error("Default cache should be enabled")
	}
	if cfg.KeepCheckpoints {
		t.Error("Default keepCheckpoints should be false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
	if got := cfg.LedgerFile(); got != filepath.Join(".scribe", "ledger.db") {
		t.Errorf("LedgerFile = %q", got)
	}
}

func TestMergeEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SCRIBE_INBOX_DIR", "drafts")
	t.Setenv("SCRIBE_BATCH_SIZE", "3")
	t.Setenv("SCRIBE_SKIP_STAGES", "review, enhance")
	t.Setenv("SCRIBE_KEEP_CHECKPOINTS", "true")
	t.Setenv("SCRIBE_RULES_FILE", "rules.yaml")
	t.Setenv("SCRIBE_CACHE_ENABLED", "false")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.InboxDir != "drafts" {
		t.Errorf("InboxDir = %q, want %q", cfg.InboxDir, "drafts")
	}
	if cfg.BatchSize != 3 {
		t.Errorf("BatchSize = %d, want 3", cfg.BatchSize)
	}
	if strings.Join(cfg.SkipStages, ",") != "review,enhance" {
		t.Errorf("SkipStages = %v", cfg.SkipStages)
	}
	if !cfg.KeepCheckpoints {
		t.Error("KeepCheckpoints should be true")
	}
	if cfg.Privacy.RulesFile != "rules.yaml" {
		t.Errorf("RulesFile = %q", cfg.Privacy.RulesFile)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
}

func TestMergeEnv_DotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SCRIBE_POSTS_DIR=site/posts\nSCRIBE_FORMAT=json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCRIBE_FORMAT", "sarif")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.PostsDir != "site/posts" {
		t.Errorf("PostsDir = %q, want value from .env", cfg.PostsDir)
	}
	if cfg.Format != "sarif" {
		t.Errorf("Format = %q, process env should win over .env", cfg.Format)
	}
}

func TestMergeEnv_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("SCRIBE_CONCURRENCY", "many")
	cfg := Default()
	err := mergeEnv(&cfg)
	if err == nil || !strings.Contains(err.Error(), "SCRIBE_CONCURRENCY") {
		t.Errorf("mergeEnv error = %v, want one naming the variable", err)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	overrides := map[string]string{
		"batchSize":   "25",
		"concurrency": "8",
		"format":      "json",
		"failOn":      "high",
		"inboxDir":    "",
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.BatchSize != 25 || cfg.Concurrency != 8 {
		t.Errorf("BatchSize/Concurrency = %d/%d", cfg.BatchSize, cfg.Concurrency)
	}
	if cfg.Format != "json" || cfg.FailOn != "high" {
		t.Errorf("Format/FailOn = %q/%q", cfg.Format, cfg.FailOn)
	}
	if cfg.InboxDir != "unpost" {
		t.Errorf("empty override replaced InboxDir: %q", cfg.InboxDir)
	}

	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Errorf("nil overrides: %v", err)
	}
}

func TestSetField(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(Config) bool
	}{
		{"workDir", "/tmp/w", func(c Config) bool { return c.WorkDir == "/tmp/w" }},
		{"extensions", ".md, .rst", func(c Config) bool { return len(c.Extensions) == 2 && c.Extensions[1] == ".rst" }},
		{"privacy.redactPaths", "**/*.key", func(c Config) bool { return c.Privacy.RedactPaths[0] == "**/*.key" }},
		{"cache.ttlSeconds", "60", func(c Config) bool { return c.Cache.TTLSeconds == 60 }},
		{"site.args", "hexo,--silent", func(c Config) bool { return len(c.Site.Args) == 2 }},
		{"site.deploy", "true", func(c Config) bool { return c.Site.Deploy }},
		{"rulesFile", "r.yaml", func(c Config) bool { return c.Privacy.RulesFile == "r.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			if err := SetField(&cfg, tt.key, tt.value); err != nil {
				t.Fatalf("SetField(%q) error: %v", tt.key, err)
			}
			if !tt.check(cfg) {
				t.Errorf("SetField(%q, %q) not applied", tt.key, tt.value)
			}
		})
	}
}

func TestSetField_Errors(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := SetField(&cfg, "batchSize", "ten"); err == nil {
		t.Error("expected error for non-integer batchSize")
	}
	if err := SetField(&cfg, "keepCheckpoints", "maybe"); err == nil {
		t.Error("expected error for non-bool keepCheckpoints")
	}
}

func TestKeys_AllSettable(t *testing.T) {
	for _, k := range Keys() {
		cfg := Default()
		value := "x"
		switch k {
		case "batchSize", "concurrency", "cache.ttlSeconds", "site.previewSeconds", "site.deployRetries":
			value = "1"
		case "keepCheckpoints", "cache.enabled", "site.preview", "site.deploy":
			value = "true"
		}
		if err := SetField(&cfg, k, value); err != nil {
			t.Errorf("Keys() lists %q but SetField rejects it: %v", k, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }, "batchSize"},
		{"concurrency", func(c *Config) { c.Concurrency = -1 }, "concurrency"},
		{"skip stage", func(c *Config) { c.SkipStages = []string{"publish"} }, "skipStages"},
		{"format", func(c *Config) { c.Format = "xml" }, "format"},
		{"fail on", func(c *Config) { c.FailOn = "severe" }, "failOn"},
		{"log format", func(c *Config) { c.LogFormat = "yaml" }, "logFormat"},
		{"dirs", func(c *Config) { c.WorkDir = "" }, "workDir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if want := filepath.Join("/custom/config", "scribe"); dir != want {
		t.Errorf("ConfigDir = %q, want %q", dir, want)
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath error: %v", err)
	}
	if filepath.Base(path) != "config.json" {
		t.Errorf("ConfigPath = %q", path)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.InboxDir = "drafts"
	cfg.KeepCheckpoints = true
	cfg.Cache.Enabled = false
	if err := Save(cfg, ""); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.InboxDir != "drafts" || !loaded.KeepCheckpoints || loaded.Cache.Enabled {
		t.Errorf("LoadFile = %+v", loaded)
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte(`{"batchSize": 2, "cache": {"ttlSeconds": 5}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.BatchSize != 2 || cfg.Cache.TTLSeconds != 5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !cfg.Cache.Enabled || cfg.InboxDir != "unpost" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadFile_NoFile(t *testing.T) {
	isolate(t)
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.BatchSize != Default().BatchSize {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"batchSize": 2, "format": "json", "inboxDir": "file-inbox"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCRIBE_FORMAT", "sarif")
	t.Setenv("SCRIBE_INBOX_DIR", "env-inbox")

	cfg, err := Load(path, map[string]string{"inboxDir": "flag-inbox"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BatchSize != 2 {
		t.Errorf("BatchSize = %d, want file value 2", cfg.BatchSize)
	}
	if cfg.Format != "sarif" {
		t.Errorf("Format = %q, want env value", cfg.Format)
	}
	if cfg.InboxDir != "flag-inbox" {
		t.Errorf("InboxDir = %q, want flag value", cfg.InboxDir)
	}

	if _, err := Load(path, map[string]string{"batchSize": "0"}); err == nil {
		t.Error("Load should validate the merged config")
	}
}
