package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(envFrom(map[string]string{"GEMINI_API_KEY": "k"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AttemptDelay != 2*time.Second {
		t.Errorf("AttemptDelay = %v, want 2s", cfg.AttemptDelay)
	}
	if cfg.UploadPollInterval != 2*time.Second || cfg.UploadTimeout != 30*time.Second {
		t.Errorf("upload polling = %v/%v, want 2s/30s", cfg.UploadPollInterval, cfg.UploadTimeout)
	}
	if len(cfg.Prompts) < 2 {
		t.Errorf("expected the embedded instruction list, got %d entries", len(cfg.Prompts))
	}
	if cfg.SystemInstruction == "" {
		t.Error("expected embedded system instruction")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestFromLookupOverrides(t *testing.T) {
	dir := t.TempDir()
	promptsPath := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(promptsPath, []byte("instructions:\n  - only one\n  - '  '\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := FromLookup(envFrom(map[string]string{
		"GEMINI_API_KEY":             "k",
		"GEMINI_MODEL":               "gemini-test",
		"WATERMARK_ATTEMPT_DELAY":    "250ms",
		"WATERMARK_PROMPTS_FILE":     promptsPath,
		"WATERMARK_ARTIFACT_BACKEND": "s3",
		"WATERMARK_S3_BUCKET":        "bucket",
		"WATERMARK_ALLOWED_ORIGINS":  "http://localhost:3000, https://example.com",
		"PORT":                       "9090",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model != "gemini-test" || cfg.AttemptDelay != 250*time.Millisecond || cfg.Port != 9090 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Prompts) != 1 || cfg.Prompts[0] != "only one" {
		t.Errorf("Prompts = %q, want [only one]", cfg.Prompts)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://example.com" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestFromLookupBadValues(t *testing.T) {
	_, err := FromLookup(envFrom(map[string]string{
		"WATERMARK_ATTEMPT_DELAY": "soon",
		"PORT":                    "eighty",
	}))
	if err == nil {
		t.Fatal("expected parse errors")
	}
	if !strings.Contains(err.Error(), "WATERMARK_ATTEMPT_DELAY") || !strings.Contains(err.Error(), "PORT") {
		t.Errorf("error should name both variables, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.APIKey = "k"
	valid.Prompts = []string{"remove"}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing key", func(c *Config) { c.APIKey = "" }, "GEMINI_API_KEY"},
		{"no prompts", func(c *Config) { c.Prompts = nil }, "instruction"},
		{"bad format", func(c *Config) { c.ForceFormat = "tiff" }, "force format"},
		{"bad extension", func(c *Config) { c.DefaultExtension = "png" }, "extension"},
		{"s3 without bucket", func(c *Config) { c.ArtifactBackend = ArtifactS3 }, "WATERMARK_S3_BUCKET"},
		{"unknown backend", func(c *Config) { c.ArtifactBackend = "ftp" }, "artifact backend"},
		{"dynamo without table", func(c *Config) { c.RecordBackend = RecordsDynamo }, "WATERMARK_DYNAMO_TABLE"},
		{"redis without url", func(c *Config) { c.RecordBackend = RecordsRedis }, "WATERMARK_REDIS_URL"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Prompts = append([]string(nil), valid.Prompts...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestParsePrompts(t *testing.T) {
	if _, err := ParsePrompts([]byte("instructions: []\n")); err == nil {
		t.Error("expected error for empty instruction list")
	}
	if _, err := ParsePrompts([]byte("instrucions:\n  - typo\n")); err == nil {
		t.Error("expected error for unknown key")
	}
	ps, err := ParsePrompts([]byte("system: ' be careful '\ninstructions:\n  - a\n  - b\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.System != "be careful" || len(ps.Instructions) != 2 || ps.Instructions[0] != "a" {
		t.Errorf("ParsePrompts = %+v", ps)
	}
}
