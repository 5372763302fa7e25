package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	_, res := NormalizeAndValidate(Default())
	if !res.OK() {
		t.Fatalf("default config should validate, got %v", res.Errors)
	}
}

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "interval too short",
			mutate:  func(c *Config) { c.Automation.CheckIntervalMinutes = 1 },
			wantSub: "check_interval_minutes",
		},
		{
			name:    "max emails zero",
			mutate:  func(c *Config) { c.Automation.MaxEmailsPerCheck = 0 },
			wantSub: "max_emails_per_check",
		},
		{
			name:    "max emails too high",
			mutate:  func(c *Config) { c.Automation.MaxEmailsPerCheck = 500 },
			wantSub: "max_emails_per_check",
		},
		{
			name:    "empty checks out of range",
			mutate:  func(c *Config) { c.Automation.MaxConsecutiveEmptyChecks = 51 },
			wantSub: "max_consecutive_empty_checks",
		},
		{
			name:    "batch size zero",
			mutate:  func(c *Config) { c.Automation.BatchSize = 0 },
			wantSub: "batch_size",
		},
		{
			name:    "timeout too short",
			mutate:  func(c *Config) { c.Automation.MessageTimeoutSeconds = 5 },
			wantSub: "message_timeout_seconds",
		},
		{
			name:    "lookback too long",
			mutate:  func(c *Config) { c.Automation.LookbackDays = 90 },
			wantSub: "lookback_days",
		},
		{
			name:    "missing model",
			mutate:  func(c *Config) { c.Parser.Model = " " },
			wantSub: "parser.model",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.App.Port = 0 },
			wantSub: "app.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, res := NormalizeAndValidate(cfg)
			if res.OK() {
				t.Fatal("want validation error, got none")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.wantSub) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", res.Errors, tt.wantSub)
			}
		})
	}
}

func TestValidateWarnsOnly(t *testing.T) {
	cfg := Default()
	cfg.Automation.BatchSize = 25
	cfg.Filters.SubjectAny = nil
	_, res := NormalizeAndValidate(cfg)
	if !res.OK() {
		t.Fatalf("warnings must not fail validation: %v", res.Errors)
	}
	if len(res.Warnings) < 2 {
		t.Errorf("want batch-size and subject-filter warnings, got %v", res.Warnings)
	}
}

func TestNormalizeSubjectFilters(t *testing.T) {
	cfg := Default()
	cfg.Filters.SubjectAny = []string{" resume ", "", "Resume", "cv"}
	out, res := NormalizeAndValidate(cfg)
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(out.Filters.SubjectAny) != 2 {
		t.Errorf("subject filters = %v, want trimmed and deduped to 2", out.Filters.SubjectAny)
	}
}

func TestStorageFolderDefault(t *testing.T) {
	cfg := Default()
	cfg.Storage.Folder = ""
	out, _ := NormalizeAndValidate(cfg)
	if out.Storage.Folder != "resumes" {
		t.Errorf("storage folder = %q, want resumes", out.Storage.Folder)
	}
}
