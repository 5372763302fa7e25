package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus the validation result.
// Bounds on the automation settings are hard errors; everything else warns.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.SubjectAny = trimList(out.Filters.SubjectAny)

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	a := out.Automation
	if a.CheckIntervalMinutes < 5 {
		res.addErr("automation.check_interval_minutes must be >= 5 (got %d)", a.CheckIntervalMinutes)
	}
	if a.MaxEmailsPerCheck < 1 || a.MaxEmailsPerCheck > 100 {
		res.addErr("automation.max_emails_per_check must be 1..100 (got %d)", a.MaxEmailsPerCheck)
	}
	if a.MaxConsecutiveEmptyChecks < 1 || a.MaxConsecutiveEmptyChecks > 50 {
		res.addErr("automation.max_consecutive_empty_checks must be 1..50 (got %d)", a.MaxConsecutiveEmptyChecks)
	}
	if a.BatchSize < 1 {
		res.addErr("automation.batch_size must be >= 1")
	} else if a.BatchSize > 20 {
		res.addWarn("automation.batch_size %d is high and may overwhelm the mail server", a.BatchSize)
	}
	if a.MonitorIntervalMinutes < 1 {
		res.addErr("automation.monitor_interval_minutes must be >= 1")
	}
	if a.MessageTimeoutSeconds < 30 {
		res.addErr("automation.message_timeout_seconds must be >= 30")
	}
	if a.LookbackDays < 1 || a.LookbackDays > 30 {
		res.addErr("automation.lookback_days must be 1..30 (got %d)", a.LookbackDays)
	}
	if a.BatchDelaySeconds < 0 {
		res.addErr("automation.batch_delay_seconds must be >= 0")
	}

	if len(out.Filters.SubjectAny) == 0 {
		res.addWarn("filters.subject_any is empty; every message with an attachment will be processed")
	}

	if strings.TrimSpace(out.Parser.Model) == "" {
		res.addErr("parser.model is required")
	}
	if out.Parser.MaxTokens <= 0 {
		res.addErr("parser.max_tokens must be > 0")
	}
	if out.Parser.MinQualityScore < 0 || out.Parser.MinQualityScore > 100 {
		res.addErr("parser.min_quality_score must be 0..100")
	}

	if strings.TrimSpace(out.Storage.Folder) == "" {
		out.Storage.Folder = "resumes"
	}

	return out, res
}
