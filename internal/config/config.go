package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
		Dev     bool   `yaml:"dev"`
	} `yaml:"app"`

	Automation Automation `yaml:"automation"`

	Filters struct {
		// Subject must contain at least one of these (case-insensitive)
		// for a message to be considered a job application.
		SubjectAny []string `yaml:"subject_any"`
		// Messages without attachments are skipped when true.
		RequireAttachment bool `yaml:"require_attachment"`
	} `yaml:"filters"`

	Parser struct {
		Model           string  `yaml:"model"`
		Temperature     float32 `yaml:"temperature"`
		MaxTokens       int     `yaml:"max_tokens"`
		APIKeyEnv       string  `yaml:"api_key_env"`
		MinQualityScore int     `yaml:"min_quality_score"`
	} `yaml:"parser"`

	Storage struct {
		// Subfolder of data_dir where fetched attachments land.
		Folder string `yaml:"folder"`
	} `yaml:"storage"`
}

// Automation holds the controller cadence settings. All of these are
// hot-updatable; an interval change restarts the running timer.
type Automation struct {
	Enabled                   bool `yaml:"enabled"`
	CheckIntervalMinutes      int  `yaml:"check_interval_minutes"`
	BatchSize                 int  `yaml:"batch_size"`
	BatchDelaySeconds         int  `yaml:"batch_delay_seconds"`
	MaxEmailsPerCheck         int  `yaml:"max_emails_per_check"`
	MaxConsecutiveEmptyChecks int  `yaml:"max_consecutive_empty_checks"`
	MonitorIntervalMinutes    int  `yaml:"monitor_interval_minutes"`
	MessageTimeoutSeconds     int  `yaml:"message_timeout_seconds"`
	LookbackDays              int  `yaml:"lookback_days"`
}

func (a Automation) CheckInterval() time.Duration {
	return time.Duration(a.CheckIntervalMinutes) * time.Minute
}

func (a Automation) MonitorInterval() time.Duration {
	return time.Duration(a.MonitorIntervalMinutes) * time.Minute
}

func (a Automation) BatchDelay() time.Duration {
	return time.Duration(a.BatchDelaySeconds) * time.Second
}

func (a Automation) MessageTimeout() time.Duration {
	return time.Duration(a.MessageTimeoutSeconds) * time.Second
}

func (a Automation) Lookback() time.Duration {
	return time.Duration(a.LookbackDays) * 24 * time.Hour
}

// Default is what the engine bootstraps with when the user has no config yet.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."
	cfg.Automation = Automation{
		Enabled:                   true,
		CheckIntervalMinutes:      15,
		BatchSize:                 5,
		BatchDelaySeconds:         2,
		MaxEmailsPerCheck:         50,
		MaxConsecutiveEmptyChecks: 3,
		MonitorIntervalMinutes:    5,
		MessageTimeoutSeconds:     300,
		LookbackDays:              30,
	}
	cfg.Filters.SubjectAny = []string{
		"application", "applying", "resume", "cv", "candidate", "position", "vacancy",
	}
	cfg.Filters.RequireAttachment = true
	cfg.Parser.Model = "gpt-4o-mini"
	cfg.Parser.Temperature = 0.1
	cfg.Parser.MaxTokens = 1500
	cfg.Parser.APIKeyEnv = "OPENAI_API_KEY"
	cfg.Parser.MinQualityScore = 60
	cfg.Storage.Folder = "resumes"
	return cfg
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
