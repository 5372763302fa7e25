package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hireflow-engine/internal/domain"
)

// FindApplicationByEmail looks up an application by normalized candidate
// email. Returns (nil, nil) when none exists.
func (d *DB) FindApplicationByEmail(ctx context.Context, email string) (*domain.NormalizedApplication, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	row := d.Pool.QueryRowContext(ctx, `
SELECT id, name, candidate_name, email, phone, job_title, location,
       skills, experience, experience_years, seniority_tier,
       education, education_tier, certifications, languages,
       source, status, score, match_score, quality_score, notes,
       resume_url, resume_filename, resume_content_type, resume_size,
       video_url, video_filename, video_kind, video_size, has_video,
       account_id, message_uid, received_at, imported_by, created_at, updated_at
FROM applications WHERE email = ?;`, email)

	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

// CreateApplication persists a normalized record. The record id doubles as
// the datastore key; INSERT OR IGNORE on the unique email index keeps the
// write idempotent when abandoned in-flight work retries a candidate.
func (d *DB) CreateApplication(ctx context.Context, app domain.NormalizedApplication) (string, error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.Email = strings.ToLower(strings.TrimSpace(app.Email))

	skills, _ := json.Marshal(app.Skills)
	certs, _ := json.Marshal(app.Certifications)
	langs, _ := json.Marshal(app.Languages)

	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO applications (
  id, name, candidate_name, email, phone, job_title, location,
  skills, experience, experience_years, seniority_tier,
  education, education_tier, certifications, languages,
  source, status, score, match_score, quality_score, notes,
  resume_url, resume_filename, resume_content_type, resume_size,
  video_url, video_filename, video_kind, video_size, has_video,
  account_id, message_uid, received_at, imported_by, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		app.ID, app.Name, app.CandidateName, app.Email, app.Phone, app.JobTitle, app.Location,
		string(skills), app.Experience, app.ExperienceYears, app.SeniorityTier,
		app.Education, app.EducationTier, string(certs), string(langs),
		app.Source, app.Status, app.Score, app.MatchScore, app.QualityScore, app.Notes,
		app.Resume.URL, app.Resume.Filename, app.Resume.ContentType, app.Resume.Size,
		app.Video.URL, app.Video.Filename, app.Video.Kind, app.Video.Size, boolToInt(app.HasVideo),
		app.AccountID, app.MessageUID, formatTime(app.ReceivedAt), app.ImportedBy,
		formatTime(app.CreatedAt), formatTime(app.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lost the race to an earlier write for the same email
		return "", &domain.DuplicateError{Email: app.Email}
	}
	return app.ID, nil
}

// CountApplications returns the total stored applications (status endpoint).
func (d *DB) CountApplications(ctx context.Context) (int64, error) {
	var n int64
	err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications;`).Scan(&n)
	return n, err
}

func scanApplication(r rowScanner) (*domain.NormalizedApplication, error) {
	var app domain.NormalizedApplication
	var skills, certs, langs string
	var hasVideo int
	var receivedAt, createdAt, updatedAt string

	if err := r.Scan(
		&app.ID, &app.Name, &app.CandidateName, &app.Email, &app.Phone, &app.JobTitle, &app.Location,
		&skills, &app.Experience, &app.ExperienceYears, &app.SeniorityTier,
		&app.Education, &app.EducationTier, &certs, &langs,
		&app.Source, &app.Status, &app.Score, &app.MatchScore, &app.QualityScore, &app.Notes,
		&app.Resume.URL, &app.Resume.Filename, &app.Resume.ContentType, &app.Resume.Size,
		&app.Video.URL, &app.Video.Filename, &app.Video.Kind, &app.Video.Size, &hasVideo,
		&app.AccountID, &app.MessageUID, &receivedAt, &app.ImportedBy, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(skills), &app.Skills)
	_ = json.Unmarshal([]byte(certs), &app.Certifications)
	_ = json.Unmarshal([]byte(langs), &app.Languages)
	if app.Skills == nil {
		app.Skills = []string{}
	}
	if app.Certifications == nil {
		app.Certifications = []string{}
	}
	if app.Languages == nil {
		app.Languages = []string{}
	}
	app.HasVideo = hasVideo == 1
	app.ReceivedAt = parseTime(receivedAt)
	app.CreatedAt = parseTime(createdAt)
	app.UpdatedAt = parseTime(updatedAt)
	return &app, nil
}
