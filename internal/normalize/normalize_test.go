package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"hireflow-engine/internal/domain"
)

func TestBuildApplicationDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &domain.ParsedCandidate{
		Name:          "Jane Smith",
		Email:         "jane@example.com",
		Skills:        []string{"Go", "SQL", "AWS"},
		Experience:    "5 years of work",
		SeniorityTier: "mid",
		EducationTier: "unspecified",
		QualityScore:  72,
	}
	msg := domain.EmailMessage{
		UID:         42,
		SenderEmail: "jane.personal@example.com",
		Date:        now.Add(-time.Hour),
	}

	app := BuildApplication(c, msg, "acct-1", nil, nil, now)

	if app.ID == "" {
		t.Error("id must be generated")
	}
	if app.Name != "Jane Smith" || app.CandidateName != "Jane Smith" {
		t.Errorf("legacy name alias out of sync: %q / %q", app.Name, app.CandidateName)
	}
	if app.Source != "email" {
		t.Errorf("source = %q, want email", app.Source)
	}
	if app.Status != "pending" {
		t.Errorf("status = %q, want pending", app.Status)
	}
	if app.ImportedBy != "automation" {
		t.Errorf("imported_by = %q, want automation", app.ImportedBy)
	}
	if app.Certifications == nil || app.Languages == nil {
		t.Error("list fields must be empty slices, never nil")
	}
	if app.HasVideo {
		t.Error("no video attached")
	}
	if app.AccountID != "acct-1" || app.MessageUID != 42 {
		t.Errorf("audit fields wrong: %q uid=%d", app.AccountID, app.MessageUID)
	}
	if !app.ReceivedAt.Equal(msg.Date) {
		t.Errorf("received_at = %v, want %v", app.ReceivedAt, msg.Date)
	}
	if !app.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", app.CreatedAt, now)
	}
}

func TestBuildApplicationEmailFallback(t *testing.T) {
	c := &domain.ParsedCandidate{Name: "Jane Smith", Skills: []string{"Go"}}
	msg := domain.EmailMessage{SenderEmail: "Jane.Sender@Example.COM"}
	app := BuildApplication(c, msg, "acct-1", nil, nil, time.Now())
	if app.Email != "jane.sender@example.com" {
		t.Errorf("email = %q, want normalized sender fallback", app.Email)
	}
}

func TestBuildApplicationVideo(t *testing.T) {
	c := &domain.ParsedCandidate{Name: "Jane Smith", Email: "jane@example.com"}
	video := &domain.VideoResume{URL: "file:///v.mp4", Filename: "intro_jane.mp4", Kind: "introduction"}
	app := BuildApplication(c, domain.EmailMessage{}, "acct-1", nil, video, time.Now())
	if !app.HasVideo {
		t.Error("has_video must be set")
	}
	if app.Video.Kind != "introduction" {
		t.Errorf("video kind = %q", app.Video.Kind)
	}
	if app.Resume.URL != "" {
		t.Error("resume fields must stay at defaults for a video-only application")
	}
}

func TestClassifyVideo(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"intro_jane.mp4", "introduction"},
		{"Hello-from-jane.mov", "introduction"},
		{"about_me.webm", "introduction"},
		{"elevator_pitch.mp4", "introduction"},
		{"jane_smith_resume.mp4", "resume"},
		{"recording.mkv", "resume"},
	}
	for _, tt := range tests {
		if got := ClassifyVideo(tt.filename); got != tt.want {
			t.Errorf("ClassifyVideo(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

type fakeFinder struct {
	known map[string]bool
	err   error
}

func (f *fakeFinder) FindApplicationByEmail(_ context.Context, email string) (*domain.NormalizedApplication, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.known[email] {
		return &domain.NormalizedApplication{Email: email}, nil
	}
	return nil, nil
}

func TestCheckDuplicate(t *testing.T) {
	finder := &fakeFinder{known: map[string]bool{"jane@example.com": true}}
	ctx := context.Background()

	err := CheckDuplicate(ctx, finder, "  Jane@Example.COM ")
	if !domain.IsDuplicate(err) {
		t.Fatalf("err = %v, want DuplicateError", err)
	}
	var derr *domain.DuplicateError
	errors.As(err, &derr)
	if derr.Email != "jane@example.com" {
		t.Errorf("duplicate email = %q, want normalized", derr.Email)
	}

	if err := CheckDuplicate(ctx, finder, "new@example.com"); err != nil {
		t.Errorf("unseen email: %v", err)
	}
	if err := CheckDuplicate(ctx, finder, "  "); err != nil {
		t.Errorf("blank email must not hit the store: %v", err)
	}
}
