package normalize

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hireflow-engine/internal/domain"
)

// BuildApplication maps a validated parse into the fixed-shape durable
// record. Every field starts at its documented default and is then
// overwritten with what the parse produced, so readers never see a
// meaningfully absent field.
func BuildApplication(
	c *domain.ParsedCandidate,
	msg domain.EmailMessage,
	accountID string,
	resume *domain.ResumeFile,
	video *domain.VideoResume,
	now time.Time,
) domain.NormalizedApplication {
	app := domain.NewApplication(uuid.NewString(), now)

	app.Name = strings.TrimSpace(c.Name)
	app.CandidateName = app.Name // legacy alias, kept in sync on write
	app.Email = NormalizeEmail(c.Email)
	app.Phone = strings.TrimSpace(c.Phone)
	app.JobTitle = strings.TrimSpace(c.JobTitle)
	app.Location = strings.TrimSpace(c.Location)

	app.Skills = append([]string{}, c.Skills...)
	app.Experience = strings.TrimSpace(c.Experience)
	app.ExperienceYears = c.ExperienceYears
	app.SeniorityTier = c.SeniorityTier
	app.Education = strings.TrimSpace(c.Education)
	app.EducationTier = c.EducationTier
	app.Certifications = append([]string{}, c.Certifications...)
	app.Languages = append([]string{}, c.Languages...)
	app.QualityScore = c.QualityScore

	// A video application populates the video fields in place of the
	// document-resume fields; both may be present when the candidate sent
	// a resume plus an intro clip.
	if resume != nil {
		app.Resume = *resume
	}
	if video != nil {
		app.Video = *video
		app.HasVideo = true
	}

	app.AccountID = accountID
	app.MessageUID = msg.UID
	app.ReceivedAt = msg.Date

	// Fall back to the sender address when the resume text had no email.
	if app.Email == "" {
		app.Email = NormalizeEmail(msg.SenderEmail)
	}

	return app
}

var videoIntroKeywords = []string{"intro", "introduction", "hello", "about", "greeting", "pitch"}

// ClassifyVideo decides whether a video file is a self-introduction or a
// video resume, by filename keyword, defaulting to "resume".
func ClassifyVideo(filename string) string {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	for _, kw := range videoIntroKeywords {
		if strings.Contains(base, kw) {
			return "introduction"
		}
	}
	return "resume"
}
