package domain

import "time"

// ParsedCandidate is the model output after it has passed the validation
// gate. Derived fields are filled from the raw text, not by the model.
type ParsedCandidate struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Skills         []string `json:"skills"`
	Experience     string   `json:"experience"`
	Education      string   `json:"education"`
	Certifications []string `json:"certifications"`
	Languages      []string `json:"languages"`
	JobTitle       string   `json:"job_title"`
	Location       string   `json:"location"`

	// Derived after validation.
	ExperienceYears float64 `json:"-"`
	SeniorityTier   string  `json:"-"`
	EducationTier   string  `json:"-"`
	QualityScore    int     `json:"-"`
}

// ResumeFile describes the stored resume document of an application.
type ResumeFile struct {
	URL         string
	Filename    string
	ContentType string
	Size        int64
}

// VideoResume describes a stored video attachment. Kind is either
// "introduction" or "resume", classified from the filename.
type VideoResume struct {
	URL      string
	Filename string
	Kind     string
	Size     int64
}

// NormalizedApplication is the durable candidate record. Every field is
// always populated: either with real data or with the defaults set by
// NewApplication. Absence of a field is never meaningful.
type NormalizedApplication struct {
	ID string

	// Identity. CandidateName mirrors Name for older readers of the
	// datastore that still look up the legacy column.
	Name          string
	CandidateName string
	Email         string
	Phone         string
	JobTitle      string
	Location      string

	// Parsed resume content.
	Skills          []string
	Experience      string
	ExperienceYears float64
	SeniorityTier   string
	Education       string
	EducationTier   string
	Certifications  []string
	Languages       []string

	// Workflow.
	Source string // "email" or "upload"
	Status string // always starts "pending"

	// Scoring placeholders, filled by later review stages.
	Score        int
	MatchScore   float64
	QualityScore int
	Notes        string

	// Files.
	Resume   ResumeFile
	Video    VideoResume
	HasVideo bool

	// Audit.
	AccountID  string
	MessageUID uint32
	ReceivedAt time.Time
	ImportedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewApplication returns a record with the full field set initialized to
// its documented defaults. Callers overwrite with parsed values afterwards.
func NewApplication(id string, now time.Time) NormalizedApplication {
	return NormalizedApplication{
		ID:              id,
		Name:            "",
		CandidateName:   "",
		Email:           "",
		Phone:           "",
		JobTitle:        "",
		Location:        "",
		Skills:          []string{},
		Experience:      "",
		ExperienceYears: 0,
		SeniorityTier:   "unspecified",
		Education:       "",
		EducationTier:   "unspecified",
		Certifications:  []string{},
		Languages:       []string{},
		Source:          "email",
		Status:          "pending",
		Score:           0,
		MatchScore:      0,
		QualityScore:    0,
		Notes:           "",
		Resume:          ResumeFile{},
		Video:           VideoResume{},
		HasVideo:        false,
		AccountID:       "",
		MessageUID:      0,
		ReceivedAt:      time.Time{},
		ImportedBy:      "automation",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
