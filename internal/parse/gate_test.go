package parse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hireflow-engine/internal/domain"
)

const goodJSON = `{
	"name": "Jane Smith",
	"email": " Jane.Smith@Example.com ",
	"phone": "+1 555 0100",
	"skills": ["Go", "PostgreSQL", "Kubernetes", "Terraform"],
	"experience": "8 years building backend services",
	"education": "Master of Science in Computer Science",
	"certifications": null,
	"languages": ["English", "Spanish"],
	"job_title": "Backend Engineer",
	"location": "Austin, TX"
}`

func TestValidateAccepts(t *testing.T) {
	g := &Gate{}
	c, err := g.Validate(goodJSON)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Email != "jane.smith@example.com" {
		t.Errorf("email not normalized: %q", c.Email)
	}
	if len(c.Skills) != 4 {
		t.Errorf("skills = %v, want 4 entries", c.Skills)
	}
	if c.Certifications == nil {
		t.Error("certifications should be an empty slice, not nil")
	}
	if c.ExperienceYears != 8 {
		t.Errorf("experience years = %v, want 8", c.ExperienceYears)
	}
	if c.SeniorityTier != "senior" {
		t.Errorf("seniority = %q, want senior", c.SeniorityTier)
	}
	if c.EducationTier != "masters" {
		t.Errorf("education tier = %q, want masters", c.EducationTier)
	}
	if c.QualityScore < 60 {
		t.Errorf("quality score = %d, want >= 60", c.QualityScore)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantSub string
	}{
		{
			name:    "not json",
			raw:     "Sure! Here is the extracted data: ...",
			wantSub: "not valid JSON",
		},
		{
			name:    "truncated json",
			raw:     `{"name": "Jane Smith", "skills": ["Go"`,
			wantSub: "not valid JSON",
		},
		{
			name:    "placeholder name",
			raw:     `{"name":"Unknown Candidate","email":"x@y.com","skills":["Go","SQL","AWS"],"experience":"5 years of work"}`,
			wantSub: "placeholder name",
		},
		{
			name:    "single token name",
			raw:     `{"name":"Jane","email":"x@y.com","skills":["Go","SQL","AWS"],"experience":"5 years of work"}`,
			wantSub: "single token",
		},
		{
			name:    "generic skills only",
			raw:     `{"name":"Jane Smith","email":"x@y.com","skills":["skill","tool"],"experience":"5 years of work"}`,
			wantSub: "insufficient skills",
		},
		{
			name:    "too few usable skills",
			raw:     `{"name":"Jane Smith","email":"x@y.com","skills":["Go","Go","go"],"experience":"5 years of work"}`,
			wantSub: "insufficient skills",
		},
		{
			name:    "placeholder experience",
			raw:     `{"name":"Jane Smith","email":"x@y.com","skills":["Go","SQL","AWS"],"experience":"n/a"}`,
			wantSub: "placeholder",
		},
	}

	g := &Gate{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Validate(tt.raw)
			var merr *domain.MalformedResponseError
			if !errors.As(err, &merr) {
				t.Fatalf("err = %v, want MalformedResponseError", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidateQualityGate(t *testing.T) {
	// Mandatory checks pass but everything optional is missing: the
	// composite score lands below the threshold and nothing is returned.
	raw := `{"name":"Jane Smith","skills":["Go","SQL","AWS"],"experience":"5 years of work"}`
	g := &Gate{}
	_, err := g.Validate(raw)
	var qerr *domain.QualityGateError
	if !errors.As(err, &qerr) {
		t.Fatalf("err = %v, want QualityGateError", err)
	}
	if qerr.Score >= qerr.Threshold {
		t.Errorf("score %d not below threshold %d", qerr.Score, qerr.Threshold)
	}
}

func TestValidateCustomThreshold(t *testing.T) {
	raw := `{"name":"Jane Smith","skills":["Go","SQL","AWS"],"experience":"5 years of work"}`
	g := &Gate{MinQualityScore: 40}
	if _, err := g.Validate(raw); err != nil {
		t.Fatalf("lowered threshold should admit: %v", err)
	}
}

type fakeModel struct {
	response string
	err      error
	lastOpts CompleteOptions
}

func (f *fakeModel) Complete(_ context.Context, system, user string, opts CompleteOptions) (string, error) {
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestParseRequestsJSONMode(t *testing.T) {
	m := &fakeModel{response: goodJSON}
	g := &Gate{Model: m, Opts: CompleteOptions{Model: "gpt-4o-mini"}}
	if _, err := g.Parse(context.Background(), "resume text"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.lastOpts.JSONMode {
		t.Error("Parse should force JSON mode on the completion")
	}
}

func TestParsePropagatesModelError(t *testing.T) {
	m := &fakeModel{err: errors.New("rate limited")}
	g := &Gate{Model: m}
	if _, err := g.Parse(context.Background(), "resume text"); err == nil {
		t.Fatal("want model error, got nil")
	}
}

func TestExtractYears(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"8 years building services", 8},
		{"over 10+ yrs of experience", 10},
		{"2.5 years at Acme, 4 years at Globex", 4},
		{"worked for 99 years", 0}, // implausible, ignored
		{"no numbers here", 0},
	}
	for _, tt := range tests {
		if got := extractYears(tt.in); got != tt.want {
			t.Errorf("extractYears(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSeniorityTier(t *testing.T) {
	tests := []struct {
		years float64
		want  string
	}{
		{0, "unspecified"},
		{1, "junior"},
		{3, "mid"},
		{7, "senior"},
		{12, "lead"},
	}
	for _, tt := range tests {
		if got := seniorityTier(tt.years); got != tt.want {
			t.Errorf("seniorityTier(%v) = %q, want %q", tt.years, got, tt.want)
		}
	}
}

func TestEducationTier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unspecified"},
		{"PhD in Physics", "doctorate"},
		{"MBA, Harvard", "masters"},
		{"Bachelor of Arts", "bachelors"},
		{"Associate degree", "associate"},
		{"High school diploma", "secondary"},
		{"School of life", "unspecified"},
	}
	for _, tt := range tests {
		if got := educationTier(tt.in); got != tt.want {
			t.Errorf("educationTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
