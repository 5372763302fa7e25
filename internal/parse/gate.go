package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hireflow-engine/internal/domain"
)

// Gate sends resume text to the model and enforces the data-quality
// contract. There is no fallback parser and no default substitution: a
// candidate either passes every check or is dropped.
type Gate struct {
	Model ModelClient
	Opts  CompleteOptions

	// MinQualityScore rejects results scoring below it, default 60.
	MinQualityScore int
}

// Parse runs the model and validates its output.
func (g *Gate) Parse(ctx context.Context, resumeText string) (*domain.ParsedCandidate, error) {
	raw, err := g.Model.Complete(ctx, systemPrompt, buildUserPrompt(resumeText), withJSON(g.Opts))
	if err != nil {
		return nil, err
	}
	return g.Validate(raw)
}

// Validate parses the raw model output and applies the mandatory-field and
// quality-score checks. Exported separately so tests can feed canned JSON.
func (g *Gate) Validate(raw string) (*domain.ParsedCandidate, error) {
	var c domain.ParsedCandidate
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &c); err != nil {
		return nil, &domain.MalformedResponseError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	if reason := checkName(c.Name); reason != "" {
		return nil, &domain.MalformedResponseError{Reason: reason}
	}
	if reason := checkSkills(c.Skills); reason != "" {
		return nil, &domain.MalformedResponseError{Reason: reason}
	}
	if reason := checkExperience(c.Experience); reason != "" {
		return nil, &domain.MalformedResponseError{Reason: reason}
	}

	c.Skills = dedupeSkills(c.Skills)
	if c.Certifications == nil {
		c.Certifications = []string{}
	}
	if c.Languages == nil {
		c.Languages = []string{}
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))

	c.QualityScore = qualityScore(&c)
	threshold := g.MinQualityScore
	if threshold == 0 {
		threshold = 60
	}
	if c.QualityScore < threshold {
		return nil, &domain.QualityGateError{Score: c.QualityScore, Threshold: threshold}
	}

	deriveFields(&c)
	return &c, nil
}

func withJSON(o CompleteOptions) CompleteOptions {
	o.JSONMode = true
	return o
}

// ---- mandatory field checks ----

var placeholderNames = []string{
	"unknown candidate", "unknown", "john doe", "jane doe", "candidate",
	"applicant", "resume", "curriculum vitae", "n/a", "not specified",
	"no name", "test user", "full name",
}

func checkName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "missing name"
	}
	ln := strings.ToLower(n)
	for _, p := range placeholderNames {
		if ln == p {
			return fmt.Sprintf("placeholder name %q", name)
		}
	}
	if len(strings.Fields(n)) < 2 {
		return fmt.Sprintf("name %q is a single token", name)
	}
	return ""
}

var genericSkills = map[string]bool{
	"skill": true, "skills": true, "technology": true, "technologies": true,
	"software": true, "computer": true, "computers": true, "tool": true,
	"tools": true, "various": true, "etc": true, "other": true, "misc": true,
	"miscellaneous": true, "it": true, "general": true,
}

func checkSkills(skills []string) string {
	if len(skills) == 0 {
		return "insufficient skills: none listed"
	}

	seen := map[string]bool{}
	unique := 0
	for _, s := range skills {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || genericSkills[key] {
			continue
		}
		if !seen[key] {
			seen[key] = true
			unique++
		}
	}

	if unique < 3 {
		return fmt.Sprintf("insufficient skills: %d usable of %d listed, need 3", unique, len(skills))
	}
	if ratio := float64(unique) / float64(len(skills)); ratio < 0.7 {
		return fmt.Sprintf("insufficient skills: uniqueness ratio %.2f below 0.70", ratio)
	}
	return ""
}

var placeholderExperience = []string{
	"not specified", "n/a", "na", "none", "unknown", "-", "",
}

func checkExperience(exp string) string {
	e := strings.TrimSpace(exp)
	le := strings.ToLower(e)
	for _, p := range placeholderExperience {
		if le == p {
			return fmt.Sprintf("experience is a placeholder (%q)", exp)
		}
	}
	if len(e) < 5 {
		return fmt.Sprintf("experience %q too short to be descriptive", exp)
	}
	return ""
}

func dedupeSkills(skills []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// ---- composite quality score ----

// Weighted field presence; identity and resume substance dominate.
func qualityScore(c *domain.ParsedCandidate) int {
	score := 0
	if checkName(c.Name) == "" {
		score += 20
	}
	if strings.Contains(c.Email, "@") {
		score += 25
	}
	if checkSkills(c.Skills) == "" {
		score += 20
	}
	if checkExperience(c.Experience) == "" {
		score += 10
	}
	if strings.TrimSpace(c.Phone) != "" {
		score += 6
	}
	if strings.TrimSpace(c.Education) != "" {
		score += 6
	}
	if strings.TrimSpace(c.JobTitle) != "" {
		score += 5
	}
	if strings.TrimSpace(c.Location) != "" {
		score += 4
	}
	if len(c.Languages) > 0 {
		score += 4
	}
	return score
}
