package parse

import (
	"regexp"
	"strconv"
	"strings"

	"hireflow-engine/internal/domain"
)

var yearsRe = regexp.MustCompile(`(\d{1,2}(?:\.\d)?)\s*\+?\s*(?:years?|yrs?)`)

// deriveFields fills the numeric and tier fields from the free text.
func deriveFields(c *domain.ParsedCandidate) {
	c.ExperienceYears = extractYears(c.Experience)
	c.SeniorityTier = seniorityTier(c.ExperienceYears)
	c.EducationTier = educationTier(c.Education)
}

// extractYears takes the largest explicit "N years" mention.
func extractYears(experience string) float64 {
	max := 0.0
	for _, m := range yearsRe.FindAllStringSubmatch(strings.ToLower(experience), -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > max && v < 60 {
			max = v
		}
	}
	return max
}

func seniorityTier(years float64) string {
	switch {
	case years <= 0:
		return "unspecified"
	case years < 2:
		return "junior"
	case years < 5:
		return "mid"
	case years < 9:
		return "senior"
	default:
		return "lead"
	}
}

func educationTier(education string) string {
	e := strings.ToLower(education)
	switch {
	case e == "":
		return "unspecified"
	case strings.Contains(e, "phd") || strings.Contains(e, "ph.d") || strings.Contains(e, "doctor"):
		return "doctorate"
	case strings.Contains(e, "master") || strings.Contains(e, "mba") || strings.Contains(e, "m.s") || strings.Contains(e, "msc"):
		return "masters"
	case strings.Contains(e, "bachelor") || strings.Contains(e, "b.s") || strings.Contains(e, "b.a") || strings.Contains(e, "bsc") || strings.Contains(e, "undergraduate"):
		return "bachelors"
	case strings.Contains(e, "associate"):
		return "associate"
	case strings.Contains(e, "high school") || strings.Contains(e, "diploma") || strings.Contains(e, "ged"):
		return "secondary"
	default:
		return "unspecified"
	}
}
