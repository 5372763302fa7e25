package parse

import "strings"

const systemPrompt = `You are a resume parser. Extract candidate information from the resume text and respond with a single JSON object only, no prose and no markdown fences. The object must have exactly these keys:

{
  "name": "full candidate name as written",
  "email": "primary email address",
  "phone": "primary phone number",
  "skills": ["individual technical and professional skills"],
  "experience": "a prose summary of work experience including total years if stated",
  "education": "highest or most recent education",
  "certifications": ["professional certifications"],
  "languages": ["spoken languages"],
  "job_title": "current or most recent job title",
  "location": "city/region the candidate lists"
}

Use an empty string or empty array when the resume does not state a value. Never invent values and never substitute placeholders such as "Unknown" or "N/A".`

// maxPromptChars bounds the resume text sent per request; resumes beyond
// this are truncated from the end, where references and boilerplate live.
const maxPromptChars = 24000

func buildUserPrompt(resumeText string) string {
	text := strings.TrimSpace(resumeText)
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	return "Resume text:\n\n" + text
}
