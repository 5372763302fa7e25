package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"hireflow-engine/internal/domain"
)

// Result is extracted plain text plus provenance.
type Result struct {
	Text     string
	Strategy string
}

// Strategy is one attempt at turning bytes into text.
type Strategy struct {
	Name string
	Fn   func(data []byte) (string, error)
}

// FromAttachment dispatches on the declared extension and runs the
// format's strategy chain. The first strategy producing non-empty text
// wins; when every strategy fails the error aggregates each one's reason —
// no placeholder text is ever returned in place of a real extraction.
func FromAttachment(data []byte, filename string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var strategies []Strategy
	switch ext {
	case ".pdf":
		strategies = pdfStrategies(data)
	case ".doc":
		strategies = []Strategy{{Name: "doc-raw-text", Fn: docText}}
	case ".docx":
		strategies = []Strategy{{Name: "docx-raw-text", Fn: docxText}}
	case ".txt":
		strategies = []Strategy{{Name: "utf8", Fn: plainText}}
	case ".html", ".htm":
		strategies = []Strategy{{Name: "html-text", Fn: HTMLText}}
	default:
		return Result{}, &domain.ExtractionError{
			Filename: filename,
			Attempts: []domain.StrategyFailure{{
				Strategy: "dispatch",
				Reason:   fmt.Sprintf("unsupported extension %q", ext),
			}},
		}
	}

	return Run(data, filename, strategies)
}

// Run executes strategies in order and returns the first non-empty text.
func Run(data []byte, filename string, strategies []Strategy) (Result, error) {
	var attempts []domain.StrategyFailure

	for _, s := range strategies {
		text, err := s.Fn(data)
		if err != nil {
			attempts = append(attempts, domain.StrategyFailure{Strategy: s.Name, Reason: err.Error()})
			continue
		}
		text = normalizeWhitespace(text)
		if text == "" {
			attempts = append(attempts, domain.StrategyFailure{Strategy: s.Name, Reason: "produced empty text"})
			continue
		}
		return Result{Text: text, Strategy: s.Name}, nil
	}

	return Result{}, &domain.ExtractionError{Filename: filename, Attempts: attempts}
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			blank++
			if blank > 1 {
				continue
			}
			l = ""
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
