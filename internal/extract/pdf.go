package extract

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	dslipakpdf "github.com/dslipak/pdf"
	ltpdf "github.com/ledongthuc/pdf"
	rscpdf "rsc.io/pdf"
)

// pdfStrategies builds the fallback chain for one PDF. Order matters:
// the primary text-layer extractor, a lenient per-page pass when the
// primary hit a cross-reference/format error, an independent second
// library, and finally a manual content-stream walk.
func pdfStrategies(data []byte) []Strategy {
	out := []Strategy{{Name: "pdf-text-layer", Fn: pdfTextLayer}}

	// The lenient retry is only worth running for structural errors; a
	// truncated or encrypted file fails it the same way.
	if _, err := pdfTextLayer(data); err != nil && isFormatError(err) {
		out = append(out, Strategy{Name: "pdf-text-layer-lenient", Fn: pdfTextLenient})
	}

	out = append(out,
		Strategy{Name: "pdf-alt-library", Fn: pdfAltLibrary},
		Strategy{Name: "pdf-content-stream", Fn: pdfContentStream},
	)
	return out
}

func isFormatError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "xref") ||
		strings.Contains(msg, "cross-reference") ||
		strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "trailer")
}

// pdfTextLayer reads the whole text layer in one pass.
func pdfTextLayer(data []byte) (text string, err error) {
	defer recoverToError(&err)

	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	tr, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(tr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pdfTextLenient extracts page by page, skipping pages that fail, so one
// broken object table entry doesn't void the whole document.
func pdfTextLenient(data []byte) (text string, err error) {
	defer recoverToError(&err)

	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		s, perr := pageTextSafe(r, i)
		if perr != nil {
			continue
		}
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func pageTextSafe(r *ltpdf.Reader, num int) (text string, err error) {
	defer recoverToError(&err)
	p := r.Page(num)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d missing", num)
	}
	return p.GetPlainText(nil)
}

// pdfAltLibrary runs the second, independent parser.
func pdfAltLibrary(data []byte) (text string, err error) {
	defer recoverToError(&err)

	r, err := dslipakpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	tr, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(tr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pdfContentStream renders page text items manually, concatenating in
// reading order (top to bottom, left to right).
func pdfContentStream(data []byte) (text string, err error) {
	defer recoverToError(&err)

	r, err := rscpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		items := p.Content().Text
		sort.SliceStable(items, func(a, b int) bool {
			if items[a].Y != items[b].Y {
				return items[a].Y > items[b].Y // PDF origin is bottom-left
			}
			return items[a].X < items[b].X
		})

		lastY := -1.0
		for _, it := range items {
			if lastY >= 0 && it.Y != lastY {
				sb.WriteString("\n")
			} else if lastY >= 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(it.S)
			lastY = it.Y
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func recoverToError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("parser panic: %v", r)
	}
}
