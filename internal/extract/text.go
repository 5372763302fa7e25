package extract

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// plainText decodes a .txt attachment as UTF-8.
func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("not valid UTF-8")
	}
	return string(data), nil
}

// HTMLText strips markup and returns visible text. Also used on HTML email
// bodies for video-only applications.
func HTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, head").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		sb.WriteString(sel.Text())
	})
	out := sb.String()
	if strings.TrimSpace(out) == "" {
		// fragments without a <body>
		out = doc.Text()
	}
	return out, nil
}
