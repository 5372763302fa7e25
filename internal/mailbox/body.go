package mailbox

import (
	"bytes"
	"context"
	"io"

	gomail "github.com/emersion/go-message/mail"
)

// FetchBodyText returns the message body as (plain, html). Used for
// video-only applications, where the candidate description lives in the
// body instead of a document attachment.
func (s *Session) FetchBodyText(ctx context.Context, uid uint32) (plain string, html string, err error) {
	raw, err := s.fetchRaw(ctx, uid)
	if err != nil {
		return "", "", err
	}
	plain, html = bodyTextFromRaw(raw)
	return plain, html, nil
}

func bodyTextFromRaw(raw []byte) (plain, html string) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Unparseable structure: hand back the raw bytes as plain text.
		return string(raw), ""
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, err := h.ContentType()
		if err != nil {
			continue
		}

		b, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}

		switch ct {
		case "text/plain":
			if len(b) > len(plain) {
				plain = string(b)
			}
		case "text/html":
			if len(b) > len(html) {
				html = string(b)
			}
		}
	}

	return plain, html
}
