package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net/textproto"
	"regexp"
	"strings"

	"github.com/emersion/go-imap/v2"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"hireflow-engine/internal/domain"
)

// FetchAttachment retrieves and decodes one attachment's content. The whole
// message is fetched raw, then decoded in two tiers: a standards-compliant
// MIME walk first, and a manual boundary-split scan as a resilience path
// for messages the structured reader cannot handle. When neither locates a
// decodable payload the error is explicit; there is no empty-bytes fallback.
func (s *Session) FetchAttachment(ctx context.Context, uid uint32, att domain.Attachment) ([]byte, error) {
	raw, err := s.fetchRaw(ctx, uid)
	if err != nil {
		return nil, err
	}
	return DecodeAttachment(raw, att)
}

// DecodeAttachment isolates att's payload inside a raw RFC822 message.
// Split out from FetchAttachment so tests can feed synthetic messages.
func DecodeAttachment(raw []byte, att domain.Attachment) ([]byte, error) {
	if data, err := decodeStructured(raw, att); err == nil {
		return data, nil
	}
	if data, err := decodeBoundarySplit(raw, att); err == nil {
		return data, nil
	}
	if data, err := decodeRegexScan(raw, att); err == nil {
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q (uid part %s)", domain.ErrAttachmentNotFound, att.Filename, att.PartPath)
}

func (s *Session) fetchRaw(ctx context.Context, uid uint32) ([]byte, error) {
	if s == nil || s.c == nil {
		return nil, errors.New("imap client is nil")
	}

	// BODY.PEEK[] so fetching never flags the message.
	section := &imap.FetchItemBodySection{Peek: true}
	opts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	fetchCmd := s.c.Fetch(imap.UIDSetNum(imap.UID(uid)), opts)
	defer func() { _ = fetchCmd.Close() }()

	var raw []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		if b := buf.FindBodySection(section); b != nil {
			raw = append([]byte(nil), b...)
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("imap fetch uid %d: empty message body", uid)
	}
	return raw, nil
}

// ---- tier 1: structured MIME walk ----

func decodeStructured(raw []byte, att domain.Attachment) ([]byte, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mime reader: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mime next part: %w", err)
		}

		var filename, contentType string
		switch h := p.Header.(type) {
		case *gomail.AttachmentHeader:
			filename, _ = h.Filename()
			contentType, _, _ = h.ContentType()
		case *gomail.InlineHeader:
			filename = inlineFilename(h)
			contentType, _, _ = h.ContentType()
		default:
			continue
		}

		if !attachmentMatches(att, filename, contentType) {
			continue
		}

		// p.Body already decodes the transfer encoding.
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("read part body: %w", err)
		}
		if len(data) == 0 {
			return nil, errors.New("matched part is empty")
		}
		return data, nil
	}

	return nil, errors.New("no matching part")
}

// inlineFilename digs the name of an inline part out of its disposition or
// content-type params. Inline headers don't expose a filename accessor the
// way attachment headers do, but resumes sent inline still carry one.
func inlineFilename(h *gomail.InlineHeader) string {
	if disp := h.Get("Content-Disposition"); disp != "" {
		if _, params, err := mime.ParseMediaType(disp); err == nil {
			if fn := params["filename"]; fn != "" {
				return decodeRFC2047(fn)
			}
		}
	}
	if _, params, err := h.ContentType(); err == nil {
		if fn := params["name"]; fn != "" {
			return decodeRFC2047(fn)
		}
	}
	return ""
}

// attachmentMatches prefers the filename; when the part has none it falls
// back to the declared content type.
func attachmentMatches(att domain.Attachment, filename, contentType string) bool {
	if att.Filename != "" && filename != "" {
		return strings.EqualFold(strings.TrimSpace(filename), strings.TrimSpace(att.Filename))
	}
	if att.ContentType != "" && contentType != "" {
		return strings.EqualFold(contentType, att.ContentType)
	}
	return false
}

// ---- tier 2: manual boundary split ----

func decodeBoundarySplit(raw []byte, att domain.Attachment) ([]byte, error) {
	headers, _, err := splitHeaderBody(raw)
	if err != nil {
		return nil, err
	}

	_, params, err := mime.ParseMediaType(headers.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("top-level content-type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("no multipart boundary")
	}

	for _, part := range splitOnBoundary(raw, boundary) {
		ph, body, err := splitHeaderBody(part)
		if err != nil {
			continue
		}

		// Nested multipart: recurse with the inner boundary.
		if _, innerParams, err := mime.ParseMediaType(ph.Get("Content-Type")); err == nil {
			if inner := innerParams["boundary"]; inner != "" {
				if data, err := decodeBoundarySplit(part, att); err == nil {
					return data, nil
				}
			}
		}

		if !partMatchesAttachment(ph, att) {
			continue
		}

		data, err := decodeTransferEncoding(body, encodingOf(ph, att))
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		return data, nil
	}

	return nil, errors.New("no matching part in boundary scan")
}

func splitHeaderBody(b []byte) (textproto.MIMEHeader, []byte, error) {
	sep := []byte("\r\n\r\n")
	idx := bytes.Index(b, sep)
	if idx < 0 {
		sep = []byte("\n\n")
		idx = bytes.Index(b, sep)
	}
	if idx < 0 {
		return nil, nil, errors.New("no header/body separator")
	}

	head := make([]byte, 0, idx+4)
	head = append(head, b[:idx]...)
	head = append(head, "\r\n\r\n"...)
	tr := textproto.NewReader(bufio.NewReader(bytes.NewReader(head)))
	h, err := tr.ReadMIMEHeader()
	if err != nil && h == nil {
		return nil, nil, err
	}
	return h, b[idx+len(sep):], nil
}

func splitOnBoundary(raw []byte, boundary string) [][]byte {
	marker := []byte("--" + boundary)
	segments := bytes.Split(raw, marker)
	if len(segments) < 2 {
		return nil
	}

	// First segment is the preamble, last may be the closing "--\r\n".
	var parts [][]byte
	for _, seg := range segments[1:] {
		seg = bytes.TrimPrefix(seg, []byte("--")) // closing marker
		seg = bytes.TrimLeft(seg, "\r\n")
		seg = bytes.TrimRight(seg, "-\r\n ")
		if len(seg) == 0 {
			continue
		}
		parts = append(parts, seg)
	}
	return parts
}

func partMatchesAttachment(h textproto.MIMEHeader, att domain.Attachment) bool {
	name := partFilename(h)
	if att.Filename != "" && name != "" {
		return strings.EqualFold(name, att.Filename)
	}
	if ct := h.Get("Content-Type"); ct != "" && att.ContentType != "" {
		if media, _, err := mime.ParseMediaType(ct); err == nil {
			if strings.EqualFold(media, att.ContentType) {
				return true
			}
		}
	}
	// Last resort: any part explicitly marked as an attachment.
	if disp := h.Get("Content-Disposition"); disp != "" {
		if media, _, err := mime.ParseMediaType(disp); err == nil && media == "attachment" && att.Filename == "" {
			return true
		}
	}
	return false
}

func partFilename(h textproto.MIMEHeader) string {
	if disp := h.Get("Content-Disposition"); disp != "" {
		if _, params, err := mime.ParseMediaType(disp); err == nil {
			if fn := params["filename"]; fn != "" {
				return decodeRFC2047(fn)
			}
		}
	}
	if ct := h.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			if fn := params["name"]; fn != "" {
				return decodeRFC2047(fn)
			}
		}
	}
	return ""
}

func encodingOf(h textproto.MIMEHeader, att domain.Attachment) string {
	if enc := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))); enc != "" {
		return enc
	}
	return att.Encoding
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func decodeTransferEncoding(body []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "base64":
		compact := whitespaceRe.ReplaceAllString(string(body), "")
		data, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			// some senders omit padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(compact, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("base64 decode: %w", err)
		}
		return data, nil
	case "quoted-printable":
		data, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("quoted-printable decode: %w", err)
		}
		return data, nil
	case "7bit", "8bit", "binary", "":
		return body, nil
	default:
		return nil, fmt.Errorf("unsupported transfer encoding %q", encoding)
	}
}

// ---- tier 3: regex scan ----

var base64BlockRe = regexp.MustCompile(`(?m)^[A-Za-z0-9+/=\r\n]{200,}`)

// decodeRegexScan locates the filename in the raw bytes and takes the first
// sizeable base64 run after it. Crude on purpose: this only runs when both
// structured decoding and boundary splitting have failed.
func decodeRegexScan(raw []byte, att domain.Attachment) ([]byte, error) {
	if att.Filename == "" {
		return nil, errors.New("no filename for regex scan")
	}
	idx := bytes.Index(bytes.ToLower(raw), []byte(strings.ToLower(att.Filename)))
	if idx < 0 {
		return nil, errors.New("filename not present in raw message")
	}

	m := base64BlockRe.FindIndex(raw[idx:])
	if m == nil {
		return nil, errors.New("no base64 block after filename")
	}

	return decodeTransferEncoding(raw[idx+m[0]:idx+m[1]], "base64")
}
