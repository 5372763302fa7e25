package mailbox

import (
	"mime"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"

	"hireflow-engine/internal/domain"
)

// collectAttachments walks the BODYSTRUCTURE tree and returns descriptors
// for every part that looks like a file. A part counts when it carries an
// attachment disposition, declares a filename, or is inline non-text
// content (some clients send resumes that way).
func collectAttachments(bs imap.BodyStructure) []domain.Attachment {
	var out []domain.Attachment

	bs.Walk(func(path []int, part imap.BodyStructure) bool {
		single, ok := part.(*imap.BodyStructureSinglePart)
		if !ok {
			return true
		}

		filename := single.Filename()
		disp := dispositionOf(single)

		isAttachment := disp == "attachment" ||
			filename != "" ||
			(disp == "inline" && !strings.EqualFold(single.Type, "text"))
		if !isAttachment {
			return true
		}

		out = append(out, domain.Attachment{
			ID:          partPath(path),
			Filename:    decodeRFC2047(filename),
			ContentType: strings.ToLower(single.MediaType()),
			Size:        int64(single.Size),
			PartPath:    partPath(path),
			Encoding:    strings.ToLower(single.Encoding),
		})
		return true
	})

	return out
}

func dispositionOf(p *imap.BodyStructureSinglePart) string {
	if p.Extended == nil || p.Extended.Disposition == nil {
		return ""
	}
	return strings.ToLower(p.Extended.Disposition.Value)
}

func partPath(path []int) string {
	if len(path) == 0 {
		return "1"
	}
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// decodeRFC2047 decodes encoded-word headers ("=?UTF-8?B?...?=") to plain
// text, returning the input untouched when decoding fails.
func decodeRFC2047(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}
