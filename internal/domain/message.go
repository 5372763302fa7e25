package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Attachment describes one MIME part of a message that looks like a file.
// Content is not held here; it is fetched lazily by the mail adapter.
type Attachment struct {
	ID          string
	Filename    string
	ContentType string // declared by the sender, not trusted
	Size        int64
	PartPath    string // dotted IMAP part address, e.g. "2" or "2.1"
	Encoding    string // content-transfer-encoding (base64, 7bit, ...)
}

// Ext returns the lowercase file extension including the dot.
func (a Attachment) Ext() string {
	return strings.ToLower(filepath.Ext(a.Filename))
}

var documentExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".webm": true, ".mkv": true,
}

func (a Attachment) IsDocument() bool { return documentExts[a.Ext()] }
func (a Attachment) IsVideo() bool    { return videoExts[a.Ext()] }

// EmailMessage is the transient in-memory form of a fetched message.
// It exists only for the duration of a check cycle.
type EmailMessage struct {
	UID         uint32
	From        string // display form, e.g. "Jane Smith <jane@x.com>"
	SenderEmail string // bare address, lowercased
	Subject     string
	Date        time.Time
	Attachments []Attachment
	TraceID     string // correlates log lines for one message
}

func (m EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// DocumentAttachment returns the first attachment worth extracting text
// from, preferring PDFs over Word files over plain text.
func (m EmailMessage) DocumentAttachment() (Attachment, bool) {
	order := []string{".pdf", ".docx", ".doc", ".txt"}
	for _, ext := range order {
		for _, a := range m.Attachments {
			if a.Ext() == ext {
				return a, true
			}
		}
	}
	return Attachment{}, false
}

// VideoAttachment returns the first video attachment, if any.
func (m EmailMessage) VideoAttachment() (Attachment, bool) {
	for _, a := range m.Attachments {
		if a.IsVideo() {
			return a, true
		}
	}
	return Attachment{}, false
}
