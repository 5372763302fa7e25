package mailbox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"hireflow-engine/internal/domain"
)

func b64wrap(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	for len(enc) > 76 {
		sb.WriteString(enc[:76])
		sb.WriteString("\r\n")
		enc = enc[76:]
	}
	sb.WriteString(enc)
	return sb.String()
}

// syntheticMessage builds a multipart/mixed message with a text body and a
// base64 attachment, the shape most mail clients produce.
func syntheticMessage(filename string, payload []byte) []byte {
	var sb strings.Builder
	sb.WriteString("From: Jane Smith <jane@example.com>\r\n")
	sb.WriteString("To: careers@example.com\r\n")
	sb.WriteString("Subject: Application for Backend Engineer\r\n")
	sb.WriteString("Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/mixed; boundary=\"MIXED-1\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("--MIXED-1\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("Please find my resume attached.\r\n")
	sb.WriteString("--MIXED-1\r\n")
	sb.WriteString("Content-Type: application/pdf; name=\"" + filename + "\"\r\n")
	sb.WriteString("Content-Disposition: attachment; filename=\"" + filename + "\"\r\n")
	sb.WriteString("Content-Transfer-Encoding: base64\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(b64wrap(payload))
	sb.WriteString("\r\n--MIXED-1--\r\n")
	return []byte(sb.String())
}

var pdfPayload = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x00, 0x7f, 0x42, 0x13}, 64)...)

func TestDecodeAttachmentRoundTrip(t *testing.T) {
	raw := syntheticMessage("resume.pdf", pdfPayload)
	att := domain.Attachment{Filename: "resume.pdf", ContentType: "application/pdf", Encoding: "base64"}

	got, err := DecodeAttachment(raw, att)
	if err != nil {
		t.Fatalf("DecodeAttachment: %v", err)
	}
	if !bytes.Equal(got, pdfPayload) {
		t.Errorf("decoded %d bytes, want the original %d", len(got), len(pdfPayload))
	}
}

func TestDecodeInlineDisposition(t *testing.T) {
	// Some clients ship the resume with Content-Disposition: inline. The
	// structured walk must still recover its filename from the params.
	var sb strings.Builder
	sb.WriteString("From: Jane Smith <jane@example.com>\r\n")
	sb.WriteString("To: careers@example.com\r\n")
	sb.WriteString("Subject: Application for Backend Engineer\r\n")
	sb.WriteString("Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/mixed; boundary=\"MIXED-1\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("--MIXED-1\r\n")
	sb.WriteString("Content-Type: application/pdf; name=\"resume.pdf\"\r\n")
	sb.WriteString("Content-Disposition: inline; filename=\"resume.pdf\"\r\n")
	sb.WriteString("Content-Transfer-Encoding: base64\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(b64wrap(pdfPayload))
	sb.WriteString("\r\n--MIXED-1--\r\n")

	att := domain.Attachment{Filename: "resume.pdf", ContentType: "application/pdf", Encoding: "base64"}
	got, err := decodeStructured([]byte(sb.String()), att)
	if err != nil {
		t.Fatalf("decodeStructured: %v", err)
	}
	if !bytes.Equal(got, pdfPayload) {
		t.Errorf("decoded %d bytes, want the original %d", len(got), len(pdfPayload))
	}
}

func TestDecodeBoundarySplit(t *testing.T) {
	raw := syntheticMessage("resume.pdf", pdfPayload)
	att := domain.Attachment{Filename: "resume.pdf", ContentType: "application/pdf", Encoding: "base64"}

	got, err := decodeBoundarySplit(raw, att)
	if err != nil {
		t.Fatalf("decodeBoundarySplit: %v", err)
	}
	if !bytes.Equal(got, pdfPayload) {
		t.Errorf("decoded %d bytes, want the original %d", len(got), len(pdfPayload))
	}
}

func TestDecodeBoundarySplitNested(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Content-Type: multipart/mixed; boundary=\"OUTER\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("--OUTER\r\n")
	sb.WriteString("Content-Type: multipart/alternative; boundary=\"INNER\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("--INNER\r\n")
	sb.WriteString("Content-Type: text/plain\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("hi\r\n")
	sb.WriteString("--INNER\r\n")
	sb.WriteString("Content-Type: text/plain; name=\"notes.txt\"\r\n")
	sb.WriteString("Content-Disposition: attachment; filename=\"notes.txt\"\r\n")
	sb.WriteString("Content-Transfer-Encoding: base64\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(b64wrap([]byte("nested payload")))
	sb.WriteString("\r\n--INNER--\r\n")
	sb.WriteString("--OUTER--\r\n")

	att := domain.Attachment{Filename: "notes.txt", Encoding: "base64"}
	got, err := decodeBoundarySplit([]byte(sb.String()), att)
	if err != nil {
		t.Fatalf("decodeBoundarySplit nested: %v", err)
	}
	if string(got) != "nested payload" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeBoundarySplitQuotedPrintable(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Content-Type: multipart/mixed; boundary=\"B\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("--B\r\n")
	sb.WriteString("Content-Type: text/plain; name=\"cover.txt\"\r\n")
	sb.WriteString("Content-Disposition: attachment; filename=\"cover.txt\"\r\n")
	sb.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("Caf=C3=A9 experience: 5 years\r\n")
	sb.WriteString("--B--\r\n")

	att := domain.Attachment{Filename: "cover.txt", Encoding: "quoted-printable"}
	got, err := decodeBoundarySplit([]byte(sb.String()), att)
	if err != nil {
		t.Fatalf("decodeBoundarySplit: %v", err)
	}
	if !strings.Contains(string(got), "Café experience") {
		t.Errorf("got %q", got)
	}
}

func TestDecodeTransferEncoding(t *testing.T) {
	want := []byte("binary \x00 payload")

	t.Run("base64 with whitespace", func(t *testing.T) {
		enc := base64.StdEncoding.EncodeToString(want)
		noisy := enc[:8] + "\r\n " + enc[8:]
		got, err := decodeTransferEncoding([]byte(noisy), "base64")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("base64 missing padding", func(t *testing.T) {
		enc := strings.TrimRight(base64.StdEncoding.EncodeToString(want), "=")
		got, err := decodeTransferEncoding([]byte(enc), "base64")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("got %q", got)
		}
	})

	t.Run("passthrough encodings", func(t *testing.T) {
		for _, enc := range []string{"7bit", "8bit", "binary", ""} {
			got, err := decodeTransferEncoding([]byte("plain"), enc)
			if err != nil || string(got) != "plain" {
				t.Errorf("%q: got %q, %v", enc, got, err)
			}
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := decodeTransferEncoding([]byte("x"), "uuencode"); err == nil {
			t.Error("want error for unsupported encoding")
		}
	})
}

func TestDecodeRegexScan(t *testing.T) {
	payload := bytes.Repeat([]byte("resume content "), 20)
	var sb strings.Builder
	sb.WriteString("X-Mangled-Headers: this message has no usable MIME structure\r\n")
	sb.WriteString("something about resume.pdf here\r\n")
	sb.WriteString(base64.StdEncoding.EncodeToString(payload))
	sb.WriteString("\r\n")

	att := domain.Attachment{Filename: "resume.pdf"}
	got, err := decodeRegexScan([]byte(sb.String()), att)
	if err != nil {
		t.Fatalf("decodeRegexScan: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decoded %d bytes, want %d", len(got), len(payload))
	}
}

func TestDecodeAttachmentNotFound(t *testing.T) {
	raw := syntheticMessage("resume.pdf", pdfPayload)
	att := domain.Attachment{Filename: "other.docx"}

	_, err := DecodeAttachment(raw, att)
	if !errors.Is(err, domain.ErrAttachmentNotFound) {
		t.Fatalf("err = %v, want ErrAttachmentNotFound", err)
	}
}

func TestBodyTextFromRaw(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("From: jane@example.com\r\n")
	sb.WriteString("To: careers@example.com\r\n")
	sb.WriteString("Subject: Video application\r\n")
	sb.WriteString("Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/alternative; boundary=\"ALT\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("--ALT\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("I am Jane Smith, 5 years of Go.\r\n")
	sb.WriteString("--ALT\r\n")
	sb.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString("<p>I am <b>Jane Smith</b>, 5 years of Go.</p>\r\n")
	sb.WriteString("--ALT--\r\n")

	plain, html := bodyTextFromRaw([]byte(sb.String()))
	if !strings.Contains(plain, "Jane Smith") {
		t.Errorf("plain = %q", plain)
	}
	if !strings.Contains(html, "<b>Jane Smith</b>") {
		t.Errorf("html = %q", html)
	}
}
