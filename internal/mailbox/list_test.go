package mailbox

import (
	"testing"

	"hireflow-engine/internal/domain"
)

func TestFiltersMatch(t *testing.T) {
	withAtt := []domain.Attachment{{Filename: "resume.pdf"}}
	filters := Filters{
		SubjectAny:        []string{"application", "resume"},
		RequireAttachment: true,
	}

	tests := []struct {
		name string
		msg  domain.EmailMessage
		want bool
	}{
		{
			name: "subject and attachment",
			msg:  domain.EmailMessage{Subject: "Application for Backend Engineer", Attachments: withAtt},
			want: true,
		},
		{
			name: "case insensitive subject",
			msg:  domain.EmailMessage{Subject: "MY RESUME", Attachments: withAtt},
			want: true,
		},
		{
			name: "no attachment",
			msg:  domain.EmailMessage{Subject: "Application"},
			want: false,
		},
		{
			name: "unrelated subject",
			msg:  domain.EmailMessage{Subject: "Weekly newsletter", Attachments: withAtt},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filters.Match(tt.msg); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFiltersNoSubjectTerms(t *testing.T) {
	f := Filters{RequireAttachment: false}
	if !f.Match(domain.EmailMessage{Subject: "anything"}) {
		t.Error("empty filter set must match everything")
	}
}

func TestDecodeRFC2047(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"=?UTF-8?B?csOpc3Vtw6kucGRm?=", "résumé.pdf"},
		{"=?UTF-8?Q?r=C3=A9sum=C3=A9.pdf?=", "résumé.pdf"},
		{"plain.pdf", "plain.pdf"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := decodeRFC2047(tt.in); got != tt.want {
			t.Errorf("decodeRFC2047(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
