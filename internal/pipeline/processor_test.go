package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hireflow-engine/internal/domain"
	"hireflow-engine/internal/logging"
	"hireflow-engine/internal/mailbox"
	"hireflow-engine/internal/parse"
)

// ---- fakes ----

type memStore struct {
	mu   sync.Mutex
	apps []domain.NormalizedApplication
}

func (m *memStore) FindApplicationByEmail(_ context.Context, email string) (*domain.NormalizedApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apps {
		if m.apps[i].Email == email {
			return &m.apps[i], nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateApplication(_ context.Context, app domain.NormalizedApplication) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.apps {
		if m.apps[i].Email == app.Email {
			return "", &domain.DuplicateError{Email: app.Email}
		}
	}
	m.apps = append(m.apps, app)
	return app.ID, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

type fakeSession struct {
	attachments map[string][]byte // keyed by filename
	bodyPlain   string
	bodyHTML    string
}

func (f *fakeSession) ListMessages(context.Context, time.Time, int, mailbox.Filters) ([]domain.EmailMessage, error) {
	return nil, nil
}

func (f *fakeSession) FetchAttachment(_ context.Context, _ uint32, att domain.Attachment) ([]byte, error) {
	if data, ok := f.attachments[att.Filename]; ok {
		return data, nil
	}
	return nil, domain.ErrAttachmentNotFound
}

func (f *fakeSession) FetchBodyText(context.Context, uint32) (string, string, error) {
	return f.bodyPlain, f.bodyHTML, nil
}

func (f *fakeSession) Close() error { return nil }

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeUploader) Upload(_ context.Context, _ []byte, filename, _, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return "file:///" + folder + "/" + filename, nil
}

type cannedModel struct{ response string }

func (c *cannedModel) Complete(context.Context, string, string, parse.CompleteOptions) (string, error) {
	return c.response, nil
}

const janeJSON = `{
	"name": "Jane Smith",
	"email": "jane@example.com",
	"phone": "+1 555 0100",
	"skills": ["Go", "PostgreSQL", "Kubernetes", "Terraform"],
	"experience": "8 years building backend services",
	"education": "BSc Computer Science",
	"languages": ["English"],
	"job_title": "Backend Engineer",
	"location": "Austin, TX"
}`

func newProcessor(store *memStore, uploads *fakeUploader, modelJSON string) *Processor {
	return &Processor{
		Store:   store,
		Uploads: uploads,
		Gate:    &parse.Gate{Model: &cannedModel{response: modelJSON}},
		Folder:  "resumes",
		Log:     logging.NewNop(),
	}
}

func resumeMessage() domain.EmailMessage {
	return domain.EmailMessage{
		UID:         7,
		From:        "Jane Smith <jane@example.com>",
		SenderEmail: "jane@example.com",
		Subject:     "Application for Backend Engineer",
		Date:        time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Attachments: []domain.Attachment{{Filename: "resume.txt", ContentType: "text/plain"}},
		TraceID:     "trace-1",
	}
}

// ---- tests ----

func TestProcessImportsCandidate(t *testing.T) {
	store := &memStore{}
	uploads := &fakeUploader{}
	sess := &fakeSession{attachments: map[string][]byte{
		"resume.txt": []byte("Jane Smith\nGo, PostgreSQL, Kubernetes, Terraform\n8 years building backend services"),
	}}
	p := newProcessor(store, uploads, janeJSON)

	imported, err := p.Process(context.Background(), sess, domain.MailAccount{ID: "acct-1"}, resumeMessage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !imported {
		t.Fatal("want imported=true")
	}
	if store.count() != 1 {
		t.Fatalf("applications = %d, want 1", store.count())
	}

	app := store.apps[0]
	if app.Source != "email" {
		t.Errorf("source = %q, want email", app.Source)
	}
	if app.Status != "pending" {
		t.Errorf("status = %q, want pending", app.Status)
	}
	if len(app.Skills) != 4 {
		t.Errorf("skills = %v, want 4", app.Skills)
	}
	if app.AccountID != "acct-1" || app.MessageUID != 7 {
		t.Errorf("audit fields: %q uid=%d", app.AccountID, app.MessageUID)
	}
	if app.Resume.URL == "" {
		t.Error("resume file not recorded")
	}
	if len(uploads.uploads) != 1 || uploads.uploads[0] != "resume.txt" {
		t.Errorf("uploads = %v", uploads.uploads)
	}
}

func TestProcessRedeliveryIsDuplicate(t *testing.T) {
	store := &memStore{}
	sess := &fakeSession{attachments: map[string][]byte{
		"resume.txt": []byte("Jane Smith resume text"),
	}}
	p := newProcessor(store, &fakeUploader{}, janeJSON)
	acct := domain.MailAccount{ID: "acct-1"}

	if _, err := p.Process(context.Background(), sess, acct, resumeMessage()); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	imported, err := p.Process(context.Background(), sess, acct, resumeMessage())
	if !domain.IsDuplicate(err) {
		t.Fatalf("err = %v, want DuplicateError", err)
	}
	if imported {
		t.Error("duplicate must not count as imported")
	}
	if store.count() != 1 {
		t.Errorf("applications = %d, want still 1", store.count())
	}
}

func TestProcessRejectsInsufficientSkills(t *testing.T) {
	store := &memStore{}
	sess := &fakeSession{attachments: map[string][]byte{
		"resume.txt": []byte("some resume text"),
	}}
	raw := `{"name":"Jane Smith","email":"jane@example.com","skills":["skill","tool"],"experience":"5 years of work"}`
	p := newProcessor(store, &fakeUploader{}, raw)

	_, err := p.Process(context.Background(), sess, domain.MailAccount{ID: "acct-1"}, resumeMessage())
	if err == nil || !strings.Contains(err.Error(), "insufficient skills") {
		t.Fatalf("err = %v, want insufficient skills rejection", err)
	}
	if store.count() != 0 {
		t.Errorf("applications = %d, want 0: gate failures never persist", store.count())
	}
}

func TestProcessVideoOnlyUsesBody(t *testing.T) {
	store := &memStore{}
	uploads := &fakeUploader{}
	sess := &fakeSession{
		attachments: map[string][]byte{"intro_jane.mp4": []byte("fake video bytes")},
		bodyPlain:   "I am Jane Smith, 8 years of Go, Kubernetes, Terraform and PostgreSQL.",
	}
	p := newProcessor(store, uploads, janeJSON)

	msg := resumeMessage()
	msg.Attachments = []domain.Attachment{{Filename: "intro_jane.mp4", ContentType: "video/mp4"}}

	imported, err := p.Process(context.Background(), sess, domain.MailAccount{ID: "acct-1"}, msg)
	if err != nil || !imported {
		t.Fatalf("Process: imported=%v err=%v", imported, err)
	}
	app := store.apps[0]
	if !app.HasVideo {
		t.Error("has_video not set")
	}
	if app.Video.Kind != "introduction" {
		t.Errorf("video kind = %q, want introduction", app.Video.Kind)
	}
	if app.Resume.URL != "" {
		t.Error("no document resume was attached")
	}
}

func TestProcessNoAttachment(t *testing.T) {
	store := &memStore{}
	p := newProcessor(store, &fakeUploader{}, janeJSON)
	msg := resumeMessage()
	msg.Attachments = nil

	_, err := p.Process(context.Background(), &fakeSession{}, domain.MailAccount{ID: "acct-1"}, msg)
	if !errors.Is(err, domain.ErrAttachmentNotFound) {
		t.Fatalf("err = %v, want ErrAttachmentNotFound", err)
	}
}

func TestOutcomeClassification(t *testing.T) {
	tests := []struct {
		name     string
		imported bool
		err      error
		want     string
	}{
		{"imported", true, nil, "imported"},
		{"duplicate", false, &domain.DuplicateError{Email: "x@y.com"}, "duplicate"},
		{"extraction", false, &domain.ExtractionError{Filename: "cv.pdf"}, "extraction_failed"},
		{"malformed", false, &domain.MalformedResponseError{Reason: "x"}, "parse_rejected"},
		{"quality", false, &domain.QualityGateError{Score: 40, Threshold: 60}, "quality_rejected"},
		{"timeout", false, &domain.TimeoutError{UID: 1, Step: "process"}, "timeout"},
		{"deadline", false, context.DeadlineExceeded, "timeout"},
		{"other", false, errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeFor(tt.imported, tt.err); got != tt.want {
				t.Errorf("outcomeFor = %q, want %q", got, tt.want)
			}
		})
	}
}
