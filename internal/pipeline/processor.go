package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hireflow-engine/internal/domain"
	"hireflow-engine/internal/events"
	"hireflow-engine/internal/extract"
	"hireflow-engine/internal/mailbox"
	"hireflow-engine/internal/metrics"
	"hireflow-engine/internal/normalize"
	"hireflow-engine/internal/parse"
	"hireflow-engine/internal/storage"
)

// MailSession is what the processor needs from an open IMAP session.
// mailbox.Session satisfies it; tests use a fake.
type MailSession interface {
	ListMessages(ctx context.Context, since time.Time, max int, filters mailbox.Filters) ([]domain.EmailMessage, error)
	FetchAttachment(ctx context.Context, uid uint32, att domain.Attachment) ([]byte, error)
	FetchBodyText(ctx context.Context, uid uint32) (plain, html string, err error)
	Close() error
}

// Datastore is the persistence collaborator of the pipeline.
type Datastore interface {
	FindApplicationByEmail(ctx context.Context, email string) (*domain.NormalizedApplication, error)
	CreateApplication(ctx context.Context, app domain.NormalizedApplication) (string, error)
}

// Processor runs one message through fetch → extract → parse → dedup →
// persist. Every step failure is classified so the controller can log and
// count it without aborting the batch.
type Processor struct {
	Store   Datastore
	Uploads storage.Uploader
	Gate    *parse.Gate
	Folder  string
	Log     *zap.Logger
	Hub     *events.Hub

	now func() time.Time
}

func (p *Processor) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}

// Process ingests one message. It returns true when a new application was
// created. A DuplicateError return is a recognized skip, not a failure.
func (p *Processor) Process(ctx context.Context, sess MailSession, acct domain.MailAccount, msg domain.EmailMessage) (imported bool, err error) {
	start := p.clock()
	log := p.Log.With(
		zap.String("trace_id", msg.TraceID),
		zap.String("account_id", acct.ID),
		zap.Uint32("uid", msg.UID),
	)

	defer func() {
		metrics.ObserveMessage(p.clock().Sub(start))
		metrics.RecordOutcome(outcomeFor(imported, err))
	}()

	text, resume, video, err := p.gatherContent(ctx, sess, msg)
	if err != nil {
		p.publishFailure(msg, err)
		return false, err
	}

	candidate, err := p.Gate.Parse(ctx, text)
	if err != nil {
		p.publishFailure(msg, err)
		return false, err
	}

	// The candidate's own email wins over the envelope sender.
	email := candidate.Email
	if email == "" {
		email = msg.SenderEmail
	}
	if err := normalize.CheckDuplicate(ctx, p.Store, email); err != nil {
		if domain.IsDuplicate(err) {
			log.Info("duplicate candidate, skipping", zap.String("email", normalize.NormalizeEmail(email)))
			p.publish(msg.TraceID, events.TypeDuplicateSkipped, map[string]any{
				"email": normalize.NormalizeEmail(email),
			})
		}
		return false, err
	}

	app := normalize.BuildApplication(candidate, msg, acct.ID, resume, video, p.clock())

	id, err := p.Store.CreateApplication(ctx, app)
	if err != nil {
		// A concurrent write for the same email surfaces here; treat it
		// like the pre-check hit.
		if domain.IsDuplicate(err) {
			log.Info("duplicate candidate at write time", zap.String("email", app.Email))
			return false, err
		}
		return false, fmt.Errorf("create application: %w", err)
	}

	metrics.CandidatesImported.Inc()
	log.Info("candidate imported",
		zap.String("application_id", id),
		zap.String("name", app.Name),
		zap.Int("skills", len(app.Skills)),
		zap.Int("quality_score", app.QualityScore),
	)
	p.publish(msg.TraceID, events.TypeCandidateImported, map[string]any{
		"application_id": id,
		"name":           app.Name,
		"email":          app.Email,
	})
	return true, nil
}

// gatherContent fetches the attachment(s), uploads them, and produces the
// text the parser will see. Document resumes are extracted; video-only
// applications fall back to the message body.
func (p *Processor) gatherContent(ctx context.Context, sess MailSession, msg domain.EmailMessage) (string, *domain.ResumeFile, *domain.VideoResume, error) {
	var resume *domain.ResumeFile
	var video *domain.VideoResume
	var text string

	if att, ok := msg.DocumentAttachment(); ok {
		data, err := sess.FetchAttachment(ctx, msg.UID, att)
		if err != nil {
			return "", nil, nil, err
		}
		url, err := p.Uploads.Upload(ctx, data, att.Filename, att.ContentType, p.Folder)
		if err != nil {
			return "", nil, nil, fmt.Errorf("upload %q: %w", att.Filename, err)
		}
		resume = &domain.ResumeFile{
			URL:         url,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        int64(len(data)),
		}

		res, err := extract.FromAttachment(data, att.Filename)
		if err != nil {
			return "", nil, nil, err
		}
		text = res.Text
	}

	if att, ok := msg.VideoAttachment(); ok {
		data, err := sess.FetchAttachment(ctx, msg.UID, att)
		if err != nil {
			return "", nil, nil, err
		}
		url, err := p.Uploads.Upload(ctx, data, att.Filename, att.ContentType, p.Folder)
		if err != nil {
			return "", nil, nil, fmt.Errorf("upload %q: %w", att.Filename, err)
		}
		video = &domain.VideoResume{
			URL:      url,
			Filename: att.Filename,
			Kind:     normalize.ClassifyVideo(att.Filename),
			Size:     int64(len(data)),
		}
	}

	if resume == nil && video == nil {
		return "", nil, nil, fmt.Errorf("message uid %d: %w", msg.UID, domain.ErrAttachmentNotFound)
	}

	// Video-only: the parseable text is whatever the candidate wrote in
	// the email itself.
	if text == "" {
		plain, html, err := sess.FetchBodyText(ctx, msg.UID)
		if err != nil {
			return "", nil, nil, err
		}
		text = plain
		if text == "" && html != "" {
			if t, err := extract.HTMLText([]byte(html)); err == nil {
				text = t
			}
		}
		if text == "" {
			return "", nil, nil, &domain.ExtractionError{
				Filename: "message body",
				Attempts: []domain.StrategyFailure{
					{Strategy: "body-plain", Reason: "empty"},
					{Strategy: "body-html", Reason: "empty"},
				},
			}
		}
	}

	return text, resume, video, nil
}

func (p *Processor) publishFailure(msg domain.EmailMessage, err error) {
	p.publish(msg.TraceID, events.TypeMessageFailed, map[string]any{
		"uid":   msg.UID,
		"error": err.Error(),
	})
}

func (p *Processor) publish(traceID, typ string, data any) {
	if p.Hub != nil {
		p.Hub.PublishEvent(traceID, typ, data)
	}
}

func outcomeFor(imported bool, err error) string {
	switch {
	case err == nil && imported:
		return "imported"
	case err == nil:
		return "skipped"
	case domain.IsDuplicate(err):
		return "duplicate"
	}

	var extractionErr *domain.ExtractionError
	var malformedErr *domain.MalformedResponseError
	var qualityErr *domain.QualityGateError
	var timeoutErr *domain.TimeoutError
	switch {
	case errors.As(err, &extractionErr):
		return "extraction_failed"
	case errors.As(err, &malformedErr):
		return "parse_rejected"
	case errors.As(err, &qualityErr):
		return "quality_rejected"
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
