package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/google/uuid"

	"hireflow-engine/internal/domain"
)

// Filters decides which messages look like job applications.
type Filters struct {
	SubjectAny        []string
	RequireAttachment bool
}

// Match applies the subject heuristics and attachment requirement.
func (f Filters) Match(m domain.EmailMessage) bool {
	if f.RequireAttachment && !m.HasAttachments() {
		return false
	}
	if len(f.SubjectAny) == 0 {
		return true
	}
	return containsAnyCI(m.Subject, f.SubjectAny)
}

func containsAnyCI(s string, terms []string) bool {
	ls := strings.ToLower(s)
	for _, t := range terms {
		if t == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// ListMessages searches the selected mailbox since the given time, fetches
// envelope plus body structure, and returns the messages passing the
// filters, newest first, capped at max.
func (s *Session) ListMessages(ctx context.Context, since time.Time, max int, filters Filters) ([]domain.EmailMessage, error) {
	if s == nil || s.c == nil {
		return nil, errors.New("imap client is nil")
	}
	if max <= 0 {
		max = 50
	}

	criteria := &imap.SearchCriteria{
		Since: since,
	}

	searchData, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []domain.EmailMessage{}, nil
	}

	// Newest first.
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}

	uidSet := imap.UIDSetNum(uids...)

	fetchOptions := &imap.FetchOptions{
		UID:           true,
		Envelope:      true,
		InternalDate:  true,
		BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
	}

	fetchCmd := s.c.Fetch(uidSet, fetchOptions)
	defer func() { _ = fetchCmd.Close() }()

	out := make([]domain.EmailMessage, 0, max)

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

		var em domain.EmailMessage
		em.UID = uint32(buf.UID)
		em.TraceID = uuid.New().String()

		if buf.Envelope != nil {
			em.Subject = decodeRFC2047(buf.Envelope.Subject)
			em.Date = buf.Envelope.Date
			em.From = joinAddrs(buf.Envelope.From)
			em.SenderEmail = firstAddr(buf.Envelope.From)
		}
		if em.Date.IsZero() {
			em.Date = buf.InternalDate
		}

		if buf.BodyStructure != nil {
			em.Attachments = collectAttachments(buf.BodyStructure)
		}

		if !filters.Match(em) {
			continue
		}

		out = append(out, em)
		if len(out) >= max {
			break
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}

	return out, nil
}

func joinAddrs(addrs []imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		if name := strings.TrimSpace(a.Name); name != "" && addr != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", decodeRFC2047(name), addr))
			continue
		}
		if addr != "" {
			parts = append(parts, addr)
		}
	}
	return strings.Join(parts, ", ")
}

func firstAddr(addrs []imap.Address) string {
	for i := range addrs {
		if a := strings.TrimSpace(addrs[i].Addr()); a != "" {
			return strings.ToLower(a)
		}
	}
	return ""
}
