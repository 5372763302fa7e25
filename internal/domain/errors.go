package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy for the ingestion pipeline. Each failure class maps to a
// distinct outcome: connectivity errors retry at the next cycle, extraction
// and parse failures skip the candidate, duplicates are a recognized skip.

// ErrAttachmentNotFound marks an attachment that could not be located or
// decoded in the raw message by any extraction path.
var ErrAttachmentNotFound = errors.New("attachment not found or undecodable")

// ConnectivityError means the mail server was unreachable or rejected the
// login. The account is retried at the next scheduled cycle.
type ConnectivityError struct {
	AccountID string
	Host      string
	Err       error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("mail server %s unreachable for account %s: %v", e.Host, e.AccountID, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// StrategyFailure records why one extraction strategy gave up.
type StrategyFailure struct {
	Strategy string
	Reason   string
}

// ExtractionError means every strategy in the text-extraction chain failed
// or produced empty text. It carries per-strategy detail; it is never
// replaced by a placeholder string pretending to be extracted text.
type ExtractionError struct {
	Filename string
	Attempts []StrategyFailure
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Strategy, a.Reason))
	}
	return fmt.Sprintf("text extraction failed for %q (%s)", e.Filename, strings.Join(parts, "; "))
}

// MalformedResponseError means the model returned non-JSON, or JSON that is
// missing or failing a mandatory field. No partial record is written.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "model response rejected: " + e.Reason
}

// QualityGateError means the parse succeeded but the composite quality
// score fell below the persistence threshold.
type QualityGateError struct {
	Score     int
	Threshold int
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("candidate quality score %d below threshold %d", e.Score, e.Threshold)
}

// DuplicateError is not a failure: an application already exists for the
// candidate email. The message is skipped, never merged.
type DuplicateError struct {
	Email string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("application already exists for %s", e.Email)
}

// TimeoutError means one message exceeded its processing deadline. It fails
// that message only; the batch continues.
type TimeoutError struct {
	UID  uint32
	Step string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("processing message uid=%d timed out during %s", e.UID, e.Step)
}

// IsDuplicate reports whether err is a duplicate skip.
func IsDuplicate(err error) bool {
	var d *DuplicateError
	return errors.As(err, &d)
}
