package events

import (
	"encoding/json"
	"time"
)

// Event types emitted by the ingestion pipeline.
const (
	TypeStateChanged      = "controller_state_changed"
	TypeCandidateImported = "candidate_imported"
	TypeDuplicateSkipped  = "duplicate_skipped"
	TypeMessageFailed     = "message_failed"
	TypeAccountError      = "account_error"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	TraceID string          `json:"trace_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(traceID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:    typ,
		Version: v,
		At:      time.Now().UTC(),
		TraceID: traceID,
		Data:    raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Publish is a convenience wrapper for hub publishing of typed events.
func (h *Hub) PublishEvent(traceID, typ string, data any) {
	h.Publish(MakeEvent(traceID, typ, 1, data))
}
