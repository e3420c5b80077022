package websocket

import "github.com/stemsi/exstem-attempt/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest carries a full attempt snapshot.
type AutosaveRequest struct {
	Action   Action              `json:"action"`
	ExamID   string              `json:"exam_id,omitempty"`
	Snapshot model.DraftSnapshot `json:"snapshot"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventSaved Event = "saved"
	EventPong  Event = "pong"
)

type SavedResponse struct {
	Event     Event  `json:"event"`
	AttemptID string `json:"attempt_id"`
	SessionID string `json:"session_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
