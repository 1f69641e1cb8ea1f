package models

import "time"

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is the common API error payload.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EnqueueMessageRequest is the intake payload for one WhatsApp message.
type EnqueueMessageRequest struct {
	ID         string    `json:"id" validate:"required"`
	GroupID    string    `json:"group_id" validate:"required"`
	SenderID   string    `json:"sender_id"`
	Text       string    `json:"text" validate:"required"`
	ReceivedAt time.Time `json:"received_at"`
}

// ReprocessRequest selects errored items to send back to pending. An
// empty list reprocesses all of them.
type ReprocessRequest struct {
	IDs []string `json:"ids"`
}

// CountResponse reports how many items an admin operation touched.
type CountResponse struct {
	Affected  int       `json:"affected"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse reports the backlog size per stage.
type StatusResponse struct {
	Stages    map[PipelineStage]int `json:"stages"`
	Timestamp time.Time             `json:"timestamp"`
}
