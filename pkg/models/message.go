package models

import "time"

// RawMessage is an immutable WhatsApp group message as captured by the
// ingestion service. The pipeline never mutates it.
type RawMessage struct {
	ID         string    `json:"id" validate:"required"`
	GroupID    string    `json:"group_id" validate:"required"`
	SenderID   string    `json:"sender_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}
