package domain

import "time"

// ChatMessage is immutable once created. History order is receipt order.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderName string    `json:"sender"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsLocal    bool      `json:"isLocal"`
}
