package entity

import "time"

// MaxMessageLength caps a message body, in characters.
const MaxMessageLength = 1000

type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	SenderID  ParticipantID `json:"sender_id"`
	Body      string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	Read      bool          `json:"read"`
}
