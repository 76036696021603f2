package entity

import "time"

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionResolved SessionStatus = "resolved"
)

// PreviewLength caps Session.LastMessage, in characters.
const PreviewLength = 100

const GuestDisplayName = "Guest User"

// Session is a conversation between one counterpart and the admin.
type Session struct {
	ID           string                `json:"id"`
	Participants []ParticipantID       `json:"participants"`
	Type         string                `json:"type"` // "guest" or "user"
	Status       SessionStatus         `json:"status"`
	UserName     string                `json:"user_name,omitempty"`
	UserEmail    string                `json:"user_email,omitempty"`
	LastMessage  string                `json:"last_message"`
	UnreadCounts map[ParticipantID]int `json:"unread_counts"`
	LastActiveAt time.Time             `json:"last_active_at"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (s *Session) HasParticipant(p ParticipantID) bool {
	for _, participant := range s.Participants {
		if participant == p {
			return true
		}
	}
	return false
}

// Counterpart returns the non-admin participant.
func (s *Session) Counterpart() ParticipantID {
	for _, participant := range s.Participants {
		if !participant.IsAdmin() {
			return participant
		}
	}
	return ""
}

// RecipientOf returns the participant on the other side of sender.
func (s *Session) RecipientOf(sender ParticipantID) (ParticipantID, bool) {
	if !s.HasParticipant(sender) {
		return "", false
	}
	for _, participant := range s.Participants {
		if participant != sender {
			return participant, true
		}
	}
	return "", false
}

func (s *Session) UnreadFor(p ParticipantID) int {
	if s.UnreadCounts == nil {
		return 0
	}
	return s.UnreadCounts[p]
}

// Preview truncates a message body to PreviewLength characters.
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}
	return string(runes[:PreviewLength])
}
