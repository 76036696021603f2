package entity

import "strings"

// ParticipantID identifies a chat participant: "guest:<token>", "user:<uid>" or "admin".
type ParticipantID string

const (
	AdminParticipant ParticipantID = "admin"

	guestPrefix = "guest:"
	userPrefix  = "user:"
)

const (
	ParticipantKindGuest = "guest"
	ParticipantKindUser  = "user"
	ParticipantKindAdmin = "admin"
)

func GuestParticipant(token string) ParticipantID {
	return ParticipantID(guestPrefix + token)
}

func UserParticipant(uid string) ParticipantID {
	return ParticipantID(userPrefix + uid)
}

func (p ParticipantID) IsAdmin() bool {
	return p == AdminParticipant
}

func (p ParticipantID) IsGuest() bool {
	return strings.HasPrefix(string(p), guestPrefix) && len(p) > len(guestPrefix)
}

func (p ParticipantID) IsUser() bool {
	return strings.HasPrefix(string(p), userPrefix) && len(p) > len(userPrefix)
}

func (p ParticipantID) Valid() bool {
	return p.IsAdmin() || p.IsGuest() || p.IsUser()
}

func (p ParticipantID) Kind() string {
	switch {
	case p.IsAdmin():
		return ParticipantKindAdmin
	case p.IsUser():
		return ParticipantKindUser
	case p.IsGuest():
		return ParticipantKindGuest
	}
	return ""
}

// AccountID returns the auth uid of a user participant, or "" for guests and admin.
func (p ParticipantID) AccountID() string {
	if !p.IsUser() {
		return ""
	}
	return strings.TrimPrefix(string(p), userPrefix)
}

func (p ParticipantID) String() string {
	return string(p)
}
