package usecase

import (
	"github.com/oklog/ulid/v2"

	"mitcstore/internal/domain/entity"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
)

type IdentityResolver struct {
	newToken func() string
}

func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{
		newToken: func() string { return ulid.Make().String() },
	}
}

// Resolve maps the caller to a participant id. Signed-in users are "user:<uid>";
// anonymous visitors get a guest token that is minted once and persisted in
// tokens. Resolve never fails: if the token cannot be saved the visitor chats
// under an ephemeral id for this call only.
func (r *IdentityResolver) Resolve(auth AuthState, tokens GuestTokenStore) entity.ParticipantID {
	if auth.Authenticated() {
		return entity.UserParticipant(auth.UID)
	}

	if tokens != nil {
		if token, ok := tokens.Load(); ok && token != "" {
			return entity.GuestParticipant(token)
		}
	}

	token := r.newToken()
	if tokens == nil {
		logger.Warn("%s: no guest token store, using ephemeral id", errors.CodeIdentityUnavailable)
		return entity.GuestParticipant(token)
	}
	if err := tokens.Save(token); err != nil {
		logger.Warn("%s: failed to persist guest token: %v", errors.CodeIdentityUnavailable, err)
	}
	return entity.GuestParticipant(token)
}

// Lookup is Resolve without minting: it reports false for a visitor who has
// no guest token yet.
func (r *IdentityResolver) Lookup(auth AuthState, tokens GuestTokenStore) (entity.ParticipantID, bool) {
	if auth.Authenticated() {
		return entity.UserParticipant(auth.UID), true
	}
	if tokens != nil {
		if token, ok := tokens.Load(); ok && token != "" {
			return entity.GuestParticipant(token), true
		}
	}
	return "", false
}
