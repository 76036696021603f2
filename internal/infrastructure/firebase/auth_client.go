package firebase

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/auth"

	"mitcstore/internal/usecase"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (usecase.AuthState, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return usecase.AuthState{}, err
	}

	return usecase.AuthState{
		UID:   result.UID,
		Name:  claim(result.Claims, "name"),
		Email: claim(result.Claims, "email"),
	}, nil
}

func claim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

var ErrAuthDisabled = errors.New("firebase auth is not configured")

// DisabledAuthClient rejects every token, so all callers chat as guests.
// It backs the memory storage driver when no service account is configured.
type DisabledAuthClient struct{}

func (DisabledAuthClient) VerifyToken(ctx context.Context, token string) (usecase.AuthState, error) {
	return usecase.AuthState{}, ErrAuthDisabled
}
