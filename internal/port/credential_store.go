package port

import "context"

// TokenSource yields the bearer credential to attach to outgoing calls.
type TokenSource interface {
	// Token returns "" when no credential is held
	Token(ctx context.Context) (string, error)
}

type CredentialStore interface {
	TokenSource

	// SaveToken stores the credential obtained at login
	SaveToken(ctx context.Context, token string) error

	// ClearToken drops the credential at logout
	ClearToken(ctx context.Context) error
}
