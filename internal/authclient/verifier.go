// Package authclient authenticates a WebSocket handshake before a
// connection is allowed to join a document room. Two implementations are
// grounded in the pack's two real auth patterns: LocalVerifier parses a
// token signed by this same deployment (auth-service/backend/internal/
// authservice/jwt.go's ParseToken), RemoteVerifier calls out to an
// external auth service the way social-contact-service/backend/internal/
// httpapi/middleware/auth.go's AuthMiddleware does. Neither login nor
// token issuance is implemented here — spec.md §1 scopes this service to
// an already-authenticated user.
package authclient

import (
	"context"
	"errors"
)

// ErrUnauthenticated means the token was missing, expired, or otherwise
// rejected by whichever Verifier handled it.
var ErrUnauthenticated = errors.New("authclient: unauthenticated")

// Identity is the subset of a verified token this service actually needs:
// enough to tag operations and presence entries with a user, nothing
// about roles or document permissions (out of scope per spec.md §1).
type Identity struct {
	UserID   string
	Username string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
