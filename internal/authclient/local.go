package authclient

import (
	"context"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// claims mirrors auth-service/backend/internal/authservice/jwt.go's Claims:
// the sub/username/typ fields this deployment's own token issuer signs.
type claims struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

func getSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("dev-secret")
}

// LocalVerifier checks an HS256 token signed by this same deployment,
// grounded directly in auth-service/backend/internal/authservice/jwt.go's
// ParseToken. Used when the collaboration service and the token issuer
// share a secret instead of talking over HTTP.
type LocalVerifier struct {
	secret []byte
}

func NewLocalVerifier() *LocalVerifier {
	return &LocalVerifier{secret: getSecret()}
}

// NewLocalVerifierWithSecret lets the caller supply the signing secret
// explicitly (from config rather than the JWT_SECRET env var), falling
// back to the env/dev-secret default when secret is empty.
func NewLocalVerifierWithSecret(secret string) *LocalVerifier {
	if secret == "" {
		return NewLocalVerifier()
	}
	return &LocalVerifier{secret: []byte(secret)}
}

func (v *LocalVerifier) Verify(_ context.Context, token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("authclient: unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.UserID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: c.UserID, Username: c.Username}, nil
}
