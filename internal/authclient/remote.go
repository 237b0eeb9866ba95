package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// verifyClaims is the response body an external auth service returns,
// named the way social-contact-service/backend/internal/httpapi/
// middleware/auth.go's VerifyClaims is.
type verifyClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

const remoteVerifyTimeout = 1200 * time.Millisecond

// RemoteVerifier delegates token verification to an external auth
// service's /v1/auth/verify endpoint, grounded in social-contact-service/
// backend/internal/httpapi/middleware/auth.go's AuthMiddleware. Used when
// this service is deployed alongside an auth service it doesn't share a
// signing secret with.
type RemoteVerifier struct {
	verifyURL string
	client    *http.Client
}

func NewRemoteVerifier(authBaseURL string) *RemoteVerifier {
	base := strings.TrimRight(authBaseURL, "/")
	return &RemoteVerifier{
		verifyURL: base + "/v1/auth/verify",
		client:    &http.Client{Timeout: remoteVerifyTimeout},
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteVerifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Identity{}, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, ErrUnauthenticated
	}

	var vc verifyClaims
	if err := json.NewDecoder(resp.Body).Decode(&vc); err != nil {
		return Identity{}, err
	}
	if vc.UserID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: vc.UserID, Username: vc.Username}, nil
}

// ExtractToken pulls a bearer token from either the Authorization header
// or a token query parameter, the way AuthMiddleware's extractBearer
// does — a WebSocket upgrade request can't always set custom headers, so
// callers fall back to the query string.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	return r.URL.Query().Get("token")
}
