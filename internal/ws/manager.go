package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"syncdoc/internal/authclient"
	"syncdoc/internal/collab"
	"syncdoc/internal/room"
)

// upgrader allows the usual browser dev origins plus no-Origin clients
// (native WebSocket libraries and same-process tests), the same
// allowlist collab-service/backend/internal/ws/wsmanager.go uses rather
// than disabling origin checks outright.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" {
			return true
		}
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost") ||
			strings.HasPrefix(origin, "http://127.0.0.1") ||
			strings.HasPrefix(origin, "https://127.0.0.1")
	},
}

// Manager owns the pieces every new connection needs wired together:
// the document room router, the presence cache, the collaboration
// service, and whichever Verifier authenticates the handshake.
type Manager struct {
	router   *room.Router
	presence room.PresenceCache
	svc      *collab.Service
	verifier authclient.Verifier
}

func NewManager(router *room.Router, presence room.PresenceCache, svc *collab.Service, verifier authclient.Verifier) *Manager {
	return &Manager{router: router, presence: presence, svc: svc, verifier: verifier}
}

// WebSocketConnect authenticates the handshake, upgrades the HTTP
// connection, and hands it off to a new Conn's Run loop. Grounded in
// collab-service/backend/internal/ws/wsmanager.go's WebSocketConnect,
// generalized to verify the token itself rather than trust gin-context
// values an upstream auth middleware already set.
func (m *Manager) WebSocketConnect(c *gin.Context) {
	token := authclient.ExtractToken(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	identity, err := m.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	clientID := c.Query("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	wsConn := NewConn(conn, m.router, m.presence, m.svc, clientID, identity.UserID)
	wsConn.Run(c.Request.Context())
}
