package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/threadcart/threadcart/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The chat widget is served from arbitrary storefront origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS runs a chat session over a websocket: each inbound text frame is
// one dialogue turn, each outbound frame the reply. Unlike the REST endpoint
// the socket returns the bare reply text; clients that want action buttons
// use POST /api/v1/chat.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	token, err := auth.OptionalBearerToken(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid_credentials", "malformed Authorization header")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("websocket connected", "session_id", sessionID)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		message := strings.TrimSpace(string(data))
		if message == "" {
			continue
		}

		reply := s.runTurn(r, sessionID, message, token)
		if reply == "" {
			// Context cancelled mid-turn; the peer is gone.
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			s.logger.Warn("websocket write failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

// runTurn acquires the session for the duration of one turn. The session
// lock is not held between frames so a REST request can interleave with an
// open socket on the same session.
func (s *Server) runTurn(r *http.Request, sessionID, message, token string) string {
	engine, release, err := s.sessions.Acquire(sessionID)
	if err != nil {
		s.logger.Error("session acquire failed", "session_id", sessionID, "error", err)
		return "The service is at capacity. Please try again later."
	}
	defer release()

	turn, err := engine.ProcessTurn(r.Context(), message, token)
	if err != nil {
		return ""
	}
	return turn.Reply
}
