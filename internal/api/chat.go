package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/threadcart/threadcart/internal/auth"
	"github.com/threadcart/threadcart/internal/chat"
	"github.com/threadcart/threadcart/internal/session"
)

// ChatRequest is one dialogue turn over REST. SessionID is optional; when
// empty the server mints one and returns it so the client can continue the
// conversation.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse carries the assistant reply plus quick-reply buttons.
type ChatResponse struct {
	Response      string        `json:"response"`
	ActionButtons []chat.Action `json:"action_buttons,omitempty"`
	SessionID     string        `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "message must not be empty")
		return
	}

	token, err := auth.OptionalBearerToken(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid_credentials", "malformed Authorization header")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	engine, release, err := s.sessions.Acquire(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrCapacity) {
			s.writeError(w, http.StatusServiceUnavailable, "capacity", "too many active sessions, try again later")
			return
		}
		s.logger.Error("session acquire failed", "session_id", sessionID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "could not open session")
		return
	}
	defer release()

	turn, err := engine.ProcessTurn(r.Context(), req.Message, token)
	if err != nil {
		// Only context errors escape the turn loop; the client is gone.
		s.logger.Debug("turn aborted", "session_id", sessionID, "error", err)
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		Response:      turn.Reply,
		ActionButtons: turn.Actions,
		SessionID:     sessionID,
	})
}
