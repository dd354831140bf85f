package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatmindhq/chatmind/internal/memory"
)

type wsChatRequest struct {
	Text string `json:"text"`
}

type wsChatResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// handleChatWS serves a realtime chat channel: one JSON frame in ({text}),
// one frame out ({reply}). The user identity is fixed per connection.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	s.metrics.ActiveWSChats.Inc()
	defer s.metrics.ActiveWSChats.Dec()
	log.Printf("ws chat %s opened for user %s", connID, userID)

	conn.SetReadLimit(1 << 20)
	for {
		var req wsChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			break
		}
		if strings.TrimSpace(req.Text) == "" {
			s.writeWS(conn, wsChatResponse{Error: "text is required", Code: "missing_text"})
			continue
		}

		reply, err := s.orchestrator.HandleUserMessage(r.Context(), userID, req.Text)
		if err != nil {
			code := "turn_failed"
			if memory.IsStorageUnavailable(err) {
				code = "storage_unavailable"
			}
			if !s.writeWS(conn, wsChatResponse{Error: err.Error(), Code: code}) {
				break
			}
			continue
		}
		if !s.writeWS(conn, wsChatResponse{Reply: reply}) {
			break
		}
	}

	log.Printf("ws chat %s closed", connID)
}

func (s *Server) writeWS(conn *websocket.Conn, msg wsChatResponse) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg) == nil
}
