package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/DUBIX17/dubix-stt3/internal/session"
	"github.com/gorilla/websocket"
)

const finalizeCommand = "finalize"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 4 * 1024,
}

// Binary messages are chunks and receive the same ack as POST /v1/audio; the
// text message "finalize" finalizes the session.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rate, err := parseSampleRate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := session.NormalizeID(r.URL.Query().Get("session"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "session_id", id)
		return
	}
	defer conn.Close()
	slog.Info("stream opened", "session_id", id, "sample_rate", rate, "remote", r.RemoteAddr)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("stream read failed", "error", err, "session_id", id)
			} else {
				slog.Info("stream closed", "session_id", id)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			ack := s.manager.IngestChunk(id, rate, payload)
			if err := conn.WriteJSON(chunkAckResponse{
				SessionID: ack.SessionID,
				Loudness:  ack.Loudness,
				Active:    ack.Active,
				Finalized: ack.Finalized,
			}); err != nil {
				slog.Warn("stream ack write failed", "error", err, "session_id", id)
				return
			}
		case websocket.TextMessage:
			if string(payload) != finalizeCommand {
				continue
			}
			finalized := s.manager.Finalize(id)
			if err := conn.WriteJSON(finalizeResponse{SessionID: id, Finalized: finalized}); err != nil {
				slog.Warn("stream finalize write failed", "error", err, "session_id", id)
				return
			}
		}
	}
}
