package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/auth"
)

// Streaming wire protocol: the client opens with one JSON text frame naming
// the user, then sends binary frames of PCM16 mono 16 kHz audio. The server
// pushes one JSON decision event per detected utterance. A fatal error is
// reported as a final JSON frame before the connection closes.

type wsHello struct {
	UserID string `json:"user_id"`
}

type wsEvent struct {
	Accept     bool    `json:"accept"`
	Score      float32 `json:"score"`
	DurationMS int64   `json:"duration_ms"`
}

type wsError struct {
	Error string `json:"error"`
}

const wsWriteTimeout = 10 * time.Second

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	mt, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var hello wsHello
	if mt != websocket.TextMessage || json.Unmarshal(raw, &hello) != nil || hello.UserID == "" {
		s.wsFail(conn, "expected JSON handshake with user_id")
		return
	}

	sess := s.verifier.NewSession(hello.UserID)
	defer sess.Close()
	s.log.Info("stream opened", "user", hello.UserID, "remote", clientIP(r))

	for {
		mt, chunk, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("stream read", "user", hello.UserID, "err", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		ev, err := sess.Process(r.Context(), pcm.DecodeInt16(chunk))
		if errors.Is(err, auth.ErrUnknownUser) {
			s.wsFail(conn, "unknown user")
			return
		}
		if err != nil {
			s.log.Error("stream process", "user", hello.UserID, "err", err)
			s.wsFail(conn, "internal error")
			return
		}
		if ev == nil {
			continue
		}

		out := wsEvent{
			Accept:     ev.Accept,
			Score:      ev.Score,
			DurationMS: ev.Duration.Milliseconds(),
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(out); err != nil {
			s.log.Debug("stream write", "user", hello.UserID, "err", err)
			return
		}
	}
}

// wsFail sends a terminal error frame; the deferred Close follows.
func (s *Server) wsFail(conn *websocket.Conn, msg string) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteJSON(wsError{Error: msg})
}
