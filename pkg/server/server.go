// Package server exposes the decision engine over HTTP and WebSocket.
//
// The transport layer is deliberately thin: request decoding, error-to-status
// mapping, and middleware. All policy lives in the auth, challenge, and
// stream packages. Rejects are successful responses with accept=false; only
// protocol and infrastructure failures become error statuses.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/auth"
	"github.com/haivivi/voicegate/pkg/challenge"
	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/stream"
)

// maxBodyBytes bounds request bodies; 10s of 48 kHz PCM16 base64 fits with
// room to spare.
const maxBodyBytes = 32 << 20

// Config tunes the server. Zero fields use defaults.
type Config struct {
	// APIKey, when set, is required in the X-API-Key header of every
	// request except /healthz.
	APIKey string

	// RateLimit is the maximum number of requests per client IP per
	// window; 0 disables rate limiting.
	RateLimit  int
	RateWindow time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server wires the engine, challenge manager, and streaming verifier to
// their routes.
type Server struct {
	engine     *auth.Engine
	challenges *challenge.Manager
	verifier   *stream.Verifier
	limiter    *rateLimiter
	apiKey     string
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

// New creates a Server. The kv store holds rate-limit counters; pass the
// same store the rest of the system uses.
func New(engine *auth.Engine, challenges *challenge.Manager, verifier *stream.Verifier, store kv.Store, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		engine:     engine,
		challenges: challenges,
		verifier:   verifier,
		apiKey:     cfg.APIKey,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 << 10,
			WriteBufferSize: 16 << 10,
		},
	}
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window == 0 {
			window = time.Minute
		}
		s.limiter = &rateLimiter{store: store, limit: cfg.RateLimit, window: window}
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/enroll", s.handleEnroll)
	mux.HandleFunc("POST /v1/authenticate", s.handleAuthenticate)
	mux.HandleFunc("POST /v1/challenge/start", s.handleChallengeStart)
	mux.HandleFunc("POST /v1/challenge/verify", s.handleChallengeVerify)
	mux.HandleFunc("GET /ws/stream", s.handleStream)
	return s.withMiddleware(mux)
}

// audioPayload is base64 PCM16 plus its format. Channels defaults to 1.
type audioPayload struct {
	Data     string `json:"data"`
	Rate     int    `json:"rate"`
	Channels int    `json:"channels,omitempty"`
}

func (p audioPayload) signal() (normalize.Signal, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return normalize.Signal{}, fmt.Errorf("decode audio data: %w", err)
	}
	ch := p.Channels
	if ch == 0 {
		ch = 1
	}
	return normalize.Signal{Samples: pcm.DecodeInt16(raw), Rate: p.Rate, Channels: ch}, nil
}

type enrollRequest struct {
	UserID  string         `json:"user_id"`
	Samples []audioPayload `json:"samples"`
}

type enrollResponse struct {
	UserID      string    `json:"user_id"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !s.decode(w, r, &req) {
		return
	}
	samples := make([]normalize.Signal, len(req.Samples))
	for i, p := range req.Samples {
		sig, err := p.signal()
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		samples[i] = sig
	}

	vp, err := s.engine.Enroll(r.Context(), req.UserID, samples)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, enrollResponse{
		UserID:      vp.UserID,
		SampleCount: vp.SampleCount,
		CreatedAt:   vp.CreatedAt,
		UpdatedAt:   vp.UpdatedAt,
	})
}

type authenticateRequest struct {
	UserID string       `json:"user_id"`
	Sample audioPayload `json:"sample"`
}

type authenticateResponse struct {
	Accept bool    `json:"accept"`
	Score  float32 `json:"score"`
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, err := req.Sample.signal()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	decision, err := s.engine.Authenticate(r.Context(), req.UserID, sig)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authenticateResponse{
		Accept: decision.Accept,
		Score:  decision.Score,
	})
}

type challengeStartRequest struct {
	UserID string `json:"user_id"`
}

type challengeStartResponse struct {
	SessionID string    `json:"session_id"`
	Phrase    string    `json:"phrase"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleChallengeStart(w http.ResponseWriter, r *http.Request) {
	var req challengeStartRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.challenges.Start(r.Context(), req.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, challengeStartResponse{
		SessionID: sess.ID,
		Phrase:    sess.Phrase,
		ExpiresAt: sess.ExpiresAt,
	})
}

type challengeVerifyRequest struct {
	SessionID string       `json:"session_id"`
	Sample    audioPayload `json:"sample"`
}

type challengeVerifyResponse struct {
	Accept      bool    `json:"accept"`
	VoiceScore  float32 `json:"voice_score"`
	PhraseMatch bool    `json:"phrase_match"`
	Transcript  string  `json:"transcript"`
}

func (s *Server) handleChallengeVerify(w http.ResponseWriter, r *http.Request) {
	var req challengeVerifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, err := req.Sample.signal()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := s.challenges.Verify(r.Context(), req.SessionID, sig)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, challengeVerifyResponse{
		Accept:      res.Accept,
		VoiceScore:  res.VoiceScore,
		PhraseMatch: res.PhraseMatch,
		Transcript:  res.Transcript,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

// writeDomainError maps domain errors to statuses. Unknown user is 404 and
// never a reject; burned or stale challenge sessions get conflict/gone so
// clients can distinguish "retry with a new challenge" from "bad request".
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *normalize.InvalidAudioError
	var enrollErr *auth.EnrollmentError
	switch {
	case errors.Is(err, auth.ErrUnknownUser):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, challenge.ErrSessionNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, challenge.ErrSessionAlreadyUsed):
		s.writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, challenge.ErrSessionExpired):
		s.writeError(w, r, http.StatusGone, err)
	case errors.As(err, &invalid), errors.As(err, &enrollErr):
		s.writeError(w, r, http.StatusBadRequest, err)
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		s.writeError(w, r, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "err", err)
	}
}
