package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/wricardo/connectfour/auth"
	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	"github.com/wricardo/connectfour/transport/websocket"
)

// qrSize is the edge of the share QR code in pixels.
const qrSize = 320

// Server represents the REST API server
type Server struct {
	service   service.GameService
	hub       *websocket.Hub
	signer    *auth.Signer
	router    *mux.Router
	logger    *zap.Logger
	publicURL string
}

// Option configures a Server.
type Option func(*Server)

// WithSigner enables token identity on /ws and token issuing on /api/tokens.
func WithSigner(signer *auth.Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

// WithLogger attaches a request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublicURL sets the base URL used in room share links.
func WithPublicURL(url string) Option {
	return func(s *Server) {
		s.publicURL = strings.TrimSuffix(url, "/")
	}
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Rooms
	api.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST")
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{code}", s.handleCloseRoom).Methods("DELETE")
	api.HandleFunc("/rooms/{code}/qr", s.handleRoomQR).Methods("GET")

	// Match operations
	api.HandleFunc("/rooms/{code}/join", s.handleJoinRoom).Methods("POST")
	api.HandleFunc("/rooms/{code}/play", s.handlePlay).Methods("POST")
	api.HandleFunc("/rooms/{code}/leave", s.handleLeave).Methods("POST")
	api.HandleFunc("/rooms/{code}/play-again", s.handlePlayAgain).Methods("POST")
	api.HandleFunc("/rooms/{code}/push", s.handlePush).Methods("POST")
	api.HandleFunc("/players/{player}/push", s.handlePlayerPush).Methods("POST")

	// Archive and identity
	api.HandleFunc("/matches", s.handleRecentMatches).Methods("GET")
	api.HandleFunc("/tokens", s.handleIssueToken).Methods("POST")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Router exposes the router so callers can mount extra endpoints.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondServiceError reports a GameService error with the status it maps to.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondError(w, status, service.ErrorCode(err), err.Error())
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrRoomFull),
		errors.Is(err, session.ErrSelfJoin),
		errors.Is(err, session.ErrNotYourTurn),
		errors.Is(err, session.ErrGameNotInProgress),
		errors.Is(err, session.ErrGameNotInProgressWrongState),
		errors.Is(err, session.ErrOpponentMissing),
		errors.Is(err, engine.ErrColumnFull):
		return http.StatusConflict
	case errors.Is(err, session.ErrPlayerNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidColumn),
		errors.Is(err, engine.ErrInvalidPlayer),
		errors.Is(err, session.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingPlayer):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type playerRequest struct {
	Player string `json:"player"`
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// identity resolves the acting player: a valid token wins over the player
// named in the request.
func (s *Server) identity(r *http.Request, named string) (string, error) {
	if s.signer != nil {
		if token := auth.TokenFromRequest(r); token != "" {
			return s.signer.Parse(token)
		}
	}
	return named, nil
}

// Room Handlers

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	player, err := s.identity(r, req.Player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	result, err := s.service.CreateRoom(r.Context(), player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result.Snapshot)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.RoomFilter{
		Status: session.Status(query.Get("status")),
		Player: query.Get("player"),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	rooms, err := s.service.ListRooms(r.Context(), filter)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	snap, err := s.service.GetRoom(r.Context(), code)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	code := session.NormalizeCode(mux.Vars(r)["code"])

	if err := s.service.CloseRoom(r.Context(), code); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Room %s closed", code),
	})
}

// handleRoomQR renders the room's share link as a PNG QR code.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetRoom(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	png, err := qrcode.Encode(s.shareURL(r, snap.Code), qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error("qr generation failed", zap.String("room", snap.Code), zap.Error(err))
		respondError(w, http.StatusInternalServerError, service.CodeInternal, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// shareURL is the link a second player opens to join code.
func (s *Server) shareURL(r *http.Request, code string) string {
	base := s.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + code
}

// Match Handlers

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	player, err := s.identity(r, req.Player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	result, err := s.service.JoinRoom(r.Context(), mux.Vars(r)["code"], player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result.Snapshot)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Player string `json:"player"`
		Column *int   `json:"column"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.Column == nil {
		respondError(w, http.StatusBadRequest, service.CodeInvalidColumn, "column is required")
		return
	}
	player, err := s.identity(r, req.Player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	result, err := s.service.Play(r.Context(), mux.Vars(r)["code"], player, *req.Column)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Player  string `json:"player"`
		Destroy bool   `json:"destroy"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	player, err := s.identity(r, req.Player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	result, err := s.service.Leave(r.Context(), mux.Vars(r)["code"], player, req.Destroy)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePlayAgain(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	player, err := s.identity(r, req.Player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	result, err := s.service.PlayAgain(r.Context(), mux.Vars(r)["code"], player)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result.Snapshot)
}

// handlePush relays an arbitrary payload to every connection in the room.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	var data interface{}
	if len(req.Data) > 0 {
		data = req.Data
	}
	if err := s.service.Push(r.Context(), mux.Vars(r)["code"], req.Event, data); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"message": "pushed"})
}

// handlePlayerPush relays a payload to the open connections of one player.
func (s *Server) handlePlayerPush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.Event == "" {
		req.Event = "message"
	}

	player := mux.Vars(r)["player"]
	event := service.GameEvent{
		ID:        uuid.NewString(),
		Type:      service.EventPushed,
		Name:      req.Event,
		Timestamp: time.Now(),
	}
	if len(req.Data) > 0 {
		event.Data = req.Data
	}

	n := s.hub.SendToPlayer(player, event)
	if n == 0 {
		respondError(w, http.StatusNotFound, websocket.CodePlayerNotConnected, "player has no open connection")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{"message": "pushed", "connections": n})
}

// Archive and identity handlers

func (s *Server) handleRecentMatches(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	matches, err := s.service.RecentMatches(r.Context(), limit)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(matches),
		"matches": matches,
	})
}

// handleIssueToken signs a token for the named player. It stands in for a
// real login service during development.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		respondError(w, http.StatusNotFound, "tokens_disabled", "token issuing is not configured")
		return
	}

	var req playerRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	token, expires, err := s.signer.Issue(req.Player)
	if err != nil {
		if errors.Is(err, auth.ErrMissingPlayer) {
			respondError(w, http.StatusBadRequest, service.CodeInvalidIdentity, err.Error())
			return
		}
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"token":      token,
		"player":     req.Player,
		"expires_at": expires,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	player, err := s.identity(r, r.URL.Query().Get("player"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if player == "" {
		http.Error(w, "player or token parameter required", http.StatusBadRequest)
		return
	}

	s.hub.ServeWS(w, r, s.service, player)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, _ := s.service.ListRooms(r.Context(), service.RoomFilter{})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"rooms":  len(rooms),
	})
}

// statusRecorder captures the response status for logging. It passes
// Hijack through so websocket upgrades still work behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
