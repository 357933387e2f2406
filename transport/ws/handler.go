package ws

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	readTimeout  = 60 * time.Second
	readLimit    = 1 << 16
	maxHistory   = 1000
	actionBudget = 5 * time.Second
)

// HealthReporter exposes the last health sample.
type HealthReporter interface {
	Latest() domain.HealthSnapshot
}

type Options struct {
	CORSOrigin   string
	BufferSize   int
	HistoryLimit int
	Health       HealthReporter
}

// Handler serves the read API and the websocket endpoint.
type Handler struct {
	log        *slog.Logger
	dispatcher contract.IDispatcher
	tracker    contract.IConnectionTracker
	hub        *Hub
	opts       Options
	upgrader   websocket.Upgrader
}

func NewHandler(log *slog.Logger, dispatcher contract.IDispatcher, tracker contract.IConnectionTracker, hub *Hub, opts Options) *Handler {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	return &Handler{
		log:        log,
		dispatcher: dispatcher,
		tracker:    tracker,
		hub:        hub,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.CORSOrigin),
		},
	}
}

// Routes wires every HTTP route.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Get("/healthz", h.healthz)
	r.Get("/ws", h.serveWS)
	r.Route("/api", func(api chi.Router) {
		api.Get("/participants", h.listParticipants)
		api.Get("/messages", h.listMessages)
		api.Get("/archives", h.listArchives)
		api.Get("/archives/{sessionID}", h.getArchive)
	})
	return r
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.opts.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok", "connections": h.hub.Count()}
	if h.opts.Health != nil {
		body["heartbeat"] = h.opts.Health.Latest()
	}
	respondJSON(w, http.StatusOK, body)
}

func (h *Handler) listParticipants(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"participants": h.dispatcher.Participants()})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	limit := h.opts.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistory)
	}
	messages := event.NewHistory(h.dispatcher.History(limit)).Messages
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) listArchives(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"archives": h.dispatcher.Archives()})
}

func (h *Handler) getArchive(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	messages, err := h.dispatcher.FetchArchived(r.Context(), sessionID)
	switch {
	case errors.IsNotFound(err):
		respondError(w, http.StatusNotFound, "archive not found")
	case err != nil:
		h.log.Error("Archive fetch failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusBadGateway, "archive unavailable")
	default:
		respondJSON(w, http.StatusOK, map[string]any{
			"sessionId": sessionID,
			"messages":  event.NewHistory(messages).Messages,
		})
	}
}

type inboundFrame struct {
	Action domain.Action   `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// serveWS upgrades the request and reads actions until the client goes away.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(socket, h.opts.BufferSize)
	h.hub.Attach(conn)

	ctx := context.WithoutCancel(r.Context())
	now := time.Now().UTC()
	err = h.tracker.Open(ctx, domain.Connection{
		ID:             conn.ID,
		RemoteAddr:     r.RemoteAddr,
		UserAgent:      r.UserAgent(),
		ConnectedAt:    now,
		LastActivityAt: now,
	})
	if err != nil {
		h.log.Warn("Connection not tracked", "connection_id", conn.ID, "error", err)
	}

	defer func() {
		h.hub.Detach(conn)
		if participantID := conn.ParticipantID(); participantID != "" {
			h.dispatcher.Disconnect(ctx, participantID)
		}
		if err := h.tracker.Close(ctx, conn.ID); err != nil {
			h.log.Warn("Connection record not removed", "connection_id", conn.ID, "error", err)
		}
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	socket.SetReadLimit(readLimit)
	_ = socket.SetReadDeadline(time.Now().Add(readTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!goerrors.Is(err, websocket.ErrCloseSent) {
				h.log.Debug("Websocket read ended", "connection_id", conn.ID, "error", err)
			}
			return
		}
		_ = socket.SetReadDeadline(time.Now().Add(readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.replyError(conn, "invalid payload")
			continue
		}
		if err := h.tracker.Touch(ctx, conn.ID); err != nil {
			h.log.Debug("Connection activity not recorded", "connection_id", conn.ID, "error", err)
		}

		if stop := h.handleFrame(ctx, conn, frame); stop {
			return
		}
	}
}

// handleFrame runs one action, it returns true when the connection must close.
func (h *Handler) handleFrame(parent context.Context, conn *Connection, frame inboundFrame) bool {
	ctx, cancel := context.WithTimeout(parent, actionBudget)
	defer cancel()

	var err error
	switch frame.Action {
	case domain.ActionRegister:
		var cmd domain.RegisterCommand
		if err = decode(frame.Data, &cmd); err == nil {
			var p domain.Participant
			if p, err = h.dispatcher.Register(ctx, conn.ID, cmd.DisplayName); err == nil {
				conn.Bind(p.ID)
			}
		}
	case domain.ActionStatusChange:
		var cmd domain.StatusChangeCommand
		if err = decode(frame.Data, &cmd); err == nil {
			err = h.dispatcher.ChangeStatus(ctx, h.participantFor(conn, cmd.ParticipantID), cmd.Status)
		}
	case domain.ActionActivity:
		var cmd domain.ActivityCommand
		if err = decode(frame.Data, &cmd); err == nil {
			err = h.dispatcher.ReportActivity(ctx, h.participantFor(conn, cmd.ParticipantID))
		}
	case domain.ActionSendMessage:
		var cmd domain.SendMessageCommand
		if err = decode(frame.Data, &cmd); err == nil {
			_, err = h.dispatcher.SendMessage(ctx, conn.ParticipantID(), cmd.Text)
		}
	case domain.ActionTerminateChat:
		var cmd domain.TerminateChatCommand
		if err = decode(frame.Data, &cmd); err == nil {
			err = h.dispatcher.TerminateChat(ctx, conn.ParticipantID(), cmd.Reason)
		}
	case domain.ActionDisconnect:
		return true
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownAction, frame.Action)
	}

	if err != nil {
		h.log.Debug("Action rejected", "connection_id", conn.ID, "action", frame.Action, "error", err)
		h.replyError(conn, err.Error())
	}
	return false
}

// participantFor prefers the participant bound to the connection.
func (h *Handler) participantFor(conn *Connection, requested string) string {
	if bound := conn.ParticipantID(); bound != "" {
		return bound
	}
	return requested
}

func (h *Handler) replyError(conn *Connection, message string) {
	h.hub.SendTo(conn.ID, event.Error{Message: message})
}

// originChecker accepts requests without Origin header, as sent by non-browser clients.
func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowed == "*" || origin == "" || origin == allowed
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed action data", errors.ErrValidation)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
