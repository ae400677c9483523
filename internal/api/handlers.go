package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/domain"
	"github.com/securebank/txwatch/internal/fraudapi"
	"github.com/securebank/txwatch/internal/watch"
)

const maxBodyBytes = 1 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	watcher *watch.Watcher
	log     zerolog.Logger
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// session resolves the active session or writes a 409.
func (h *Handlers) session(w http.ResponseWriter) (*watch.Session, bool) {
	s, err := h.watcher.Session()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return nil, false
	}
	return s, true
}

type sessionView struct {
	UserID       string `json:"userId,omitempty"`
	Active       bool   `json:"active"`
	InFlight     bool   `json:"inFlight"`
	Seen         int    `json:"seen"`
	Unread       int    `json:"unread"`
	RefreshToken uint64 `json:"refreshToken"`
}

func (h *Handlers) viewOf(s *watch.Session) sessionView {
	return sessionView{
		UserID:       s.UserID(),
		Active:       true,
		InFlight:     h.watcher.InFlight(),
		Seen:         s.Seen().Len(),
		Unread:       s.Notifications().UnreadCount(),
		RefreshToken: s.Notifications().RefreshToken(),
	}
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Session ---

func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.watcher.Login(body.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.viewOf(s))
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.watcher.Session()
	if err != nil {
		writeJSON(w, http.StatusOK, sessionView{})
		return
	}
	writeJSON(w, http.StatusOK, h.viewOf(s))
}

func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	h.watcher.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// --- Notifications ---

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	sink := s.Notifications()

	items := sink.List()
	if r.URL.Query().Get("unread") == "true" {
		filtered := items[:0]
		for _, n := range items {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		items = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"unread":        sink.UnreadCount(),
		"refreshToken":  sink.RefreshToken(),
	})
}

func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !s.Notifications().Has(id) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	s.Notifications().MarkRead(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": s.Notifications().MarkAllRead()})
}

func (h *Handlers) GetRefreshToken(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"refreshToken": s.Notifications().RefreshToken()})
}

// StreamNotifications pushes new notifications as server-sent events until
// the client disconnects or the session ends.
func (h *Handlers) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, cancel := s.Notifications().Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed %s\n\n", s.UserID())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.log.Error().Err(err).Str("notification_id", n.ID).Msg("encode notification")
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data)
			flusher.Flush()
		}
	}
}

// --- Transfers ---

func (h *Handlers) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.watcher.Submit(r.Context(), req)
	if err != nil {
		var se *fraudapi.SubmitError
		switch {
		case errors.Is(err, watch.ErrNoSession):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, watch.ErrUserMismatch):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500:
			writeError(w, se.StatusCode, se.Message)
		default:
			h.log.Warn().Err(err).Msg("scorer call failed")
			writeError(w, http.StatusBadGateway, "fraud scoring service unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, v)
}
