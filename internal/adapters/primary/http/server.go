package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/Shelq27/NMedia-DZ2/internal/auth"
	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
	"github.com/Shelq27/NMedia-DZ2/internal/core/ports"
)

const eventBuffer = 16

// Server adapte HTTP/JSON vers le port primaire du domaine.
type Server struct {
	service  ports.FeedService
	actions  ports.ActionEmitter
	validate *validator.Validate
}

func NewServer(service ports.FeedService, actions ports.ActionEmitter) *Server {
	return &Server{
		service:  service,
		actions:  actions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes retourne les routes du fil ; l'appelant ajoute auth, CORS et tracing.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// --- QUERIES (Read) ---
	mux.HandleFunc("GET /feed", s.handleCurrent)
	mux.HandleFunc("GET /feed/events", s.handleEvents)

	// --- COMMANDS (Write) ---
	mux.HandleFunc("POST /feed/load", s.transition(s.service.Load))
	mux.HandleFunc("POST /feed/refresh", s.transition(s.service.Refresh))
	mux.HandleFunc("POST /feed/older", s.transition(s.service.LoadOlder))
	mux.HandleFunc("POST /feed/newer", s.transition(s.service.ShowNewer))
	mux.HandleFunc("POST /posts", s.handleSave)
	mux.HandleFunc("PUT /posts/{id}", s.handleSave)
	mux.HandleFunc("POST /posts/{id}/actions/{kind}", s.handleAction)

	return mux
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ForContext(r.Context())

	feed, err := s.service.Current(r.Context(), viewer.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapFeed(feed))
}

func (s *Server) transition(fn func(ctx context.Context, viewerID string) (*domain.Update, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := auth.ForContext(r.Context())

		u, err := fn(r.Context(), viewer.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeUpdate(w, http.StatusOK, *u)
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ForContext(r.Context())

	var postID int64
	if raw := r.PathValue("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid post id", http.StatusBadRequest)
			return
		}
		postID = id
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := s.service.Save(r.Context(), ports.SaveCmd{
		ViewerID: viewer.ID,
		Author:   viewer.Username,
		PostID:   postID,
		Content:  req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if postID == 0 {
		status = http.StatusCreated
	}
	writeUpdate(w, status, *u)
}

// handleAction met l'action en file ; le résultat arrive par /feed/events.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ForContext(r.Context())

	postID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || postID <= 0 {
		http.Error(w, "invalid post id", http.StatusBadRequest)
		return
	}
	kind, err := domain.ParseActionKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.actions.Emit(domain.ActionRequest{
		ViewerID: viewer.ID,
		Action:   domain.Action{Kind: kind, PostID: postID},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleEvents : flux Server-Sent Events des Updates du lecteur.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	viewer := auth.ForContext(r.Context())
	if viewer.ID == "" {
		writeError(w, domain.ErrViewerRequired)
		return
	}

	updates := make(chan domain.Update, eventBuffer)
	token := s.service.Subscribe(viewer.ID, func(u domain.Update) {
		select {
		case updates <- u:
		default:
			// Client trop lent : il rattrapera via GET /feed
			slog.Warn("Dropping update for slow client", "viewer_id", u.ViewerID, "version", u.Version)
		}
	})
	defer s.service.Unsubscribe(token)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			dto, err := mapUpdate(u)
			if err != nil {
				slog.Error("Failed to render update", "viewer_id", u.ViewerID, "error", err)
				continue
			}
			data, err := json.Marshal(dto)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// --- HELPERS ---

func writeUpdate(w http.ResponseWriter, status int, u domain.Update) {
	dto, err := mapUpdate(u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, dto)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError traduit les erreurs métier en codes HTTP
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrViewerRequired), errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrPostNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrUnknownAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("Request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
