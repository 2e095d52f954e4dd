// Package api exposes the note service and login over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"example.com/coursenotes/internal/auth"
	"example.com/coursenotes/internal/identity"
	"example.com/coursenotes/internal/middleware"
	"example.com/coursenotes/internal/notes"
	"example.com/coursenotes/internal/service"
	"example.com/coursenotes/internal/stringsx"
)

// NoteService is the subset of service.Service the handlers call.
type NoteService interface {
	List(ctx context.Context, who identity.Identity) ([]notes.Note, error)
	ListByUser(ctx context.Context, who identity.Identity, userID int64) ([]notes.Note, error)
	ListByCourse(ctx context.Context, who identity.Identity, courseID int64) ([]notes.Note, error)
	Get(ctx context.Context, who identity.Identity, id string) (notes.Note, error)
	Create(ctx context.Context, who identity.Identity, in service.CreateInput) (notes.Note, error)
	Update(ctx context.Context, who identity.Identity, id string, in service.UpdateInput) (notes.Note, error)
	Delete(ctx context.Context, who identity.Identity, id string) error
	Stats(ctx context.Context, who identity.Identity) (service.Stats, error)
}

type Authenticator interface {
	middleware.Authenticator
	Login(ctx context.Context, email, password string) (string, identity.User, error)
}

type Handlers struct {
	notes  NoteService
	auth   Authenticator
	logger *slog.Logger
}

func NewHandlers(svc NoteService, a Authenticator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{notes: svc, auth: a, logger: logger}
}

func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/auth/login", h.login)

	r.Route("/api/notes", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.auth, h.logger))

		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/stats", h.stats)
		r.Get("/user/{userId}", h.listByUser)
		r.Get("/course/{courseId}", h.listByCourse)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.delete)
		})
	})

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  identity.User `json:"user"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if stringsx.IsEmpty(req.Email) || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password required"})
		return
	}

	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.notes.List(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	items, err := h.notes.ListByUser(r.Context(), caller(r), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) listByCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(w, r, "courseId")
	if !ok {
		return
	}
	items, err := h.notes.ListByCourse(r.Context(), caller(r), courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.notes.Stats(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	n, err := h.notes.Create(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	n, err := h.notes.Update(r.Context(), caller(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// caller is only reached behind RequireAuth, so the identity is present.
func caller(r *http.Request) identity.Identity {
	who, _ := auth.FromContext(r.Context())
	return who
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *service.ValidationError
		ae *auth.AuthError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": ve.Fields})
	case errors.As(err, &ae):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ae.Kind.String()})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"corrupt_store", errors.Is(err, notes.ErrCorruptStore), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
