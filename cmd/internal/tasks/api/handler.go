// Package taskapi exposes the owner-scoped task routes.
package taskapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tasktrack/cmd/internal/auth/gate"
	"tasktrack/cmd/internal/httpio"
	"tasktrack/cmd/internal/tasks"
)

const (
	msgTaskNotFound = "Task not found"
	msgTaskDeleted  = "Task deleted successfully"
)

// TaskService is the task domain used by the handlers.
type TaskService interface {
	List(ctx context.Context, owner string, f tasks.Filter) ([]tasks.Task, error)
	Get(ctx context.Context, owner, id string) (tasks.Task, error)
	Create(ctx context.Context, owner string, in tasks.CreateInput) (tasks.Task, error)
	Update(ctx context.Context, owner, id string, p tasks.Patch) (tasks.Task, error)
	Delete(ctx context.Context, owner, id string) error
}

// Handler serves /tasks.
type Handler struct {
	log          *slog.Logger
	svc          TaskService
	maxBodyBytes int64
}

// NewHandler constructs a Handler. maxBodyBytes <= 0 uses httpio.DefaultMaxBodyBytes.
func NewHandler(log *slog.Logger, svc TaskService, maxBodyBytes int64) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("taskapi: nil task service")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, maxBodyBytes: maxBodyBytes}, nil
}

// Routes mounts /tasks on r behind requireAuth.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/tasks", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type updateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := tasks.Filter{Query: q.Get("q")}
	if f.Query == "" {
		f.Query = q.Get("search")
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" && s != "all" {
		f.Status = tasks.Status(s)
	}

	out, err := h.svc.List(r.Context(), owner, f)
	if err != nil {
		h.writeError(w, "tasks.list.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "tasks.get.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := httpio.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpio.WriteMessage(w, http.StatusBadRequest, httpio.DecodeMessage(err))
		return
	}

	t, err := h.svc.Create(r.Context(), owner, tasks.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      tasks.Status(req.Status),
	})
	if err != nil {
		h.writeError(w, "tasks.create.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := httpio.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpio.WriteMessage(w, http.StatusBadRequest, httpio.DecodeMessage(err))
		return
	}

	p := tasks.Patch{Title: req.Title, Description: req.Description}
	if req.Status != nil {
		s := tasks.Status(*req.Status)
		p.Status = &s
	}

	t, err := h.svc.Update(r.Context(), owner, chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, "tasks.update.fail", err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, "tasks.delete.fail", err)
		return
	}
	httpio.WriteMessage(w, http.StatusOK, msgTaskDeleted)
}

func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	u, ok := gate.UserFromContext(r.Context())
	if !ok {
		httpio.WriteMessage(w, http.StatusUnauthorized, gate.MsgNoToken)
		return "", false
	}
	return u.ID, true
}

func (h *Handler) writeError(w http.ResponseWriter, event string, err error) {
	switch {
	case tasks.IsInvalidInput(err):
		httpio.WriteMessage(w, http.StatusBadRequest, tasks.PublicMessage(err))
	case tasks.IsNotFound(err):
		httpio.WriteMessage(w, http.StatusNotFound, msgTaskNotFound)
	default:
		h.log.Error(event, "err", err)
		httpio.WriteInternal(w)
	}
}
