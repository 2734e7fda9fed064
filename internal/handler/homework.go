package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/homework-sync/internal/model"
	"github.com/BuzzLyutic/homework-sync/internal/store"
	"github.com/BuzzLyutic/homework-sync/pkg/respond"
)

// Controller - действия пользователя, которые принимает обработчик
type Controller interface {
	OnUserAdd(text string, due model.Date) (string, error)
	OnUserToggle(id string) error
	OnUserDelete(id string) error
}

type HomeworkHandler struct {
	controller Controller
	screen     *Screen
	logger     *zap.Logger
}

func NewHomeworkHandler(controller Controller, screen *Screen, logger *zap.Logger) *HomeworkHandler {
	return &HomeworkHandler{
		controller: controller,
		screen:     screen,
		logger:     logger,
	}
}

type addRequest struct {
	Text    string     `json:"text"`
	DueDate model.Date `json:"due_date"`
}

func (h *HomeworkHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/homework", h.List)
	r.Post("/api/homework", h.Add)
	r.Post("/api/homework/{id}/toggle", h.Toggle)
	r.Delete("/api/homework/{id}", h.Delete)
}

func (h *HomeworkHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HomeworkHandler) List(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, h.screen.Take())
}

func (h *HomeworkHandler) Add(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	id, err := h.controller.OnUserAdd(req.Text, req.DueDate)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/homework/"+id)
	respond.JSON(w, r, http.StatusCreated, map[string]string{"id": id})
}

// Toggle отвечает 202: список обновится, когда придет снимок хранилища
func (h *HomeworkHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.controller.OnUserToggle(id); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *HomeworkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.controller.OnUserDelete(id); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HomeworkHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "text must not be empty")
	case errors.Is(err, store.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrTransport):
		respond.Error(w, r, http.StatusServiceUnavailable, "changes may not be saved")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
