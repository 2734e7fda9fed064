package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/homework-sync/internal/controller"
	"github.com/BuzzLyutic/homework-sync/internal/model"
	"github.com/BuzzLyutic/homework-sync/internal/store"
)

func setupRouter(t *testing.T) (http.Handler, *Screen) {
	t.Helper()
	st, err := store.NewLocalStore(store.NewFileStorage(filepath.Join(t.TempDir(), "homework.json")), zap.NewNop())
	require.NoError(t, err)

	screen := NewScreen()
	ctrl := controller.New(st, controller.NewView(), screen, zap.NewNop())
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	r := chi.NewRouter()
	NewHomeworkHandler(ctrl, screen, zap.NewNop()).Routes(r)
	return r, screen
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func list(t *testing.T, h http.Handler) ScreenState {
	t.Helper()
	w := do(t, h, http.MethodGet, "/api/homework", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state ScreenState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	return state
}

func add(t *testing.T, h http.Handler, text, due string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"text": text, "due_date": due})
	w := do(t, h, http.MethodPost, "/api/homework", string(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp["id"]
}

func TestHomeworkHandler_Add(t *testing.T) {
	h, _ := setupRouter(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"successful creation", `{"text":"Essay","due_date":"2025-07-15"}`, http.StatusCreated},
		{"no due date", `{"text":"Read chapter 3"}`, http.StatusCreated},
		{"empty body", ``, http.StatusBadRequest},
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"invalid date", `{"text":"Essay","due_date":"next week"}`, http.StatusBadRequest},
		{"blank text", `{"text":"   ","due_date":"2025-07-15"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/homework", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusCreated {
				assert.Contains(t, w.Header().Get("Location"), "/api/homework/")
			}
		})
	}

	assert.Len(t, list(t, h).Items, 2)
}

func TestHomeworkHandler_ListOrdering(t *testing.T) {
	h, _ := setupRouter(t)

	c := add(t, h, "C", "2024-01-01")
	add(t, h, "B", "")
	add(t, h, "A", "2025-01-01")
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/homework/"+c+"/toggle", "").Code)

	state := list(t, h)
	assert.True(t, state.Ready)
	require.Len(t, state.Items, 3)
	assert.Equal(t, "A", state.Items[0].Text)
	assert.Equal(t, "B", state.Items[1].Text)
	assert.Equal(t, "C", state.Items[2].Text)
	assert.True(t, state.Items[2].Completed)
	assert.Equal(t, "2025-01-01", state.Items[0].DueDate.String())
}

func TestHomeworkHandler_Toggle(t *testing.T) {
	h, _ := setupRouter(t)
	id := add(t, h, "Math", "")

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/homework/"+id+"/toggle", "").Code)
	assert.True(t, list(t, h).Items[0].Completed)

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/homework/"+id+"/toggle", "").Code)
	assert.False(t, list(t, h).Items[0].Completed)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/homework/unknown/toggle", "").Code)
}

func TestHomeworkHandler_Delete(t *testing.T) {
	h, _ := setupRouter(t)
	id := add(t, h, "History", "")

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/homework/"+id, "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/homework/"+id, "").Code)
	assert.Empty(t, list(t, h).Items)
}

func TestHomeworkHandler_NoticeShownOnce(t *testing.T) {
	h, screen := setupRouter(t)
	screen.Notice(controller.NoticeNotSaved)

	assert.Equal(t, controller.NoticeNotSaved, list(t, h).Notice)
	assert.Empty(t, list(t, h).Notice)
}

func TestHomeworkHandler_Health(t *testing.T) {
	h, _ := setupRouter(t)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

type stubController struct {
	err error
}

func (s stubController) OnUserAdd(string, model.Date) (string, error) { return "", s.err }
func (s stubController) OnUserToggle(string) error                    { return s.err }
func (s stubController) OnUserDelete(string) error                    { return s.err }

func TestHomeworkHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation", store.ErrValidation, http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"transport", store.ErrTransport, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHomeworkHandler(stubController{err: tt.err}, NewScreen(), zap.NewNop()).Routes(r)

			req := httptest.NewRequest(http.MethodDelete, "/api/homework/x", bytes.NewReader(nil))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestScreen_BeforeFirstRender(t *testing.T) {
	s := NewScreen()
	state := s.Take()
	assert.False(t, state.Ready)
	assert.Empty(t, state.Items)
}
