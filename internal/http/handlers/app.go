// Package handlers exposes the scene queue, run control, image editing and
// asset download over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"sceneflow/internal/domain"
	"sceneflow/internal/infra"
	"sceneflow/internal/orchestrator"
	"sceneflow/internal/providers/image"
	"sceneflow/internal/queue"
	"sceneflow/internal/storage"
)

// App bundles the dependencies shared by all handlers.
type App struct {
	Queue        *queue.SceneQueue
	Orchestrator *orchestrator.Orchestrator
	Editor       image.Editor
	Store        *storage.FileStore
	Logger       infra.Logger

	// RunCtx spans the server lifetime; runs launched from a request must
	// outlive that request.
	RunCtx context.Context
}

func NewApp(runCtx context.Context, q *queue.SceneQueue, o *orchestrator.Orchestrator, editor image.Editor, store *storage.FileStore, logger infra.Logger) *App {
	return &App{
		Queue:        q,
		Orchestrator: o,
		Editor:       editor,
		Store:        store,
		Logger:       logger,
		RunCtx:       runCtx,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"code": errCode, "message": message})
}

// fail maps domain errors onto HTTP statuses and serializes the message.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	case errors.Is(err, domain.ErrFormat):
		a.error(w, http.StatusUnprocessableEntity, "format_error", err.Error())
	case errors.Is(err, domain.ErrState):
		a.error(w, http.StatusConflict, "state_error", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrService):
		a.error(w, http.StatusBadGateway, "service_error", err.Error())
	default:
		a.error(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
