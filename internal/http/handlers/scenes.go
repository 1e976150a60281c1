package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sceneflow/internal/domain"
	"sceneflow/internal/domain/jsonscene"
	"sceneflow/internal/queue"
)

// sceneView is the wire representation of a queued scene.
type sceneView struct {
	ID               string          `json:"id"`
	Prompt           string          `json:"prompt,omitempty"`
	JSONPrompt       json.RawMessage `json:"json_prompt,omitempty"`
	IsJSONPrompt     bool            `json:"is_json_prompt"`
	UsePreviousScene bool            `json:"use_previous_scene"`
}

func toSceneView(s domain.Scene) sceneView {
	return sceneView{
		ID:               s.ID,
		Prompt:           s.Prompt,
		JSONPrompt:       s.JSONPrompt,
		IsJSONPrompt:     s.IsJSONPrompt,
		UsePreviousScene: s.UsePreviousScene,
	}
}

func toSceneViews(scenes []domain.Scene) []sceneView {
	out := make([]sceneView, len(scenes))
	for i, s := range scenes {
		out[i] = toSceneView(s)
	}
	return out
}

func (a *App) ListScenes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"scenes": toSceneViews(a.Queue.Scenes())})
}

type createSceneRequest struct {
	Prompt           string          `json:"prompt"`
	JSONPrompt       json.RawMessage `json:"json_prompt"`
	IsJSONPrompt     bool            `json:"is_json_prompt"`
	UsePreviousScene bool            `json:"use_previous_scene"`
}

func (a *App) CreateScene(w http.ResponseWriter, r *http.Request) {
	var req createSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	scene := domain.NewScene(req.Prompt, req.UsePreviousScene)
	scene.JSONPrompt = req.JSONPrompt
	scene.IsJSONPrompt = req.IsJSONPrompt

	added, err := a.Queue.Add(scene)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, toSceneView(added))
}

type updateSceneRequest struct {
	Prompt           *string          `json:"prompt"`
	JSONPrompt       *json.RawMessage `json:"json_prompt"`
	IsJSONPrompt     *bool            `json:"is_json_prompt"`
	UsePreviousScene *bool            `json:"use_previous_scene"`
}

func (a *App) UpdateScene(w http.ResponseWriter, r *http.Request) {
	var req updateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	updated, err := a.Queue.Update(chi.URLParam(r, "id"), queue.ScenePatch{
		Prompt:           req.Prompt,
		JSONPrompt:       req.JSONPrompt,
		IsJSONPrompt:     req.IsJSONPrompt,
		UsePreviousScene: req.UsePreviousScene,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toSceneView(updated))
}

func (a *App) DeleteScene(w http.ResponseWriter, r *http.Request) {
	if err := a.Queue.Remove(chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveSceneRequest struct {
	Offset int `json:"offset"`
}

func (a *App) MoveScene(w http.ResponseWriter, r *http.Request) {
	var req moveSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Queue.Move(chi.URLParam(r, "id"), req.Offset); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"scenes": toSceneViews(a.Queue.Scenes())})
}

type importScenesRequest struct {
	Raw  string `json:"raw"`
	Mode string `json:"mode"`
}

func (a *App) ImportScenes(w http.ResponseWriter, r *http.Request) {
	var req importScenesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	mode := jsonscene.Mode(req.Mode)
	if req.Mode == "" {
		mode = jsonscene.ModeGlobal
	}
	if mode != jsonscene.ModeGlobal && mode != jsonscene.ModeSingle {
		a.fail(w, fmt.Errorf("%w: unknown import mode %q", domain.ErrValidation, req.Mode))
		return
	}

	added, err := a.Queue.Import(req.Raw, mode)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"scenes": toSceneViews(added)})
}
