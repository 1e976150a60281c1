package handlers

import (
	"encoding/json"
	"net/http"

	"sceneflow/internal/domain"
	"sceneflow/internal/middleware"
)

type startRunRequest struct {
	Directives domain.Directives `json:"directives"`
}

// StartRun launches a run over the current queue. The run is detached from
// the request: it executes against the server context.
func (a *App) StartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}

	snap, err := a.Orchestrator.Start(a.RunCtx, req.Directives)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, snap)
}

func (a *App) CurrentRun(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Orchestrator.Snapshot())
}

var cancelMessages = map[string]string{
	"en": "Cancellation requested. The scene in progress will finish first.",
	"id": "Permintaan pembatalan diterima. Adegan yang sedang berjalan akan diselesaikan dulu.",
}

func (a *App) CancelRun(w http.ResponseWriter, r *http.Request) {
	if err := a.Orchestrator.RequestCancel(); err != nil {
		a.fail(w, err)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	msg, ok := cancelMessages[locale]
	if !ok {
		msg = cancelMessages["en"]
	}
	a.json(w, http.StatusAccepted, map[string]string{"message": msg})
}
