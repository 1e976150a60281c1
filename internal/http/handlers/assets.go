package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"sceneflow/internal/domain"
)

// DownloadAsset streams a stored artifact (generated video or frame) back to
// the caller.
func (a *App) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, contentType, err := a.Store.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.fail(w, fmt.Errorf("%w: asset %s", domain.ErrNotFound, key))
			return
		}
		a.fail(w, fmt.Errorf("%w: read asset: %v", domain.ErrService, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}
