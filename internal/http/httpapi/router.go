package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sceneflow/internal/http/handlers"
	"sceneflow/internal/middleware"
)

// Options tune the cross-cutting middleware applied to every route.
type Options struct {
	AllowedOrigins []string
	DefaultLocale  string

	// GenerateLimit caps provider-backed requests per client per minute.
	// Zero disables the limiter.
	GenerateLimit int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/scenes", func(r chi.Router) {
		r.Get("/", app.ListScenes)
		r.Post("/", app.CreateScene)
		r.Post("/import", app.ImportScenes)
		r.Patch("/{id}", app.UpdateScene)
		r.Delete("/{id}", app.DeleteScene)
		r.Post("/{id}/move", app.MoveScene)
	})

	generateGate := func(next http.Handler) http.Handler { return next }
	if opts.GenerateLimit > 0 {
		generateGate = middleware.RateLimit(opts.GenerateLimit, time.Minute)
	}

	r.Route("/v1/runs", func(r chi.Router) {
		r.With(generateGate).Post("/", app.StartRun)
		r.Get("/current", app.CurrentRun)
		r.Post("/current/cancel", app.CancelRun)
	})

	r.With(generateGate).Post("/v1/images/edit", app.EditImage)
	r.Get("/v1/assets/*", app.DownloadAsset)

	return r
}
