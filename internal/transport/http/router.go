// http собирает публичный REST API (chi) и операционные эндпойнты.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-discussions/internal/metrics"
	"github.com/pribylovaa/go-discussions/internal/transport/http/handlers"
	"github.com/pribylovaa/go-discussions/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
	Auth     middleware.AuthConfig

	// Ready — готовность для /healthz; nil — всегда готов.
	Ready func() bool
	// MetricsHandler отдаётся на /metrics; nil — эндпойнт не регистрируется.
	MetricsHandler http.Handler
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
// /livez, /healthz и /metrics — вне базового пути и без аутентификации.
func NewRouter(h *handlers.Handlers, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: id попадает в логгер запроса
		middleware.Logging(opts.Logger, opts.Metrics),
	)

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	if opts.MetricsHandler != nil {
		root.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	api := chi.NewRouter()
	api.Use(middleware.AuthBearer(opts.Auth))
	if opts.Timeout > 0 {
		api.Use(middleware.Timeout(opts.Timeout))
	}
	registerRoutes(api, h)

	if opts.BasePath != "" && opts.BasePath != "/" {
		root.Mount(opts.BasePath, api)
		return root
	}

	root.Mount("/", api)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// comments
	r.Post("/comments", h.CreateComment)
	r.Get("/comments", h.ListComments)
	r.Get("/comments/{id}", h.GetComment)
	r.Patch("/comments/{id}", h.UpdateComment)
	r.Delete("/comments/{id}", h.DeleteComment)
	r.Patch("/comments/{id}/restore", h.RestoreComment)

	// notifications
	r.Get("/notifications", h.ListNotifications)
	r.Get("/notifications/unread-count", h.UnreadCount)
	r.Patch("/notifications/{id}/read", h.MarkNotificationRead)
	r.Patch("/notifications/{id}/unread", h.MarkNotificationUnread)
}
