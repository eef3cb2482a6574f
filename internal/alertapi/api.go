// Package alertapi exposes the public HTTP surface: alert CRUD and
// lifecycle, detection endpoints, the SSE event stream, and the
// token-guarded admin reset.
package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/firewatch/internal/authmw"
	"github.com/linnemanlabs/firewatch/internal/gateway"
)

// GatewayService defines the alert and detection operations the API needs.
// Implemented by gateway.Gateway.
type GatewayService interface {
	List(ctx context.Context) ([]alert.View, error)
	Create(ctx context.Context, d alert.Draft) (alert.View, error)
	Acknowledge(ctx context.Context, id int64) (alert.View, error)
	Resolve(ctx context.Context, id int64) (alert.View, error)
	Detect(ctx context.Context, req gateway.DetectRequest) (gateway.DetectResult, error)
	DetectAndAlert(ctx context.Context, req gateway.DetectRequest) (gateway.DetectOutcome, error)
	UploadDetect(ctx context.Context, filename string, content []byte) (gateway.DetectOutcome, error)
}

// AdminService is the local-store administrative surface.
type AdminService interface {
	Clear(ctx context.Context) error
}

// DetectStatus reports classifier availability for the dashboard.
type DetectStatus struct {
	ModelLoaded   bool    `json:"model_loaded"`
	Endpoint      string  `json:"endpoint,omitempty"`
	ConfThreshold float64 `json:"conf_threshold"`
}

// Deps bundles the API handler dependencies.
type Deps struct {
	Gateway    GatewayService
	Admin      AdminService
	Events     http.Handler                           // SSE subscription endpoint
	Status     func(ctx context.Context) DetectStatus // classifier status probe
	AdminToken string                                 // empty disables the admin routes
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	deps   Deps
}

// New creates a new API handler.
func New(logger log.Logger, deps Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if deps.Gateway == nil {
		panic(xerrors.New("gateway service is required"))
	}
	return &API{
		logger: logger,
		deps:   deps,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", a.handleListAlerts)
		r.Post("/alerts", a.handleCreateAlert)
		r.Post("/alerts/{id}/acknowledge", a.handleAcknowledge)
		r.Post("/alerts/{id}/resolve", a.handleResolve)

		r.Post("/detect", a.handleDetect)
		r.Post("/detect-and-alert", a.handleDetectAndAlert)
		r.Post("/detect/upload", a.handleUploadDetect)
		r.Get("/detect/status", a.handleDetectStatus)

		if a.deps.Events != nil {
			r.Get("/events", a.deps.Events.ServeHTTP)
		}

		if a.deps.Admin != nil && a.deps.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(authmw.BearerToken(a.deps.AdminToken))
				r.Post("/clear", a.handleClear)
			})
		}
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the error taxonomy onto HTTP: missing alerts and
// images are 404, invalid transitions and rejected drafts are 400,
// everything else is a 500.
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *alert.ValidationError
	switch {
	case errors.Is(err, alert.ErrNotFound):
		http.Error(w, `{"error":"alert not found"}`, http.StatusNotFound)
	case errors.Is(err, gateway.ErrImageNotFound):
		http.Error(w, `{"error":"image not found"}`, http.StatusNotFound)
	case errors.Is(err, alert.ErrAlreadyAcknowledged):
		http.Error(w, `{"error":"alert already acknowledged"}`, http.StatusBadRequest)
	case errors.Is(err, alert.ErrAlreadyResolved):
		http.Error(w, `{"error":"alert already resolved"}`, http.StatusBadRequest)
	case errors.As(err, &verr):
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	default:
		a.logger.Error(r.Context(), err, msg)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
