package alertapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/firewatch/internal/alert"
)

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	views, err := a.deps.Gateway.List(r.Context())
	if err != nil {
		a.writeDomainError(w, r, err, "failed to list alerts")
		return
	}
	if views == nil {
		views = []alert.View{}
	}
	a.writeJSON(w, http.StatusOK, views)
}

func (a *API) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		alert.Draft
		// Older clients post description instead of message.
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	d := payload.Draft
	if d.Message == "" {
		d.Message = payload.Description
	}

	v, err := a.deps.Gateway.Create(r.Context(), d)
	if err != nil {
		a.writeDomainError(w, r, err, "failed to create alert")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int64("firewatch.alert.id", v.ID),
		attribute.String("firewatch.alert.severity", string(v.Severity)),
	)

	a.writeJSON(w, http.StatusCreated, v)
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := a.alertID(w, r)
	if !ok {
		return
	}

	v, err := a.deps.Gateway.Acknowledge(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err, "failed to acknowledge alert")
		return
	}
	a.writeJSON(w, http.StatusOK, v)
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := a.alertID(w, r)
	if !ok {
		return
	}

	v, err := a.deps.Gateway.Resolve(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err, "failed to resolve alert")
		return
	}
	a.writeJSON(w, http.StatusOK, v)
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Admin.Clear(r.Context()); err != nil {
		a.writeDomainError(w, r, err, "failed to clear alerts")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"message": "alerts cleared"})
}

// alertID parses the {id} route parameter. Non-numeric ids are treated the
// same as unknown ones.
func (a *API) alertID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, `{"error":"alert not found"}`, http.StatusNotFound)
		return 0, false
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int64("firewatch.alert.id", id))
	return id, true
}
