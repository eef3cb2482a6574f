package alertapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/firewatch/internal/gateway"
)

// maxUploadBytes bounds one snapshot upload.
const maxUploadBytes = 10 << 20

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req gateway.DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	res, err := a.deps.Gateway.Detect(r.Context(), req)
	if err != nil {
		a.writeDomainError(w, r, err, "detect failed")
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) handleDetectAndAlert(w http.ResponseWriter, r *http.Request) {
	var req gateway.DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	out, err := a.deps.Gateway.DetectAndAlert(r.Context(), req)
	if err != nil {
		a.writeDomainError(w, r, err, "detect-and-alert failed")
		return
	}

	if out.Alert != nil {
		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(attribute.Int64("firewatch.alert.id", out.Alert.ID))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleUploadDetect(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"file required"}`, http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, `{"error":"failed to read upload"}`, http.StatusBadRequest)
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "upload"
	}

	out, err := a.deps.Gateway.UploadDetect(r.Context(), filename, content)
	if err != nil {
		a.writeDomainError(w, r, err, "upload-detect failed")
		return
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDetectStatus(w http.ResponseWriter, r *http.Request) {
	if a.deps.Status == nil {
		a.writeJSON(w, http.StatusOK, DetectStatus{})
		return
	}
	a.writeJSON(w, http.StatusOK, a.deps.Status(r.Context()))
}
