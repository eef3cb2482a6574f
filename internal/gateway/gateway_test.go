package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/firewatch/internal/alert/memstore"
	"github.com/linnemanlabs/firewatch/internal/detect"
)

func newLocal(t *testing.T) (*alert.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return alert.NewService(store, nil, nil, nil, nil), store
}

func newGateway(t *testing.T, primaryURL, imageDir string) (*Gateway, *memstore.Store) {
	t.Helper()
	local, store := newLocal(t)
	var primary *Client
	if primaryURL != "" {
		primary = NewClient(primaryURL, 2*time.Second)
	}
	adapter := detect.NewAdapter(nil, nil, nil) // heuristic mode
	g := New(Config{ImageDir: imageDir, ConfThreshold: 0.50}, primary, local, adapter, nil, nil)
	return g, store
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("img"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return p
}

// primaryStub serves the primary alert-service API shape.
func primaryStub(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /alerts", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]alert.Alert{
			{ID: 41, Timestamp: now, Severity: alert.SeverityHigh, Message: "remote", Type: "fire"},
		})
	})
	mux.HandleFunc("POST /alerts", func(w http.ResponseWriter, r *http.Request) {
		var d alert.Draft
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(alert.Alert{
			ID: 42, Timestamp: now, Severity: d.Severity, Location: d.Location,
			Message: d.Message, Type: d.Type, Confidence: d.Confidence,
		})
	})
	mux.HandleFunc("POST /alerts/42/acknowledge", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(alert.Alert{ID: 42, Timestamp: now, Acknowledged: true, AcknowledgedAt: &now})
	})
	mux.HandleFunc("POST /alerts/42/resolve", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(alert.Alert{ID: 42, Timestamp: now, Acknowledged: true, ResolvedAt: &now})
	})
	mux.HandleFunc("POST /detect", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DetectResult{Confidence: 0.95, Severity: alert.SeverityHigh})
	})
	mux.HandleFunc("POST /detect-and-alert", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DetectOutcome{Confidence: 0.95, Severity: alert.SeverityHigh, Type: "fire"})
	})
	mux.HandleFunc("POST /detect/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(DetectOutcome{Confidence: 0.88, Severity: alert.SeverityHigh, Type: "fire"})
	})
	return httptest.NewServer(mux)
}

func failingStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
}

func TestGateway_HealthyPrimaryServesAllOps(t *testing.T) {
	t.Parallel()

	srv := primaryStub(t)
	defer srv.Close()

	g, store := newGateway(t, srv.URL, t.TempDir())
	ctx := context.Background()

	views, err := g.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(views) != 1 || views[0].ID != 41 {
		t.Errorf("List() = %+v, want the primary's alert", views)
	}
	if views[0].Status != "active" {
		t.Errorf("Status = %q, want normalized %q", views[0].Status, "active")
	}

	created, err := g.Create(ctx, alert.Draft{Message: "m", Severity: alert.SeverityHigh})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if created.ID != 42 {
		t.Errorf("Create().ID = %d, want 42 from primary", created.ID)
	}

	acked, err := g.Acknowledge(ctx, 42)
	if err != nil {
		t.Fatalf("Acknowledge() = %v", err)
	}
	if acked.Status != "acknowledged" {
		t.Errorf("Status = %q, want acknowledged", acked.Status)
	}

	resolved, err := g.Resolve(ctx, 42)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if resolved.Status != "resolved" {
		t.Errorf("Status = %q, want resolved", resolved.Status)
	}

	// Primary handled every write: the local store must stay untouched.
	locals, _ := store.List(ctx)
	if len(locals) != 0 {
		t.Errorf("local store has %d alerts, want 0 when primary is healthy", len(locals))
	}
}

func TestGateway_FailingPrimaryFallsBack(t *testing.T) {
	t.Parallel()

	srv := failingStub(t)
	defer srv.Close()

	g, store := newGateway(t, srv.URL, t.TempDir())
	ctx := context.Background()

	created, err := g.Create(ctx, alert.Draft{Message: "m", Severity: alert.SeverityMedium})
	if err != nil {
		t.Fatalf("Create() = %v, fallback must absorb primary failure", err)
	}
	if created.ID != 1 {
		t.Errorf("Create().ID = %d, want 1 from local store", created.ID)
	}

	// Exactly one write landed, on exactly one backend.
	locals, _ := store.List(ctx)
	if len(locals) != 1 {
		t.Fatalf("local store has %d alerts, want 1", len(locals))
	}

	views, err := g.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(views) != 1 {
		t.Errorf("List() = %d alerts, want 1 from fallback", len(views))
	}

	if _, err := g.Acknowledge(ctx, created.ID); err != nil {
		t.Errorf("Acknowledge() = %v, want local fallback to succeed", err)
	}
	if _, err := g.Resolve(ctx, created.ID); err != nil {
		t.Errorf("Resolve() = %v, want local fallback to succeed", err)
	}
}

func TestGateway_NoPrimaryUsesLocal(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, "", t.TempDir())

	created, err := g.Create(context.Background(), alert.Draft{Message: "m"})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}
}

func TestGateway_CreateRejectsInvalidDraft(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, "", t.TempDir())

	_, err := g.Create(context.Background(), alert.Draft{})
	var verr *alert.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create() = %v, want *ValidationError", err)
	}
}

func TestGateway_DetectFallbackHeuristic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, dir, "fire_cam1.jpg")

	g, _ := newGateway(t, "", dir)

	res, err := g.Detect(context.Background(), DetectRequest{Filename: "fire_cam1.jpg"})
	if err != nil {
		t.Fatalf("Detect() = %v", err)
	}
	if res.Severity != alert.SeverityHigh || res.Confidence != 0.82 {
		t.Errorf("Detect() = %+v, want {0.82 high} from heuristic", res)
	}
}

func TestGateway_DetectMissingImage(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, "", t.TempDir())

	_, err := g.Detect(context.Background(), DetectRequest{Filename: "nope.jpg"})
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("Detect() = %v, want ErrImageNotFound", err)
	}
}

func TestGateway_DetectEmptyRequest(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, "", t.TempDir())

	_, err := g.Detect(context.Background(), DetectRequest{})
	var verr *alert.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Detect() = %v, want *ValidationError", err)
	}
}

func TestGateway_DetectAndAlertFallbackCreatesAlert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, dir, "fire_cam1.jpg")

	g, store := newGateway(t, "", dir)

	out, err := g.DetectAndAlert(context.Background(), DetectRequest{Filename: "fire_cam1.jpg"})
	if err != nil {
		t.Fatalf("DetectAndAlert() = %v", err)
	}
	if out.Alert == nil {
		t.Fatal("Alert = nil, want created alert for worthy detection")
	}
	if out.Alert.Location != "Unknown" {
		t.Errorf("Location = %q, want %q", out.Alert.Location, "Unknown")
	}
	if out.Alert.Message != "Detection: fire in fire_cam1.jpg" {
		t.Errorf("Message = %q", out.Alert.Message)
	}

	locals, _ := store.List(context.Background())
	if len(locals) != 1 {
		t.Errorf("local store has %d alerts, want 1", len(locals))
	}
}

func TestGateway_DetectAndAlertUnworthySkipsAlert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, dir, "frame_0042.jpg")

	g, store := newGateway(t, "", dir)

	out, err := g.DetectAndAlert(context.Background(), DetectRequest{Filename: "frame_0042.jpg"})
	if err != nil {
		t.Fatalf("DetectAndAlert() = %v", err)
	}
	if out.Alert != nil {
		t.Errorf("Alert = %+v, want nil for {none 0.30} below the 0.50 floor", out.Alert)
	}

	locals, _ := store.List(context.Background())
	if len(locals) != 0 {
		t.Errorf("local store has %d alerts, want 0", len(locals))
	}
}

func TestGateway_UploadDetectDegradedOutcome(t *testing.T) {
	t.Parallel()

	srv := failingStub(t)
	defer srv.Close()

	g, _ := newGateway(t, srv.URL, t.TempDir())

	out, err := g.UploadDetect(context.Background(), "snapshot.jpg", []byte("img"))
	if err != nil {
		t.Fatalf("UploadDetect() = %v, uploads must never hard-fail", err)
	}
	if out.Confidence != 0.15 || out.Severity != alert.SeverityLow || out.Type != "unknown" {
		t.Errorf("degraded outcome = %+v, want {0.15 low unknown}", out)
	}
	if out.Message != "Image uploaded: snapshot.jpg (awaiting processing)" {
		t.Errorf("Message = %q", out.Message)
	}
	if out.Alert != nil {
		t.Error("degraded upload must not create an alert")
	}
}

func TestGateway_UploadDetectPrimary(t *testing.T) {
	t.Parallel()

	srv := primaryStub(t)
	defer srv.Close()

	g, _ := newGateway(t, srv.URL, t.TempDir())

	out, err := g.UploadDetect(context.Background(), "snapshot.jpg", []byte("img"))
	if err != nil {
		t.Fatalf("UploadDetect() = %v", err)
	}
	if out.Confidence != 0.88 || out.Type != "fire" {
		t.Errorf("outcome = %+v, want primary's verdict", out)
	}
}
