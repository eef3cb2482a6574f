package alert_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/firewatch/internal/alert"
	"github.com/linnemanlabs/firewatch/internal/alert/memstore"
)

type fakeNotifier struct {
	mu         sync.Mutex
	willNotify bool
	dispatched []*alert.Alert
	actions    []string
}

func (f *fakeNotifier) WillNotify(alert.Severity) bool { return f.willNotify }

func (f *fakeNotifier) Dispatch(_ context.Context, a *alert.Alert) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, a)
	return f.actions
}

type fakePublisher struct {
	mu      sync.Mutex
	created []*alert.Alert
	updated []*alert.Alert
	cleared int
}

func (f *fakePublisher) AlertCreated(a *alert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, a)
}

func (f *fakePublisher) AlertUpdated(a *alert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, a)
}

func (f *fakePublisher) AlertsCleared() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func newTestService(t *testing.T, notifier *fakeNotifier, publisher *fakePublisher) *alert.Service {
	t.Helper()
	m := alert.NewMetrics(prometheus.NewRegistry())
	var n alert.Notifier
	if notifier != nil {
		n = notifier
	}
	var p alert.Publisher
	if publisher != nil {
		p = publisher
	}
	return alert.NewService(memstore.New(), n, p, m, nil)
}

func TestServiceCreate_SetsNotificationSentFromPolicy(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{willNotify: true, actions: []string{"SMS Sent to Emergency Contacts"}}
	svc := newTestService(t, notifier, nil)

	a, actions, err := svc.Create(context.Background(), alert.Draft{
		Severity: alert.SeverityHigh,
		Message:  "Detection: fire in cam1.jpg",
		Type:     "fire",
	})
	if err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	if !a.NotificationSent {
		t.Error("NotificationSent = false, want true when policy selects channels")
	}

	want := []string{"Web Dashboard Updated", "SMS Sent to Emergency Contacts"}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, actions[i], want[i])
		}
	}
	if len(notifier.dispatched) != 1 {
		t.Errorf("dispatched = %d alerts, want 1", len(notifier.dispatched))
	}
}

func TestServiceCreate_NoChannelsSelected(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{willNotify: false}
	svc := newTestService(t, notifier, nil)

	a, actions, err := svc.Create(context.Background(), alert.Draft{
		Severity: alert.SeverityLow,
		Message:  "faint haze",
	})
	if err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	if a.NotificationSent {
		t.Error("NotificationSent = true, want false for low severity")
	}
	if len(actions) != 1 || actions[0] != "Web Dashboard Updated" {
		t.Errorf("actions = %v, want only the dashboard action", actions)
	}
}

func TestServiceCreate_InvalidDraft(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)

	_, _, err := svc.Create(context.Background(), alert.Draft{})
	var verr *alert.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create() = %v, want *ValidationError", err)
	}
}

func TestServiceCreate_PublishesEvent(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	svc := newTestService(t, nil, publisher)

	if _, _, err := svc.Create(context.Background(), alert.Draft{Message: "m"}); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}
	if len(publisher.created) != 1 {
		t.Errorf("created events = %d, want 1", len(publisher.created))
	}
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	svc := newTestService(t, nil, publisher)
	ctx := context.Background()

	a, _, err := svc.Create(ctx, alert.Draft{Message: "m", Severity: alert.SeverityMedium})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	acked, err := svc.Acknowledge(ctx, a.ID)
	if err != nil {
		t.Fatalf("Acknowledge() = %v, want nil", err)
	}
	if !acked.Acknowledged || acked.AcknowledgedAt == nil {
		t.Error("acknowledge did not set acknowledged state")
	}

	// Second acknowledge is rejected.
	if _, err := svc.Acknowledge(ctx, a.ID); !errors.Is(err, alert.ErrAlreadyAcknowledged) {
		t.Errorf("second Acknowledge() = %v, want ErrAlreadyAcknowledged", err)
	}

	resolved, err := svc.Resolve(ctx, a.ID)
	if err != nil {
		t.Fatalf("Resolve() = %v, want nil", err)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolve did not set resolved_at")
	}

	// Resolved is terminal.
	if _, err := svc.Resolve(ctx, a.ID); !errors.Is(err, alert.ErrAlreadyResolved) {
		t.Errorf("second Resolve() = %v, want ErrAlreadyResolved", err)
	}
	if _, err := svc.Acknowledge(ctx, a.ID); !errors.Is(err, alert.ErrAlreadyResolved) {
		t.Errorf("Acknowledge() after resolve = %v, want ErrAlreadyResolved", err)
	}

	if len(publisher.updated) != 2 {
		t.Errorf("updated events = %d, want 2", len(publisher.updated))
	}
}

func TestServiceResolve_ActiveAlertAcknowledgesToo(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	a, _, err := svc.Create(ctx, alert.Draft{Message: "m"})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	resolved, err := svc.Resolve(ctx, a.ID)
	if err != nil {
		t.Fatalf("Resolve() = %v, want nil", err)
	}
	if !resolved.Acknowledged || resolved.AcknowledgedAt == nil {
		t.Error("resolving an active alert must acknowledge it in the same transition")
	}
}

func TestServiceClear(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	svc := newTestService(t, nil, publisher)
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, alert.Draft{Message: "m"}); err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear() = %v, want nil", err)
	}

	alerts, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("List() after clear = %d alerts, want 0", len(alerts))
	}
	if publisher.cleared != 1 {
		t.Errorf("cleared events = %d, want 1", publisher.cleared)
	}
}

func TestServiceGet_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, nil)
	if _, err := svc.Get(context.Background(), 99); !errors.Is(err, alert.ErrNotFound) {
		t.Errorf("Get(99) = %v, want ErrNotFound", err)
	}
}
