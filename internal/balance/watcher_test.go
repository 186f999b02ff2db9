package balance

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/notify"
)

func TestObserveNotifiesOnlyOnTransitions(t *testing.T) {
	t.Parallel()
	f, queue := newTestFlow(t, &fakeBackend{})
	w := NewWatcher(f, time.Hour)

	// First sight of a request, even a resolved one, is not a transition.
	w.Observe([]models.BalanceRequest{
		{OrderID: "VB1", Status: models.WAITING_ADMIN},
		{OrderID: "VB2", Status: models.APPROVED},
	})
	if got := len(queue.Active()); got != 0 {
		t.Fatalf("notifications after first sight: got %d, want 0", got)
	}

	w.Observe([]models.BalanceRequest{
		{OrderID: "VB1", Status: models.APPROVED},
		{OrderID: "VB2", Status: models.APPROVED},
	})
	active := queue.Active()
	if len(active) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(active))
	}
	if active[0].Type != notify.TypeSuccess || !strings.Contains(active[0].Message, "VB1") {
		t.Errorf("notification: got %+v", active[0])
	}

	// Repeating the same statuses stays quiet.
	w.Observe([]models.BalanceRequest{
		{OrderID: "VB1", Status: models.APPROVED},
	})
	if got := len(queue.Active()); got != 1 {
		t.Errorf("notifications after repeat: got %d, want 1", got)
	}
}

func TestObserveNotifiesRejection(t *testing.T) {
	t.Parallel()
	f, queue := newTestFlow(t, &fakeBackend{})
	w := NewWatcher(f, time.Hour)

	w.Observe([]models.BalanceRequest{{OrderID: "VB9", Status: models.WAITING_ADMIN}})
	w.Observe([]models.BalanceRequest{{OrderID: "VB9", Status: models.REJECTED}})

	active := queue.Active()
	if len(active) != 1 || active[0].Type != notify.TypeError {
		t.Fatalf("notifications: got %+v, want one error toast", active)
	}
}

func TestWatcherPollUpdatesFlowState(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	status := models.WAITING_ADMIN

	backend := &fakeBackend{
		requestsFn: func(ctx context.Context, tgID int64) ([]models.BalanceRequest, error) {
			mu.Lock()
			defer mu.Unlock()
			return []models.BalanceRequest{{OrderID: "VB7", Status: status, CreatedAt: time.Now()}}, nil
		},
	}
	f, _ := newTestFlow(t, backend)
	if err := f.OpenRequest("VB7"); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(f, 5*time.Millisecond)
	w.Start()
	defer w.Stop()

	mu.Lock()
	status = models.APPROVED
	mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for {
		payment, ok := f.Payment()
		if ok && payment.Status == models.APPROVED {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("payment status never updated: %+v", payment)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()
	f, _ := newTestFlow(t, &fakeBackend{})
	w := NewWatcher(f, time.Hour)
	w.Start()
	w.Stop()
	w.Stop()
}
