package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sol1corejz/voidshop/internal/logger"
	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/notify"
	"go.uber.org/zap"
)

const WatchInterval = 15 * time.Second

// Watcher polls the request list and surfaces admin resolutions. The
// client only ever observes approved/rejected, it never causes them.
type Watcher struct {
	flow     *Flow
	interval time.Duration

	mu       sync.Mutex
	statuses map[string]string
	stop     chan struct{}
	stopOnce sync.Once
}

func NewWatcher(flow *Flow, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = WatchInterval
	}
	return &Watcher{
		flow:     flow,
		interval: interval,
		statuses: make(map[string]string),
		stop:     make(chan struct{}),
	}
}

func (w *Watcher) Start() {
	go w.run()
	logger.Log.Info("balance request watcher started")
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	requests, err := w.flow.backend.GetBalanceRequests(ctx, w.flow.tgID)
	if err != nil {
		logger.Log.Warn("watcher poll failed", zap.Error(err))
		return
	}

	w.Observe(requests)

	sortRequests(requests)
	w.flow.mu.Lock()
	if !w.flow.closed {
		w.flow.requests = requests
		if w.flow.payment != nil {
			for _, r := range requests {
				if r.OrderID == w.flow.payment.OrderID {
					w.flow.payment.Status = r.Status
					break
				}
			}
		}
	}
	w.flow.mu.Unlock()
}

// Observe diffs the fetched requests against the last seen statuses and
// pushes one notification per resolution.
func (w *Watcher) Observe(requests []models.BalanceRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range requests {
		previous, seen := w.statuses[r.OrderID]
		w.statuses[r.OrderID] = r.Status
		if !seen || previous == r.Status {
			continue
		}

		switch r.Status {
		case models.APPROVED:
			w.flow.notifier.Push(fmt.Sprintf("Заявка №%s одобрена, средства зачислены", r.OrderID), notify.TypeSuccess)
		case models.REJECTED:
			w.flow.notifier.Push(fmt.Sprintf("Заявка №%s отклонена", r.OrderID), notify.TypeError)
		}
	}
}
