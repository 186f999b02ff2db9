package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultLifetime = 5 * time.Second

const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeError   = "error"
)

type Notification struct {
	ID      string
	Message string
	Type    string
}

// Queue holds transient toast notifications. Every pushed notification is
// auto-dismissed after the queue lifetime unless dismissed earlier.
// Dismissing an unknown or already-dismissed id is a no-op.
type Queue struct {
	mu       sync.Mutex
	lifetime time.Duration
	active   []Notification
	timers   map[string]*time.Timer
	onChange func([]Notification)
	closed   bool
}

type Option func(*Queue)

// WithLifetime overrides the auto-dismiss window. Used by tests.
func WithLifetime(d time.Duration) Option {
	return func(q *Queue) { q.lifetime = d }
}

// WithListener registers a callback invoked with the active set after
// every change. The callback runs outside the queue lock.
func WithListener(fn func([]Notification)) Option {
	return func(q *Queue) { q.onChange = fn }
}

func New(opts ...Option) *Queue {
	q := &Queue{
		lifetime: DefaultLifetime,
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Push(message string, notifType string) string {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ""
	}

	id := uuid.NewString()
	q.active = append(q.active, Notification{ID: id, Message: message, Type: notifType})
	q.timers[id] = time.AfterFunc(q.lifetime, func() {
		q.Dismiss(id)
	})
	snapshot := q.snapshot()
	q.mu.Unlock()

	q.notify(snapshot)
	return id
}

func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	timer, ok := q.timers[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	timer.Stop()
	delete(q.timers, id)
	for i, n := range q.active {
		if n.ID == id {
			q.active = append(q.active[:i], q.active[i+1:]...)
			break
		}
	}
	snapshot := q.snapshot()
	q.mu.Unlock()

	q.notify(snapshot)
}

// Active returns the live notifications in arrival order.
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

// Close cancels all expiry timers and drops pending notifications.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.active = nil
}

func (q *Queue) snapshot() []Notification {
	out := make([]Notification, len(q.active))
	copy(out, q.active)
	return out
}

func (q *Queue) notify(snapshot []Notification) {
	if q.onChange != nil {
		q.onChange(snapshot)
	}
}
