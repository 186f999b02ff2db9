package notify

import (
	"testing"
	"time"
)

func TestPushKeepsArrivalOrder(t *testing.T) {
	t.Parallel()
	q := New()
	defer q.Close()

	q.Push("first", TypeInfo)
	q.Push("second", TypeSuccess)
	q.Push("third", TypeError)

	active := q.Active()
	if len(active) != 3 {
		t.Fatalf("active: got %d notifications, want 3", len(active))
	}
	for i, want := range []string{"first", "second", "third"} {
		if active[i].Message != want {
			t.Errorf("active[%d]: got %q, want %q", i, active[i].Message, want)
		}
	}
}

func TestAutoDismissAfterLifetime(t *testing.T) {
	t.Parallel()
	q := New(WithLifetime(20 * time.Millisecond))
	defer q.Close()

	q.Push("ephemeral", TypeInfo)
	if len(q.Active()) != 1 {
		t.Fatal("notification should be active right after push")
	}

	deadline := time.Now().Add(time.Second)
	for len(q.Active()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDismissIsIdempotent(t *testing.T) {
	t.Parallel()
	q := New()
	defer q.Close()

	id := q.Push("toast", TypeInfo)
	q.Dismiss(id)
	q.Dismiss(id)
	q.Dismiss("unknown-id")

	if len(q.Active()) != 0 {
		t.Errorf("active: got %d, want 0", len(q.Active()))
	}
}

func TestListenerSeesEveryChange(t *testing.T) {
	t.Parallel()
	var sizes []int
	q := New(WithListener(func(active []Notification) {
		sizes = append(sizes, len(active))
	}))
	defer q.Close()

	id := q.Push("one", TypeInfo)
	q.Dismiss(id)

	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 0 {
		t.Errorf("listener sizes: got %v, want [1 0]", sizes)
	}
}

func TestPushAfterCloseIsNoop(t *testing.T) {
	t.Parallel()
	q := New()
	q.Close()

	if id := q.Push("late", TypeInfo); id != "" {
		t.Errorf("push after close: got id %q, want empty", id)
	}
	if len(q.Active()) != 0 {
		t.Error("closed queue must stay empty")
	}
}
