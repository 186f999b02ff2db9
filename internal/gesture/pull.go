package gesture

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	DefaultThreshold = 80.0
	dampening        = 0.4
	maxOvershoot     = 1.5
	topSlack         = 5.0
	scrollCancel     = 10.0
)

type state int

const (
	stateIdle state = iota
	stateTracking
	stateRefreshing
)

// Controller recognizes a downward pull gesture at the top of a scrollable
// view and fires the bound refresh callback at most once per gesture. The
// threshold compares raw drag displacement; the displayed distance is
// dampened and capped for visual feedback.
type Controller struct {
	mu sync.Mutex

	threshold     float64
	settleDelay   time.Duration
	resetDuration time.Duration
	onRefresh     func(context.Context) error

	st       state
	startY   float64
	currentY float64
	dragging bool

	distance  float64
	animating bool
	animFrom  float64
	animStart time.Time

	timers []*time.Timer
	cancel context.CancelFunc
	ctx    context.Context
	closed bool
}

type Option func(*Controller)

func WithThreshold(threshold float64) Option {
	return func(c *Controller) { c.threshold = threshold }
}

// WithDelays overrides the post-refresh settle delay (default 800ms) and
// the release animation duration (default 400ms). Used by tests.
func WithDelays(settle, reset time.Duration) Option {
	return func(c *Controller) {
		c.settleDelay = settle
		c.resetDuration = reset
	}
}

func New(onRefresh func(context.Context) error, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		threshold:     DefaultThreshold,
		settleDelay:   800 * time.Millisecond,
		resetDuration: 400 * time.Millisecond,
		onRefresh:     onRefresh,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TouchStart begins tracking when the view is at (or within 5px of) the
// top and no refresh is in flight.
func (c *Controller) TouchStart(y, scrollTop float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.st != stateIdle || scrollTop > topSlack {
		return
	}
	c.st = stateTracking
	c.startY = y
	c.currentY = y
	c.dragging = false
	c.animating = false
}

func (c *Controller) TouchMove(y, scrollTop float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.st != stateTracking {
		return
	}
	if scrollTop > topSlack {
		c.resetLocked()
		return
	}

	c.currentY = y
	drag := c.currentY - c.startY
	if drag <= 0 {
		c.distance = 0
		return
	}
	c.dragging = true
	c.distance = math.Min(drag*dampening, c.threshold*maxOvershoot)
}

// TouchEnd releases the gesture: at or past the threshold it fires the
// refresh callback exactly once, otherwise the displayed distance animates
// back to zero without firing.
func (c *Controller) TouchEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.st != stateTracking {
		return
	}
	if !c.dragging {
		c.resetLocked()
		return
	}

	drag := c.currentY - c.startY
	if drag >= c.threshold {
		c.st = stateRefreshing
		c.distance = c.threshold
		go c.runRefresh()
		return
	}
	c.animateResetLocked()
}

// Scroll cancels an in-progress gesture once the view moves away from the
// top.
func (c *Controller) Scroll(scrollTop float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.st != stateTracking || scrollTop <= scrollCancel {
		return
	}
	c.animateResetLocked()
}

// Distance reports the displayed pull distance, including the eased
// release animation.
func (c *Controller) Distance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.animating {
		return c.distance
	}
	progress := float64(time.Since(c.animStart)) / float64(c.resetDuration)
	if progress >= 1 {
		return 0
	}
	easeOut := 1 - math.Pow(1-progress, 3)
	return c.animFrom * (1 - easeOut)
}

func (c *Controller) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st == stateRefreshing
}

// Close resets all timers and gesture state without firing pending
// callbacks. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.resetLocked()
}

func (c *Controller) runRefresh() {
	if c.onRefresh != nil {
		c.onRefresh(c.ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	// Cosmetic delay before the indicator disappears.
	c.timers = append(c.timers, time.AfterFunc(c.settleDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.resetLocked()
	}))
}

func (c *Controller) animateResetLocked() {
	c.animFrom = c.distance
	c.animStart = time.Now()
	c.animating = true
	c.st = stateIdle
	c.dragging = false
	c.timers = append(c.timers, time.AfterFunc(c.resetDuration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.animating {
			c.animating = false
			c.distance = 0
		}
	}))
}

func (c *Controller) resetLocked() {
	c.st = stateIdle
	c.dragging = false
	c.distance = 0
	c.animating = false
	c.startY = 0
	c.currentY = 0
}
