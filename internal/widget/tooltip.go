package widget

import (
	"sync"
	"time"
)

// TooltipText is the hover prompt next to the bubble.
const TooltipText = "Are you a Lawyer or Legal Assistant\nwith a question?"

// DefaultTooltipDelay gives the pointer time to move from the bubble onto the tooltip.
const DefaultTooltipDelay = 150 * time.Millisecond

// Tooltip tracks the hover tooltip. Leaving the bubble hides it after a
// delay; entering the tooltip in that window keeps it up.
type Tooltip struct {
	mu      sync.Mutex
	visible bool
	delay   time.Duration
	timer   *time.Timer
}

// NewTooltip uses DefaultTooltipDelay when delay is not positive.
func NewTooltip(delay time.Duration) *Tooltip {
	if delay <= 0 {
		delay = DefaultTooltipDelay
	}
	return &Tooltip{delay: delay}
}

// BubbleEnter shows the tooltip unless the chat window is open.
func (t *Tooltip) BubbleEnter(chatOpen bool) {
	if chatOpen {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.visible = true
}

// BubbleLeave schedules the hide.
func (t *Tooltip) BubbleLeave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	var timer *time.Timer
	timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// A newer enter or leave replaced this timer.
		if t.timer != timer {
			return
		}
		t.visible = false
		t.timer = nil
	})
	t.timer = timer
}

// TooltipEnter cancels a pending hide.
func (t *Tooltip) TooltipEnter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// TooltipLeave hides immediately.
func (t *Tooltip) TooltipLeave() {
	t.Hide()
}

// Hide cancels any pending hide and hides now.
func (t *Tooltip) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.visible = false
}

// Visible reports whether the tooltip is showing.
func (t *Tooltip) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Close stops the pending timer on teardown.
func (t *Tooltip) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Tooltip) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
