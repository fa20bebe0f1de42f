// Package countdown computes the time left until the service launch.
package countdown

import (
	"context"
	"fmt"
	"time"
)

// Remaining is the whole-unit time left before a target instant.
type Remaining struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	IsLive  bool `json:"isLive"`
}

// Compute returns the time left from now until target. A non-positive
// difference reports all zeros and IsLive.
func Compute(target, now time.Time) Remaining {
	diff := target.Sub(now)
	if diff <= 0 {
		return Remaining{IsLive: true}
	}
	total := int64(diff / time.Second)
	return Remaining{
		Days:    int(total / 86400),
		Hours:   int(total % 86400 / 3600),
		Minutes: int(total % 3600 / 60),
		Seconds: int(total % 60),
	}
}

// String renders the dashboard badge, e.g. "3d 4h 12m".
func (r Remaining) String() string {
	if r.IsLive {
		return "live"
	}
	return fmt.Sprintf("%dd %dh %dm", r.Days, r.Hours, r.Minutes)
}

// Watch emits a fresh Remaining every interval until ctx is done. The first
// value is sent after the first tick. The channel is closed on return.
func Watch(ctx context.Context, target time.Time, interval time.Duration, now func() time.Time) <-chan Remaining {
	if interval <= 0 {
		interval = time.Second
	}
	if now == nil {
		now = time.Now
	}
	out := make(chan Remaining, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r := Compute(target, now())
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
