// Package promo decides when promotional UI (badges, popups) should be shown
// again to the same visitor.
package promo

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Feature names a promotional element and how often it may be shown.
type Feature struct {
	Name string
	// Window is the quiet period after a showing. Zero means once per
	// subject (e.g. per session) until Reset or the session TTL expires.
	Window time.Duration
}

// DefaultSessionTTL bounds how long once-per-session records are kept.
const DefaultSessionTTL = 24 * time.Hour

type key struct {
	feature string
	subject string
}

// Tracker records when features were last shown to each subject.
// It is safe for concurrent use.
type Tracker struct {
	clock      Clock
	sessionTTL time.Duration
	windows    map[string]time.Duration

	mu    sync.Mutex
	shown map[key]time.Time
}

// NewTracker creates a Tracker for the given features. Unknown feature names
// behave like a zero window.
func NewTracker(clock Clock, features ...Feature) *Tracker {
	if clock == nil {
		clock = SystemClock
	}
	windows := make(map[string]time.Duration, len(features))
	for _, f := range features {
		windows[f.Name] = f.Window
	}
	return &Tracker{
		clock:      clock,
		sessionTTL: DefaultSessionTTL,
		windows:    windows,
		shown:      make(map[key]time.Time),
	}
}

// ShouldShow reports whether feature should be shown to subject now. A
// true result records the showing.
func (t *Tracker) ShouldShow(feature, subject string) bool {
	now := t.clock.Now()
	k := key{feature: feature, subject: subject}

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.shown[k]; ok && !t.expired(feature, last, now) {
		return false
	}
	t.shown[k] = now
	return true
}

// Reset forgets that feature was shown to subject.
func (t *Tracker) Reset(feature, subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.shown, key{feature: feature, subject: subject})
}

// Sweep drops expired records and returns how many were removed.
func (t *Tracker) Sweep() int {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, last := range t.shown {
		if t.expired(k.feature, last, now) {
			delete(t.shown, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.shown)
}

// StartSweeper runs Sweep every interval until ctx is cancelled. A
// non-positive interval disables sweeping.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}

// expired reports whether a showing at last no longer suppresses feature.
// The caller must hold t.mu.
func (t *Tracker) expired(feature string, last, now time.Time) bool {
	window := t.windows[feature]
	if window <= 0 {
		window = t.sessionTTL
	}
	return now.Sub(last) >= window
}
