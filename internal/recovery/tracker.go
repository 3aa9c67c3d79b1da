// Package recovery records alert recoveries reported by producers and answers
// whether a pending alert has recovered since it was last seen.
package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/netspec/alertbatch/internal/types"
	"github.com/rs/zerolog"
)

// Store records recoveries and answers recovery checks.
type Store interface {
	MarkRecovered(ctx context.Context, key string, at time.Time) error
	IsRecovered(ctx context.Context, alert types.Alert) (bool, error)
}

// Tracker keeps the latest recovery time per alert key in memory.
type Tracker struct {
	log        zerolog.Logger
	window     time.Duration // how long a recovery is remembered
	mu         sync.Mutex
	recoveries map[string]time.Time
	now        func() time.Time
}

// NewTracker creates an in-memory tracker that forgets recoveries older than window.
func NewTracker(log zerolog.Logger, window time.Duration) *Tracker {
	return &Tracker{
		log:        log.With().Str("component", "recovery-tracker").Logger(),
		window:     window,
		recoveries: make(map[string]time.Time),
		now:        time.Now,
	}
}

// MarkRecovered records that the alert identified by key recovered at at.
// A zero at means now. Older recoveries never overwrite newer ones.
func (t *Tracker) MarkRecovered(_ context.Context, key string, at time.Time) error {
	if at.IsZero() {
		at = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.recoveries[key]; ok && prev.After(at) {
		return nil
	}
	t.recoveries[key] = at
	t.log.Debug().Str("alert_key", key).Time("recovered_at", at).Msg("recovery recorded")
	return nil
}

// IsRecovered reports whether a recovery was recorded for the alert at or
// after the alert was last seen.
func (t *Tracker) IsRecovered(_ context.Context, alert types.Alert) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.recoveries[alert.Key()]
	if !ok {
		return false, nil
	}
	return !at.Before(alert.LastSeen), nil
}

// Cleanup removes recoveries older than the window. Call periodically.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.window)
	for key, at := range t.recoveries {
		if at.Before(cutoff) {
			delete(t.recoveries, key)
		}
	}
}

// Run calls Cleanup every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}
