package fetch

import (
	"context"
	"sync"
	"time"
)

// Source identifies one rate-limited upstream.
type Source string

const (
	SourceAniList Source = "anilist"
	SourceJikan   Source = "jikan"
	SourceScrape  Source = "scrape"
)

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiter serializes calls per source to no more than one per configured
// minimum interval. Waits for one source never block calls to another: the
// lock is held only while reserving the next slot, not while sleeping.
type Limiter struct {
	mu        sync.Mutex
	intervals map[Source]time.Duration
	next      map[Source]time.Time
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
}

// NewLimiter builds a limiter from per-source minimum intervals. Sources
// without an entry are not throttled.
func NewLimiter(intervals map[Source]time.Duration) *Limiter {
	copied := make(map[Source]time.Duration, len(intervals))
	for source, interval := range intervals {
		copied[source] = interval
	}
	return &Limiter{
		intervals: copied,
		next:      make(map[Source]time.Time),
		now:       time.Now,
		sleep:     SleepWithContext,
	}
}

// Wait blocks until the caller may issue the next call for source.
func (l *Limiter) Wait(ctx context.Context, source Source) error {
	l.mu.Lock()
	interval := l.intervals[source]
	now := l.now()
	slot := now
	if scheduled, ok := l.next[source]; ok && scheduled.After(now) {
		slot = scheduled
	}
	l.next[source] = slot.Add(interval)
	l.mu.Unlock()

	return l.sleep(ctx, slot.Sub(now))
}
