package push

import (
	"sync"
	"time"
)

// SlidingWindowLimiter allows at most limit connection attempts per key within
// window. In-memory and per instance.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*slidingWindow),
	}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sw := l.buckets[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.buckets[key] = sw
	}
	sw.cleanup(now.Add(-l.window))
	if len(sw.timestamps) >= l.limit {
		return false
	}
	sw.timestamps = append(sw.timestamps, now)
	return true
}

// Prune drops keys with no attempts inside the window.
func (l *SlidingWindowLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for key, sw := range l.buckets {
		sw.cleanup(cutoff)
		if len(sw.timestamps) == 0 {
			delete(l.buckets, key)
		}
	}
}

func (sw *slidingWindow) cleanup(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
