package services

import "sync"

// LifetimeLatch turns a stream of confirmed counts into one signal per crossing
// of the lifetime target. It re-arms when the count drops back below the target.
type LifetimeLatch struct {
	mu    sync.Mutex
	fired bool
}

func (l *LifetimeLatch) Observe(confirmed int, target int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if target <= 0 || confirmed < target {
		l.fired = false
		return false
	}
	if l.fired {
		return false
	}
	l.fired = true
	return true
}
