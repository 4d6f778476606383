package session

import (
	"context"
	"log/slog"
	"time"
)

const evictionInterval = time.Minute

// StartEvictionWorker runs a background goroutine that periodically removes
// sessions idle for longer than the configured TTL.
func StartEvictionWorker(ctx context.Context, r *Registry) {
	if r.cfg.IdleTTL <= 0 {
		slog.Info("Session eviction disabled")
		return
	}
	ticker := time.NewTicker(evictionInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session eviction worker started", "interval", evictionInterval, "ttl", r.cfg.IdleTTL)

		for {
			select {
			case <-ticker.C:
				r.EvictIdle()
			case <-ctx.Done():
				slog.Info("Session eviction worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// EvictIdle removes sessions with no activity within the TTL. Activity is any
// inbound message, workflow run or snapshot. Sessions currently running a
// workflow are skipped; an idle session with an open channel is evicted and
// OnEvict closes the channel.
func (r *Registry) EvictIdle() int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var evicted []string
	for id, e := range r.entries {
		if !e.idleSince().Before(cutoff) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		r.removeLocked(id)
		e.mu.Unlock()
		evicted = append(evicted, id)
	}
	r.mu.Unlock()

	if len(evicted) == 0 {
		return 0
	}
	slog.Info("Evicted idle sessions", "count", len(evicted))
	r.notifyEvicted(evicted...)
	return len(evicted)
}
