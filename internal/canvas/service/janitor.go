package service

import (
	"context"
	"errors"
	"time"

	"giftletter/pkg/logger"
	"giftletter/pkg/metrics"
)

// Janitor evicts idle sessions every tick until ctx is done.
func (s *GiftService) Janitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ctx); n > 0 {
				logger.Sugar.Infof("Evicted %d idle canvas sessions", n)
			}
		}
	}
}

// EvictIdle flushes and drops sessions unused for longer than the idle TTL.
// A session whose flush fails, or that was touched meanwhile, stays.
func (s *GiftService) EvictIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.opts.IdleTTL)

	type candidate struct {
		id   string
		sess *session
	}
	var idle []candidate
	s.mu.Lock()
	for id, sess := range s.sessions {
		select {
		case <-sess.ready:
		default:
			continue
		}
		if sess.err != nil {
			continue
		}
		sess.mu.Lock()
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, candidate{id, sess})
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	evicted := 0
	for _, c := range idle {
		if err := c.sess.bridge.Flush(ctx); err != nil {
			logger.Sugar.Warnf("Keeping session %s, flush failed: %v", c.id, err)
			continue
		}
		s.mu.Lock()
		c.sess.mu.Lock()
		if s.sessions[c.id] == c.sess && c.sess.lastUsed.Before(cutoff) && c.sess.bridge.Clean() {
			c.sess.closed = true
			delete(s.sessions, c.id)
			c.sess.bridge.Close()
			evicted++
		}
		c.sess.mu.Unlock()
		s.mu.Unlock()
	}
	if evicted > 0 {
		s.mu.Lock()
		n := len(s.sessions)
		s.mu.Unlock()
		metrics.SetActiveSessions(n)
	}
	return evicted
}

// Shutdown flushes every live session and closes its bridge.
func (s *GiftService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make(map[string]*session, len(s.sessions))
	for id, sess := range s.sessions {
		sessions[id] = sess
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	metrics.SetActiveSessions(0)

	var errs []error
	for id, sess := range sessions {
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		if sess.err != nil {
			continue
		}
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
		if err := sess.bridge.Flush(ctx); err != nil {
			logger.Sugar.Errorf("Failed to flush gift %s on shutdown: %v", id, err)
			errs = append(errs, err)
		}
		sess.bridge.Close()
	}
	return errors.Join(errs...)
}
