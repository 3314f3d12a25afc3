package upload

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token bucket per gift.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	rps := p.rps
	if rps <= 0 {
		rps = 2
	}
	burst := p.burst
	if burst <= 0 {
		burst = 5
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *limiterPool) forget(key string) {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
}
