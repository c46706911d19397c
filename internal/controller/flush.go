package controller

import (
	"sync"
	"time"
)

// pendingFlush is a single shared, resettable timer. Every Schedule pushes the
// deadline back; Cancel drops the pending run, even one whose timer already fired
// but has not reached fire yet.
type pendingFlush struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
	fire  func()
}

func newPendingFlush(delay time.Duration, fire func()) *pendingFlush {
	return &pendingFlush{delay: delay, fire: fire}
}

func (p *pendingFlush) Schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		current := gen == p.gen
		if current {
			p.timer = nil
		}
		p.mu.Unlock()
		if current {
			p.fire()
		}
	})
}

// Cancel reports whether a run was pending.
func (p *pendingFlush) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.timer == nil {
		return false
	}
	p.timer.Stop()
	p.timer = nil
	return true
}

func (p *pendingFlush) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}
