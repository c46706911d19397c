package core

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// IDGenerator issues form_<millis> ids. When the clock has not moved past the
// last issued millisecond the next free millisecond is used instead.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *IDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return IDPrefix + strconv.FormatInt(ms, 10)
}

// Observe moves the generator past ids loaded from storage.
func (g *IDGenerator) Observe(id string) {
	ms, ok := IDMillis(id)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if ms > g.last {
		g.last = ms
	}
}

// IDMillis extracts the creation milliseconds from a generated id.
func IDMillis(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, false
	}
	ms, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
