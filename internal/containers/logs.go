// ABOUTME: Bounded per-container log buffer and per-project locking
// ABOUTME: Keeps the newest lines only and hands out a lock per project ID

package containers

import (
	"strings"
	"sync"
)

// logRing keeps at most size lines, dropping the oldest.
type logRing struct {
	lines []string
	start int
	size  int
}

func newLogRing(size int) *logRing {
	if size <= 0 {
		size = 500
	}
	return &logRing{size: size}
}

func (r *logRing) append(lines ...string) {
	for _, l := range lines {
		if len(r.lines) < r.size {
			r.lines = append(r.lines, l)
			continue
		}
		r.lines[r.start] = l
		r.start = (r.start + 1) % r.size
	}
}

// tail returns the last n lines joined by newlines. n <= 0 returns everything.
func (r *logRing) tail(n int) string {
	count := len(r.lines)
	if n <= 0 || n > count {
		n = count
	}
	out := make([]string, 0, n)
	for i := count - n; i < count; i++ {
		out = append(out, r.lines[(r.start+i)%count])
	}
	return strings.Join(out, "\n")
}

// projectLocks serializes work per project. Entries are dropped when unused.
type projectLocks struct {
	mu    sync.Mutex
	locks map[string]*projectLock
}

type projectLock struct {
	sync.Mutex
	refs int
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[string]*projectLock)}
}

// lock blocks until the project's lock is held and returns the unlock func.
func (p *projectLocks) lock(projectID string) func() {
	p.mu.Lock()
	l, ok := p.locks[projectID]
	if !ok {
		l = &projectLock{}
		p.locks[projectID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, projectID)
		}
		p.mu.Unlock()
	}
}
