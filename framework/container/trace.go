package container

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// DefaultMaxDepth bounds how deep a single resolution may recurse through
// arguments, delegates and provider registration.
const DefaultMaxDepth = 64

type frameKind int

const (
	frameGet frameKind = iota
	frameShared
	frameProvider
)

// trace is an immutable linked list of the resolutions in progress on one
// call stack. Each nested resolution pushes a frame; frames are never
// mutated, so sibling branches can share a parent.
type trace struct {
	parent *trace
	owner  any
	id     string
	kind   frameKind
	depth  int
	max    int
}

// push returns a child trace for resolving id on owner, or a
// CyclicResolutionError if the depth limit is exceeded.
func (t *trace) push(owner any, id string, kind frameKind, max int) (*trace, error) {
	depth := 1
	if t != nil {
		depth = t.depth + 1
		max = t.max
	}
	if max <= 0 {
		max = DefaultMaxDepth
	}
	next := &trace{parent: t, owner: owner, id: id, kind: kind, depth: depth, max: max}
	if depth > max {
		return nil, CyclicResolutionError{ID: id, Path: next.path()}
	}
	return next, nil
}

// contains reports whether a frame for (owner, id, kind) is in progress.
func (t *trace) contains(owner any, id string, kind frameKind) bool {
	for f := t; f != nil; f = f.parent {
		if f.owner == owner && f.id == id && f.kind == kind {
			return true
		}
	}
	return false
}

// path lists the identifiers being resolved, outermost first, collapsing
// consecutive frames for the same identifier.
func (t *trace) path() []string {
	var rev []string
	for f := t; f != nil; f = f.parent {
		if n := len(rev); n > 0 && rev[n-1] == f.id {
			continue
		}
		rev = append(rev, f.id)
	}
	out := make([]string, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// tracedGetter is implemented by the containers in this package so that a
// resolution passing through several of them keeps a single trace.
type tracedGetter interface {
	getTraced(id string, t *trace) (any, error)
}

// getVia resolves id on r, continuing t when r understands traces.
func getVia(r Interface, id string, t *trace) (any, error) {
	if tg, ok := r.(tracedGetter); ok {
		return tg.getTraced(id, t)
	}
	return r.Get(id)
}

// ── Goroutine resolutions ─────────────────────────────────────────────────────

// running maps a goroutine to the resolution it is running a factory,
// constructor or extender for. A Get made without a trace (on a captured
// container rather than the view handed to the factory) continues it, so
// cycles through captured containers still fail instead of recursing or
// blocking on a build lock.
var running struct {
	n  atomic.Int64
	mu sync.Mutex
	m  map[uint64]*trace
}

// during runs fn with t recorded as the calling goroutine's resolution.
func during(t *trace, fn func()) {
	gid := goroutineID()

	running.mu.Lock()
	if running.m == nil {
		running.m = make(map[uint64]*trace)
	}
	prev, had := running.m[gid]
	running.m[gid] = t
	running.mu.Unlock()
	running.n.Add(1)

	defer func() {
		running.n.Add(-1)
		running.mu.Lock()
		if had {
			running.m[gid] = prev
		} else {
			delete(running.m, gid)
		}
		running.mu.Unlock()
	}()
	fn()
}

// resume returns t, or the calling goroutine's resolution in progress when
// t is nil.
func resume(t *trace) *trace {
	if t != nil || running.n.Load() == 0 {
		return t
	}
	gid := goroutineID()
	running.mu.Lock()
	defer running.mu.Unlock()
	return running.m[gid]
}

// goroutineID parses the calling goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
