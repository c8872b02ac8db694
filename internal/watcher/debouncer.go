package watcher

import (
	"sync"
	"time"
)

// Op is the kind of change seen for a document
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Event is a settled change to one document path
type Event struct {
	Path string
	Op   Op
	At   time.Time
}

// merge folds a newer op into a pending one. Remove always wins; a write to
// a freshly created file stays a create.
func merge(pending, next Op) Op {
	switch {
	case next == OpRemove:
		return OpRemove
	case pending == OpCreate && next == OpWrite:
		return OpCreate
	default:
		return next
	}
}

// Debouncer holds back events until a path has been quiet for the delay
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	stopped bool

	out chan Event
}

type pending struct {
	event Event
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pending),
		out:     make(chan Event, 64),
	}
}

// Events returns the channel of settled events. It is closed by Stop.
func (d *Debouncer) Events() <-chan Event {
	return d.out
}

// Add records a change and restarts the path's quiet period
func (d *Debouncer) Add(path string, op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
		p.event.Op = merge(p.event.Op, op)
		p.event.At = now
		p.timer = time.AfterFunc(d.delay, func() { d.fire(path) })
		return
	}

	d.pending[path] = &pending{
		event: Event{Path: path, Op: op, At: now},
		timer: time.AfterFunc(d.delay, func() { d.fire(path) }),
	}
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[path]
	if !ok || d.stopped {
		return
	}
	delete(d.pending, path)

	// Must not block while holding the lock
	select {
	case d.out <- p.event:
	default:
	}
}

// Flush emits every pending event now
func (d *Debouncer) Flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for path, p := range d.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	d.mu.Unlock()

	for _, path := range paths {
		d.fire(path)
	}
}

// Pending returns the number of paths still in their quiet period
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop drops pending events and closes the output channel
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = nil
	close(d.out)
}
