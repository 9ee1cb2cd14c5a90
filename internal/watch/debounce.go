package watch

import (
	"sync"
	"time"
)

type pending struct {
	timer *time.Timer
	seq   uint64
}

// debouncer calls fire for a path once no schedule call for it has arrived
// for delay. Each schedule supersedes the previous timer for that path.
type debouncer struct {
	delay time.Duration
	fire  func(path string)

	mu      sync.Mutex
	timers  map[string]pending
	seq     uint64
	closed  bool
	running sync.WaitGroup
}

func newDebouncer(delay time.Duration, fire func(path string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]pending)}
}

func (d *debouncer) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if p, ok := d.timers[path]; ok {
		p.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timers[path] = pending{
		timer: time.AfterFunc(d.delay, func() { d.expire(path, seq) }),
		seq:   seq,
	}
}

// expire runs fire for path if seq is still the latest timer for it. A timer
// that fired while being superseded finds a newer seq and does nothing.
func (d *debouncer) expire(path string, seq uint64) {
	d.mu.Lock()
	p, ok := d.timers[path]
	if !ok || p.seq != seq || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	d.fire(path)
}

// close drops pending timers and waits for running fire calls.
func (d *debouncer) close() {
	d.mu.Lock()
	d.closed = true
	for _, p := range d.timers {
		p.timer.Stop()
	}
	clear(d.timers)
	d.mu.Unlock()
	d.running.Wait()
}
