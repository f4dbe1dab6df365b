package watcher

import (
	"sort"
	"sync"
	"time"
)

// Debouncer settles bursts of events per path.
//
// Every event for a path re-arms that path's deadline to now+window; when a
// deadline passes without another event, exactly one event of the last
// observed kind is emitted. Deletes skip the wait and also cancel anything
// pending for the path. A rename becomes an immediate delete of the source
// plus a debounced create of the destination.
//
// All deadlines are served by one goroutine and one timer armed for the
// earliest deadline, so the cost does not grow with the event rate.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEvent
	ready   []FileEvent
	stopped bool

	wake   chan struct{}
	output chan FileEvent
	stopCh chan struct{}
	doneCh chan struct{}
}

type pendingEvent struct {
	event    FileEvent
	deadline time.Time
}

// NewDebouncer starts a debouncer with the given quiet window.
func NewDebouncer(window time.Duration, bufferSize int) *Debouncer {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	d := &Debouncer{
		window:  window,
		now:     time.Now,
		pending: make(map[string]*pendingEvent),
		wake:    make(chan struct{}, 1),
		output:  make(chan FileEvent, bufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Add records an event.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	switch event.Operation {
	case OpDelete:
		d.emitNowLocked(event)
	case OpRename:
		if event.OldPath != "" {
			d.emitNowLocked(FileEvent{
				Path:      event.OldPath,
				Operation: OpDelete,
				Timestamp: event.Timestamp,
			})
		}
		if event.Path != "" {
			d.scheduleLocked(FileEvent{
				Path:      event.Path,
				Operation: OpCreate,
				Timestamp: event.Timestamp,
			})
		}
	default:
		d.scheduleLocked(event)
	}

	d.signal()
}

// Pending returns the number of paths waiting to settle.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Output returns the channel of settled events. It is closed by Stop.
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Stop discards pending events, stops the scheduler and closes Output.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.doneCh
		return
	}
	d.stopped = true
	d.pending = nil
	d.ready = nil
	close(d.stopCh)
	d.mu.Unlock()

	<-d.doneCh
}

// must be called with mu held
func (d *Debouncer) emitNowLocked(event FileEvent) {
	delete(d.pending, event.Path)
	d.ready = append(d.ready, event)
}

// must be called with mu held
func (d *Debouncer) scheduleLocked(event FileEvent) {
	deadline := d.now().Add(d.window)
	if pe, ok := d.pending[event.Path]; ok {
		pe.event = event
		pe.deadline = deadline
		return
	}
	d.pending[event.Path] = &pendingEvent{event: event, deadline: deadline}
}

func (d *Debouncer) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// collect moves settled events to the ready list and returns the events to
// send plus the wait until the next deadline (negative when none).
func (d *Debouncer) collect() ([]FileEvent, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var settled []*pendingEvent
	next := time.Duration(-1)

	for path, pe := range d.pending {
		if !pe.deadline.After(now) {
			settled = append(settled, pe)
			delete(d.pending, path)
			continue
		}
		if wait := pe.deadline.Sub(now); next < 0 || wait < next {
			next = wait
		}
	}

	sort.Slice(settled, func(i, j int) bool {
		return settled[i].deadline.Before(settled[j].deadline)
	})
	for _, pe := range settled {
		d.ready = append(d.ready, pe.event)
	}

	out := d.ready
	d.ready = nil
	return out, next
}

func (d *Debouncer) run() {
	defer close(d.doneCh)
	defer close(d.output)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		events, next := d.collect()
		for _, ev := range events {
			select {
			case d.output <- ev:
			case <-d.stopCh:
				return
			}
		}

		// More work may have arrived while sending.
		if len(events) > 0 {
			continue
		}

		if next >= 0 {
			timer.Reset(next)
		}

		select {
		case <-d.stopCh:
			timer.Stop()
			return
		case <-d.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
