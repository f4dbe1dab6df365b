// Package ingest serializes every write to the vector store through one
// worker. Producers (the watcher, full scans, explicit run requests) push
// paths onto a Queue; the Worker pops them one at a time and runs the
// extract, fingerprint, embed, upsert, persist pipeline.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Next once the queue has been closed.
var ErrQueueClosed = errors.New("ingest queue closed")

// TaskKind says what the worker should do with a path.
type TaskKind int

const (
	// TaskIndex re-reads the file and indexes it. A file that no longer
	// exists is removed from the index instead.
	TaskIndex TaskKind = iota
	// TaskDelete removes the path, and every record under it when it was a
	// directory, without touching the filesystem.
	TaskDelete
)

// String returns a human-readable representation of the kind.
func (k TaskKind) String() string {
	switch k {
	case TaskIndex:
		return "index"
	case TaskDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Task is one queued unit of work.
type Task struct {
	Path string
	Kind TaskKind

	// Source names the producer: "watcher", "scan", "run" or "retry".
	Source string

	// Attempt counts prior failed attempts for retried tasks.
	Attempt int

	Enqueued time.Time
}

// Queue is a FIFO of tasks holding at most one pending task per path. A
// second push for a queued path keeps the original position and adopts the
// newer kind, so the worker always acts on the latest state. The queue has
// its own lock and never touches the store.
type Queue struct {
	mu      sync.Mutex
	order   []string
	pending map[string]*Task
	closed  bool

	// wake has capacity 1 so a push never blocks.
	wake chan struct{}

	now func() time.Time
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[string]*Task),
		wake:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Enqueue queues path for indexing. It reports whether a new task was
// added; false means the path was already pending or the queue is closed.
func (q *Queue) Enqueue(path, source string) bool {
	return q.push(Task{Path: path, Kind: TaskIndex, Source: source})
}

// EnqueueDelete queues path for removal from the index.
func (q *Queue) EnqueueDelete(path, source string) bool {
	return q.push(Task{Path: path, Kind: TaskDelete, Source: source})
}

// Requeue pushes a failed task back with its attempt count. It is dropped
// when the path is already pending again, since the newer task supersedes it.
func (q *Queue) Requeue(t Task) bool {
	q.mu.Lock()
	if _, ok := q.pending[t.Path]; ok {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()
	return q.push(t)
}

func (q *Queue) push(t Task) bool {
	if t.Path == "" {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if existing, ok := q.pending[t.Path]; ok {
		existing.Kind = t.Kind
		q.mu.Unlock()
		return false
	}
	t.Enqueued = q.now()
	q.pending[t.Path] = &t
	q.order = append(q.order, t.Path)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// TryNext pops the oldest task without blocking.
func (q *Queue) TryNext() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.order) > 0 {
		path := q.order[0]
		q.order[0] = ""
		q.order = q.order[1:]
		if len(q.order) == 0 {
			q.order = nil
		}
		t, ok := q.pending[path]
		if !ok {
			continue
		}
		delete(q.pending, path)
		return *t, true
	}
	return Task{}, false
}

// Next blocks until a task is available, ctx is done or the queue is
// closed. poll bounds how long a missed wakeup can delay it; zero disables
// polling.
func (q *Queue) Next(ctx context.Context, poll time.Duration) (Task, error) {
	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if t, ok := q.TryNext(); ok {
			return t, nil
		}
		if q.isClosed() {
			return Task{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-q.wake:
		case <-tick:
		}
	}
}

// Depth returns the number of pending tasks.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns the queued task for path, if any.
func (q *Queue) Pending(path string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.pending[path]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Close rejects further pushes and discards pending tasks. Blocked Next
// calls return ErrQueueClosed.
func (q *Queue) Close() int {
	q.mu.Lock()
	dropped := len(q.pending)
	q.closed = true
	q.pending = make(map[string]*Task)
	q.order = nil
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return dropped
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
