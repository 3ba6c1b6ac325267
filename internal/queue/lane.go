package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEmptyLaneID is returned when Do is called with an empty lane ID.
	ErrEmptyLaneID = errors.New("queue: lane ID must not be empty")
	// ErrClosed is returned by Do once the queue has been closed.
	ErrClosed = errors.New("queue: closed")
)

type workItem struct {
	ctx  context.Context
	fn   func() error
	done chan error
}

// lane runs its work items one at a time on a single goroutine.
type lane struct {
	work chan workItem
	quit chan struct{}
}

func (l *lane) run() {
	for {
		select {
		case <-l.quit:
			return
		case item := <-l.work:
			if err := item.ctx.Err(); err != nil {
				item.done <- err
				continue
			}
			item.done <- safeExec(item.fn)
		}
	}
}

// safeExec turns a panic in fn into an error.
func safeExec(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: panic: %v", r)
		}
	}()
	return fn()
}

// defaultLaneBufferSize is the capacity of each lane's work channel.
// Tests may lower it to reach the full-buffer path.
var defaultLaneBufferSize = 256

// LaneQueue serializes work per lane. Lanes run concurrently with each other;
// within a lane work runs in submission order.
type LaneQueue struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
}

// NewLaneQueue returns an empty queue.
func NewLaneQueue() *LaneQueue {
	return &LaneQueue{lanes: make(map[string]*lane)}
}

// Do runs fn in laneID's worker and waits for it. Returns fn's error,
// ctx.Err() if ctx ends first, or ErrClosed once Close has been called.
func (q *LaneQueue) Do(ctx context.Context, laneID string, fn func() error) error {
	if laneID == "" {
		return ErrEmptyLaneID
	}
	l, err := q.lane(laneID)
	if err != nil {
		return err
	}

	item := workItem{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case l.work <- item:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrClosed
	}

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrClosed
	}
}

func (q *LaneQueue) lane(laneID string) (*lane, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if l, ok := q.lanes[laneID]; ok {
		return l, nil
	}
	l := &lane{
		work: make(chan workItem, defaultLaneBufferSize),
		quit: make(chan struct{}),
	}
	q.lanes[laneID] = l
	go l.run()
	return l, nil
}

// Close stops every lane worker. Work still queued is abandoned and its
// callers get ErrClosed. Close is idempotent.
func (q *LaneQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, l := range q.lanes {
		close(l.quit)
	}
}

// LaneCount returns the number of lanes created so far.
func (q *LaneQueue) LaneCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
