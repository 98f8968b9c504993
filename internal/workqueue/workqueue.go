// Package workqueue implements a bounded-concurrency work scheduler used
// by dirops and nssync to fan out per-item work (upload, download, remove,
// transfer) across a fixed number of workers, per spec §4.9/§4.10/§5.
package workqueue

import (
	"container/list"
	"context"
	"sync"
)

// Queue is a FIFO/LIFO-mixed work queue: EnqueueFront and EnqueueBack add
// work items, and Process drains them across a fixed pool of workers,
// stopping at the first error encountered. Items may enqueue further work
// while Process is running (a worker finishing one item is free to push
// more before the queue is considered drained).
type Queue struct {
	// ProgressCallback, when set, is invoked after every item completes
	// with the running enqueued/active/completed counts.
	ProgressCallback func(ctx context.Context, enqueued, active, completed int64)

	mu    sync.Mutex
	cond  *sync.Cond
	items *list.List

	enqueued  int64
	active    int64
	completed int64
	err       error
}

// NewQueue builds an empty Queue.
func NewQueue() *Queue {
	q := &Queue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)

	return q
}

// EnqueueFront adds fn to the front of the queue: the next worker to pop
// will run it before anything already queued.
func (q *Queue) EnqueueFront(ctx context.Context, fn func() error) {
	q.enqueue(fn, true)
}

// EnqueueBack adds fn to the back of the queue.
func (q *Queue) EnqueueBack(ctx context.Context, fn func() error) {
	q.enqueue(fn, false)
}

func (q *Queue) enqueue(fn func() error, front bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if front {
		q.items.PushFront(fn)
	} else {
		q.items.PushBack(fn)
	}

	q.enqueued++
	q.cond.Broadcast()
}

// Process runs numWorkers workers concurrently, each popping the front of
// the queue until it is empty and no worker is active. It returns the
// first error any item returned; remaining scheduled items are drained
// without being started once an error has been recorded, and Process
// waits for in-flight items to settle before returning.
func (q *Queue) Process(ctx context.Context, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}

	stop := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			if q.err == nil {
				q.err = ctx.Err()
			}
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup

	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			q.worker(ctx)
		}()
	}

	wg.Wait()
	close(stop)

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.err
}

func (q *Queue) worker(ctx context.Context) {
	for {
		q.mu.Lock()

		for q.items.Len() == 0 && q.active > 0 && q.err == nil {
			q.cond.Wait()
		}

		if q.err != nil && q.items.Len() == 0 {
			q.mu.Unlock()
			return
		}

		if q.items.Len() == 0 && q.active == 0 {
			q.mu.Unlock()
			return
		}

		if q.err != nil {
			// An error was already recorded: drain without starting new
			// work, but still account for items so Len()==0 is reachable.
			q.items.Remove(q.items.Front())
			q.mu.Unlock()

			continue
		}

		el := q.items.Front()
		q.items.Remove(el)
		fn, _ := el.Value.(func() error)
		q.active++

		q.mu.Unlock()

		err := fn()

		q.mu.Lock()
		q.active--
		q.completed++

		if err != nil && q.err == nil {
			q.err = err
		}

		cb := q.ProgressCallback
		enqueued, active, completed := q.enqueued, q.active, q.completed
		q.cond.Broadcast()
		q.mu.Unlock()

		if cb != nil {
			cb(ctx, enqueued, active, completed)
		}
	}
}

// OnNthCompletion wraps callback so it only fires on the n-th invocation
// of the returned function; every other invocation returns nil. Useful as
// a DirectoryOps/SyncEngine onUpload/onTransfer hook that needs to run a
// final action once the expected item count has been reached.
func OnNthCompletion(n int, callback func() error) func() error {
	var (
		mu    sync.Mutex
		count int
	)

	return func() error {
		mu.Lock()
		count++
		reached := count == n
		mu.Unlock()

		if !reached {
			return nil
		}

		return callback()
	}
}
