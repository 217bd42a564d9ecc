package scraper

import (
	"context"
	"sync"

	"kzz_crawler/models"
)

// TaskQueue is the in-memory crawl queue of one run. A task key is accepted
// once per run; retries go through Requeue. Next blocks until a task is
// available or the queue is closed with nothing in flight.
type TaskQueue struct {
	mu       sync.Mutex
	tasks    []models.CrawlTask
	seen     map[string]struct{}
	inflight int
	closed   bool
	wake     chan struct{}
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		seen: make(map[string]struct{}),
		wake: make(chan struct{}),
	}
}

// broadcast wakes every waiter. Caller holds mu.
func (q *TaskQueue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Enqueue adds t unless its key was already seen this run.
func (q *TaskQueue) Enqueue(t models.CrawlTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := t.UniqueKey()
	if _, ok := q.seen[key]; ok {
		return false
	}
	q.seen[key] = struct{}{}
	q.tasks = append(q.tasks, t)
	q.broadcast()
	return true
}

func (q *TaskQueue) Requeue(t models.CrawlTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	q.broadcast()
}

func (q *TaskQueue) Next(ctx context.Context) (models.CrawlTask, bool) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			t := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.inflight++
			q.mu.Unlock()
			return t, true
		}
		if q.closed && q.inflight == 0 {
			q.mu.Unlock()
			return models.CrawlTask{}, false
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.CrawlTask{}, false
		case <-wake:
		}
	}
}

// Finish marks a task taken by Next as handled. Requeue a retry before
// calling it.
func (q *TaskQueue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight--
	q.broadcast()
}

// Close signals that no more tasks will be enqueued.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.broadcast()
}

// Drain resets the queue for a new run and returns how many pending tasks
// were discarded.
func (q *TaskQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.tasks)
	q.tasks = nil
	q.seen = make(map[string]struct{})
	q.inflight = 0
	q.closed = false
	q.broadcast()
	return n
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
