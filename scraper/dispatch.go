package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kzz_crawler/models"
)

var ErrTaskTimeout = errors.New("task timed out")

type TaskFunc func(ctx context.Context, task models.CrawlTask) error

// Dispatcher works a TaskQueue with bounded concurrency. A failed task is
// re-enqueued until it has been attempted MaxAttempts times, then dropped.
type Dispatcher struct {
	Concurrency int
	MaxAttempts int
	TaskTimeout time.Duration
	// OnDrop is called once per dropped task.
	OnDrop func(task models.CrawlTask, err error)
}

type DispatchStats struct {
	Done    int
	Retried int
	Dropped int
}

func (d *Dispatcher) Run(ctx context.Context, q *TaskQueue, fn TaskFunc) DispatchStats {
	var (
		mu    sync.Mutex
		stats DispatchStats
	)

	g := new(errgroup.Group)
	g.SetLimit(max(d.Concurrency, 1))

	for {
		task, ok := q.Next(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			defer q.Finish()

			err := d.attempt(ctx, task, fn)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.Done++
			case ctx.Err() != nil:
				// run cancelled; neither retried nor reported as a drop
			case task.RetryCount+1 < d.MaxAttempts:
				task.RetryCount++
				stats.Retried++
				q.Requeue(task)
			default:
				stats.Dropped++
				if d.OnDrop != nil {
					d.OnDrop(task, err)
				}
			}
			return nil
		})
	}

	g.Wait()
	return stats
}

// attempt runs fn under the task timeout. A task that overruns is reported
// as ErrTaskTimeout, but only once fn has returned: the caller's slot, and
// the browser context fn holds, stay accounted for until then.
func (d *Dispatcher) attempt(ctx context.Context, task models.CrawlTask, fn TaskFunc) error {
	tctx, cancel := context.WithTimeout(ctx, d.TaskTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("task panic: %v", p)
			}
		}()
		done <- fn(tctx, task)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTaskTimeout, err)
		}
		return err
	case <-tctx.Done():
		<-done
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTaskTimeout, d.TaskTimeout)
		}
		return tctx.Err()
	}
}
