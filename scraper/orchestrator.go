package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"kzz_crawler/config"
	"kzz_crawler/market"
	"kzz_crawler/models"
	"kzz_crawler/parser"
	"kzz_crawler/services"
	"kzz_crawler/session"
)

var (
	ErrRunInProgress = errors.New("crawl already running")
	ErrNavigation    = errors.New("navigation failed")
	ErrNoListPayload = errors.New("no usable list payload captured")
)

// RunStore records runs and their log lines. *storage.SQLiteStore
// satisfies it.
type RunStore interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	Log(runID *int64, level models.LogLevel, source, message string) error
}

// Ingester turns captured payloads into stored rows.
// *services.BondService satisfies it.
type Ingester interface {
	IngestList(ctx context.Context, body []byte) (*services.ListResult, error)
	IngestIndexHistory(ctx context.Context, body []byte) (int, error)
	IngestHistory(ctx context.Context, bondID string, body []byte) error
	IngestAdjustLogs(ctx context.Context, bondID string, encoded string) error
	IngestDetailPage(ctx context.Context, bondID string, html io.Reader, sel parser.DetailSelectors) error
	SaveIndexMetrics(ctx context.Context, m *models.IndexMetrics) error
	Reconcile(ctx context.Context, ids []string) (int64, services.RollStats, error)
}

type RunOptions struct {
	IgnoreMarketHours bool
	Reconcile         bool
	Trigger           string
}

type Orchestrator struct {
	cfg      *config.Config
	site     *config.SiteConfig
	store    RunStore
	bonds    Ingester
	sessions *session.Manager
	launch   LaunchFunc
	queue    *TaskQueue

	running atomic.Bool
	paused  atomic.Bool
	now     func() time.Time
}

func NewOrchestrator(cfg *config.Config, store RunStore, bonds Ingester, sessions *session.Manager) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		site:     cfg.Site(),
		store:    store,
		bonds:    bonds,
		sessions: sessions,
		launch:   LaunchBrowser,
		queue:    NewTaskQueue(),
		now:      time.Now,
	}
}

// runState is what the capture handlers of one run report back.
type runState struct {
	mu       sync.Mutex
	list     *services.ListResult
	rejected *services.ListResult
	metrics  bool
}

// Run performs one crawl: session check and login, the list page, then the
// detail pages of every eligible bond.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) error {
	if o.paused.Load() {
		log.Printf("[orchestrator] paused, skipping run")
		return nil
	}
	if !opts.IgnoreMarketHours && !market.IsOpen(o.now()) {
		log.Printf("[orchestrator] market closed, skipping run")
		return nil
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer o.running.Store(false)

	if opts.Trigger == "" {
		opts.Trigger = "manual"
	}
	run := &models.ScrapeRun{
		SiteID:    o.site.ID,
		Trigger:   opts.Trigger,
		StartedAt: o.now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	run.ID = runID

	defer func() {
		now := o.now()
		run.FinishedAt = &now
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("[orchestrator] update run %d: %v", run.ID, err)
		}
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Run %s in %s: %d found, %d upserted, %d/%d details, %d dropped, %d pruned",
			run.Status, run.Duration().Round(time.Second), run.ItemsFound, run.RowsUpserted,
			run.DetailsDone, run.DetailsQueued, run.DetailsDropped, run.RowsPruned))
	}()

	err = o.crawl(ctx, run, opts)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, err.Error())
		return err
	}
	run.Status = models.RunStatusCompleted
	return nil
}

func (o *Orchestrator) crawl(ctx context.Context, run *models.ScrapeRun, opts RunOptions) error {
	browser, err := o.launch(o.cfg.Browser)
	if err != nil {
		return err
	}
	defer browser.Close()
	stop := context.AfterFunc(ctx, browser.Close)
	defer stop()

	state := &runState{}

	sess, err := o.ensureSession(ctx, run, browser, state)
	if err != nil {
		return err
	}

	if n := o.queue.Drain(); n > 0 {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Discarded %d stale tasks", n))
	}

	if err := o.crawlList(ctx, run, browser, sess, state); err != nil {
		return err
	}

	state.mu.Lock()
	list, rejected := state.list, state.rejected
	state.mu.Unlock()
	if list == nil {
		if rejected != nil {
			return fmt.Errorf("%w: payload had %d rows, need more than %d",
				ErrNoListPayload, rejected.Rows, o.cfg.Crawler.ListMinItems)
		}
		return ErrNoListPayload
	}
	run.ItemsFound = len(list.IDs)
	run.RowsUpserted = list.Stats.Upserted
	run.ErrorsCount += list.Stats.Failed

	o.crawlDetails(ctx, run, browser, sess, list.Eligible)

	if opts.Reconcile {
		pruned, roll, err := o.bonds.Reconcile(ctx, list.IDs)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		run.RowsPruned = pruned
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Reconciled: %d pruned, %d histories rolled", pruned, roll.Updated))
	}
	return ctx.Err()
}

// ensureSession returns a valid stored session, logging in first when there
// is none.
func (o *Orchestrator) ensureSession(ctx context.Context, run *models.ScrapeRun, browser Browser, state *runState) (*models.Session, error) {
	sess, err := o.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if o.sessions.IsValid(sess) {
		return sess, nil
	}

	o.log(run.ID, models.LogLevelInfo, "Session missing or expired, logging in")
	page, err := browser.NewPage(nil)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.Goto(o.site.ListURL, o.cfg.Crawler.NavTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, o.site.ListURL, err)
	}

	login := NewLogin(page, o.site, o.cfg.Account, o.sessions,
		func(ctx context.Context, m *models.IndexMetrics) error {
			if err := o.bonds.SaveIndexMetrics(ctx, m); err != nil {
				return err
			}
			state.mu.Lock()
			state.metrics = true
			state.mu.Unlock()
			return nil
		},
		LoginTimeouts{Prompt: 10 * time.Second, Wait: o.cfg.Crawler.WaitTimeout, ClickSettle: o.cfg.Crawler.ClickSettle})
	if err := login.Run(ctx); err != nil {
		return nil, err
	}

	sess, err = o.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if !o.sessions.IsValid(sess) {
		return nil, fmt.Errorf("%w: stored session still invalid after login", ErrLoginFailed)
	}
	return sess, nil
}

func (o *Orchestrator) crawlList(ctx context.Context, run *models.ScrapeRun, browser Browser, sess *models.Session, state *runState) error {
	page, err := browser.NewPage(sess)
	if err != nil {
		return err
	}
	defer page.Close()

	capture := NewCapture(ctx,
		Route{
			Name:  config.EndpointList,
			Match: o.site.Endpoints[config.EndpointList],
			Handle: func(ctx context.Context, _ string, body []byte) error {
				res, err := o.bonds.IngestList(ctx, body)
				if err != nil {
					return err
				}
				if !res.Accepted {
					o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Ignored list payload with %d rows (%d bytes)", res.Rows, len(body)))
					state.mu.Lock()
					state.rejected = res
					state.mu.Unlock()
					return nil
				}
				state.mu.Lock()
				state.list = res
				state.mu.Unlock()
				return nil
			},
		},
		Route{
			Name:  config.EndpointIndexHistory,
			Match: o.site.Endpoints[config.EndpointIndexHistory],
			Handle: func(ctx context.Context, _ string, body []byte) error {
				n, err := o.bonds.IngestIndexHistory(ctx, body)
				if err == nil {
					log.Printf("[orchestrator] index history: %d points", n)
				}
				return err
			},
		},
	)
	capture.Attach(page)
	defer capture.Wait()

	if err := page.Goto(o.site.ListURL, o.cfg.Crawler.NavTimeout); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, o.site.ListURL, err)
	}
	if err := sleepCtx(ctx, o.cfg.Crawler.SettleDelay); err != nil {
		return err
	}
	capture.Wait()

	state.mu.Lock()
	haveMetrics := state.metrics
	state.mu.Unlock()
	if !haveMetrics {
		if m, err := ReadIndexMetrics(page, o.site.Index); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Index metrics: %v", err))
		} else if err := o.bonds.SaveIndexMetrics(ctx, m); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Save index metrics: %v", err))
		}
	}
	return nil
}

// crawlDetails enqueues one DETAIL task per target, spaced by the enqueue
// limiter, while the dispatcher works the queue.
func (o *Orchestrator) crawlDetails(ctx context.Context, run *models.ScrapeRun, browser Browser, sess *models.Session, targets []services.DetailTarget) {
	if len(targets) == 0 {
		o.queue.Close()
		return
	}

	limit := rate.Inf
	if o.cfg.Crawler.EnqueueDelay > 0 {
		limit = rate.Every(o.cfg.Crawler.EnqueueDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	dispatcher := &Dispatcher{
		Concurrency: o.cfg.Crawler.Concurrency,
		MaxAttempts: o.cfg.Crawler.MaxAttempts,
		TaskTimeout: o.cfg.Crawler.TaskTimeout,
		OnDrop: func(task models.CrawlTask, err error) {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Dropped %s after %d attempts: %v",
				task.UserData.ItemID, task.RetryCount+1, err))
		},
	}

	var queued int
	var stats DispatchStats
	var g errgroup.Group
	g.Go(func() error {
		defer o.queue.Close()
		for _, t := range targets {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			url := fmt.Sprintf(o.site.DetailURL, t.BondID, t.Index)
			if o.queue.Enqueue(models.NewDetailTask(url, t.BondID, t.Index)) {
				queued++
			}
		}
		return nil
	})
	g.Go(func() error {
		stats = dispatcher.Run(ctx, o.queue, func(ctx context.Context, task models.CrawlTask) error {
			return o.crawlDetail(ctx, browser, sess, task)
		})
		return nil
	})
	g.Wait()

	run.DetailsQueued = queued
	run.DetailsDone = stats.Done
	run.DetailsDropped = stats.Dropped
	run.ErrorsCount += stats.Dropped
}

func (o *Orchestrator) crawlDetail(ctx context.Context, browser Browser, sess *models.Session, task models.CrawlTask) error {
	bondID := task.UserData.ItemID

	page, err := browser.NewPage(sess)
	if err != nil {
		return err
	}
	defer page.Close()
	// a timed-out task unblocks its page calls by losing the context
	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	capture := NewCapture(ctx,
		Route{
			Name:  config.EndpointHistory,
			Match: o.site.Endpoints[config.EndpointHistory],
			Handle: func(ctx context.Context, _ string, body []byte) error {
				return o.bonds.IngestHistory(ctx, bondID, body)
			},
		},
		Route{
			Name:  config.EndpointAdjustLogs,
			Match: o.site.Endpoints[config.EndpointAdjustLogs],
			Handle: func(ctx context.Context, _ string, body []byte) error {
				return o.bonds.IngestAdjustLogs(ctx, bondID, adjustPayload(body))
			},
		},
	)
	capture.Attach(page)
	defer capture.Wait()

	if err := page.Goto(task.URL, o.cfg.Crawler.NavTimeout); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, task.URL, err)
	}
	if err := sleepCtx(ctx, o.cfg.Crawler.SettleDelay); err != nil {
		return err
	}
	capture.Wait()

	if capture.Hits(config.EndpointHistory) == 0 {
		log.Printf("[orchestrator] %s: no history response captured", bondID)
	}

	html, err := page.Content()
	if err != nil {
		return fmt.Errorf("read detail page: %w", err)
	}
	sel := parser.DetailSelectors{
		Industry: o.site.Detail.Industry,
		Concepts: o.site.Detail.Concepts,
		CashFlow: o.site.Detail.CashFlow,
	}
	if err := o.bonds.IngestDetailPage(ctx, bondID, strings.NewReader(html), sel); err != nil {
		log.Printf("[orchestrator] %s: detail page: %v", bondID, err)
	}
	return nil
}

// adjustPayload unwraps the adjustment-log response. The endpoint answers
// either with the encoded table itself or with {"data": "<encoded>"}.
func adjustPayload(body []byte) string {
	var env struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Data != "" {
		return env.Data
	}
	return string(body)
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdCrawl:
		return o.Run(ctx, RunOptions{Trigger: "command"})
	case models.CmdCrawlForce:
		return o.Run(ctx, RunOptions{IgnoreMarketHours: true, Trigger: "command"})
	case models.CmdReconcile:
		return o.Run(ctx, RunOptions{IgnoreMarketHours: true, Reconcile: true, Trigger: "command"})
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Crawler paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Crawler resumed")
	default:
		return fmt.Errorf("orchestrator does not handle %q", cmd.Command)
	}
	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, o.site.ID, message)
	if err := o.store.Log(&runID, level, o.site.ID, message); err != nil {
		log.Printf("[orchestrator] write log: %v", err)
	}
}
