package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kzz_crawler/config"
	"kzz_crawler/models"
	"kzz_crawler/scraper"
)

const commandPollInterval = 2 * time.Second

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Runner is the crawl side the scheduler drives.
type Runner interface {
	Run(ctx context.Context, opts scraper.RunOptions) error
	HandleCommand(ctx context.Context, cmd *models.Command) error
}

type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

type Scheduler struct {
	cfg      config.SchedulerConfig
	runner   Runner
	commands CommandQueue
	monitor  Triggerable
	cron     *cron.Cron
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(cfg config.SchedulerConfig, runner Runner, commands CommandQueue) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		commands: commands,
		cron:     c,
		stopCh:   make(chan struct{}),
	}, nil
}

// SetMonitor registers the change monitor for monitor_now commands.
func (s *Scheduler) SetMonitor(m Triggerable) {
	s.monitor = m
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("[scheduler] crawl cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			if err := s.runner.Run(ctx, scraper.RunOptions{Trigger: "cron"}); err != nil {
				log.Printf("[scheduler] scheduled crawl: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid crawl cron: %w", err)
		}
	}

	if s.cfg.NightlyCron != "" {
		log.Printf("[scheduler] nightly cron: %s", s.cfg.NightlyCron)
		_, err := s.cron.AddFunc(s.cfg.NightlyCron, func() {
			opts := scraper.RunOptions{IgnoreMarketHours: true, Reconcile: true, Trigger: "nightly"}
			if err := s.runner.Run(ctx, opts); err != nil {
				log.Printf("[scheduler] nightly crawl: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid nightly cron: %w", err)
		}
	}

	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollCommands(ctx)
	}()
	return nil
}

// Stop halts the poller and waits for running cron jobs to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.commands.GetPendingCommands()
	if err != nil {
		log.Printf("[scheduler] error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		if params, err := s.commands.ParseCommandParams(&cmd); err == nil && params.Reason != "" {
			log.Printf("[scheduler] processing command: %s (%s)", cmd.Command, params.Reason)
		} else {
			log.Printf("[scheduler] processing command: %s", cmd.Command)
		}
		if err := s.handleCommand(ctx, &cmd); err != nil {
			log.Printf("[scheduler] command %s: %v", cmd.Command, err)
		}
		if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("[scheduler] error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	if cmd.Command == models.CmdMonitorNow {
		if s.monitor != nil {
			s.monitor.Trigger()
			log.Println("[scheduler] monitor triggered via command")
		}
		return nil
	}

	// Crawls run for minutes; keep the poller responsive.
	switch cmd.Command {
	case models.CmdCrawl, models.CmdCrawlForce, models.CmdReconcile:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.runner.HandleCommand(ctx, cmd); err != nil {
				log.Printf("[scheduler] command %s: %v", cmd.Command, err)
			}
		}()
		return nil
	}
	return s.runner.HandleCommand(ctx, cmd)
}
