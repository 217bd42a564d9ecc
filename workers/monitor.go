package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"kzz_crawler/config"
	"kzz_crawler/identity"
	"kzz_crawler/market"
	"kzz_crawler/models"
	"kzz_crawler/notify"
)

// LogFunc records a worker event in the scrape_logs table.
type LogFunc func(level models.LogLevel, source, message string)

func discardLog(models.LogLevel, string, string) {}

// AlertSource is the read side of the bond store the monitor polls.
type AlertSource interface {
	QualifyingBonds(ctx context.Context, th models.Thresholds) ([]models.AlertRow, error)
	IndexMetrics(ctx context.Context) (*models.IndexMetrics, error)
}

// monitorState is the last notified identity and the current poll interval.
type monitorState struct {
	interval time.Duration
	lastKey  string
	primed   bool
}

// observe records key and reports whether it differs from the previous one.
// A change resets the interval to min; a repeat backs off by step up to max.
func (s *monitorState) observe(key string, cfg config.MonitorConfig) bool {
	if !s.primed || key != s.lastKey {
		s.lastKey = key
		s.primed = true
		s.interval = cfg.MinInterval
		return true
	}
	s.interval = min(s.interval+cfg.Step, cfg.MaxInterval)
	return false
}

// Monitor polls qualifying bonds and sends a digest whenever the set changes.
type Monitor struct {
	source    AlertSource
	notifier  notify.Notifier
	cfg       config.MonitorConfig
	state     monitorState
	now       func() time.Time
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewMonitor(source AlertSource, notifier notify.Notifier, cfg config.MonitorConfig) *Monitor {
	return &Monitor{
		source:    source,
		notifier:  notifier,
		cfg:       cfg,
		state:     monitorState{interval: cfg.MinInterval},
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
		logFunc:   discardLog,
	}
}

func (m *Monitor) SetLogger(fn LogFunc) {
	m.logFunc = fn
}

// Trigger runs a tick immediately, ignoring the trading window.
func (m *Monitor) Trigger() {
	select {
	case m.triggerCh <- struct{}{}:
	default:
	}
}

// Run ticks once right away, then re-arms after each tick completes.
func (m *Monitor) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[monitor] stopping")
			return
		case <-timer.C:
			timer.Reset(m.tick(ctx, false))
		case <-m.triggerCh:
			log.Println("[monitor] triggered manually")
			timer.Stop()
			timer.Reset(m.tick(ctx, true))
		}
	}
}

// tick runs one poll and returns the delay until the next one.
func (m *Monitor) tick(ctx context.Context, forced bool) time.Duration {
	now := m.now()
	if !forced && !m.cfg.Force && !market.InTradingWindow(now) {
		return m.state.interval
	}

	rows, err := m.source.QualifyingBonds(ctx, models.Thresholds{
		Rise: m.cfg.RiseThreshold,
		Fall: m.cfg.FallThreshold,
	})
	if err != nil {
		if isConnectionError(err) {
			log.Printf("[monitor] connection error, retrying in %s: %v", m.cfg.RestartDelay, err)
			return m.cfg.RestartDelay
		}
		log.Printf("[monitor] query error: %v", err)
		m.logFunc(models.LogLevelError, "monitor", fmt.Sprintf("Qualifying query failed: %v", err))
		return m.state.interval
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.BondID
	}

	if !m.state.observe(identity.SnapshotKey(ids), m.cfg) {
		return m.state.interval
	}
	if len(rows) == 0 {
		log.Println("[monitor] qualifying set is now empty")
		return m.state.interval
	}

	var median *float64
	metrics, err := m.source.IndexMetrics(ctx)
	if err != nil {
		log.Printf("[monitor] index metrics unavailable: %v", err)
	} else if metrics != nil {
		median = metrics.MedianPrice
	}

	if err := m.notifier.Send(ctx, notify.FormatDigest(now, median, rows)); err != nil {
		log.Printf("[monitor] notify failed: %v", err)
		m.logFunc(models.LogLevelError, "monitor", fmt.Sprintf("Notify failed: %v", err))
		return m.state.interval
	}

	log.Printf("[monitor] sent digest of %d bonds", len(rows))
	m.logFunc(models.LogLevelInfo, "monitor", fmt.Sprintf("Sent digest of %d bonds", len(rows)))
	return m.state.interval
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
