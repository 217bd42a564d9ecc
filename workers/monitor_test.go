package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kzz_crawler/config"
	"kzz_crawler/models"
)

type fakeSource struct {
	rows   []models.AlertRow
	err    error
	median *float64
	calls  int
}

func (f *fakeSource) QualifyingBonds(_ context.Context, _ models.Thresholds) ([]models.AlertRow, error) {
	f.calls++
	return f.rows, f.err
}

func (f *fakeSource) IndexMetrics(context.Context) (*models.IndexMetrics, error) {
	return &models.IndexMetrics{MedianPrice: f.median}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, content)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		MinInterval:   40 * time.Second,
		MaxInterval:   300 * time.Second,
		Step:          20 * time.Second,
		RestartDelay:  5 * time.Second,
		RiseThreshold: 3,
		FallThreshold: -2,
	}
}

// 10:00 in Shanghai on a Thursday.
var inSession = time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC)

func newTestMonitor(src *fakeSource, n *recordingNotifier) *Monitor {
	m := NewMonitor(src, n, testMonitorConfig())
	m.now = func() time.Time { return inSession }
	return m
}

func rows(ids ...string) []models.AlertRow {
	out := make([]models.AlertRow, len(ids))
	for i, id := range ids {
		out[i] = models.AlertRow{BondID: id, BondName: "转债" + id}
	}
	return out
}

func TestMonitorBacksOffWhileUnchanged(t *testing.T) {
	src := &fakeSource{rows: rows("113052", "123001")}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	var delays []time.Duration
	for range 15 {
		delays = append(delays, m.tick(t.Context(), false))
	}

	want := []time.Duration{40, 60, 80, 100, 120, 140, 160, 180, 200, 220, 240, 260, 280, 300, 300}
	for i := range want {
		want[i] *= time.Second
	}
	assert.Equal(t, want, delays)
	assert.Equal(t, 1, n.count(), "unchanged set is notified once")

	// order does not matter for identity
	src.rows = rows("123001", "113052")
	assert.Equal(t, 300*time.Second, m.tick(t.Context(), false))

	src.rows = rows("123001")
	assert.Equal(t, 40*time.Second, m.tick(t.Context(), false))
	assert.Equal(t, 2, n.count())
}

func TestMonitorDoesNotSendEmptySet(t *testing.T) {
	src := &fakeSource{}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	assert.Equal(t, 40*time.Second, m.tick(t.Context(), false))
	assert.Equal(t, 60*time.Second, m.tick(t.Context(), false))
	assert.Zero(t, n.count())

	src.rows = rows("113052")
	m.tick(t.Context(), false)
	assert.Equal(t, 1, n.count())

	src.rows = nil
	assert.Equal(t, 40*time.Second, m.tick(t.Context(), false))
	assert.Equal(t, 1, n.count())
}

func TestMonitorDigestCarriesMedian(t *testing.T) {
	median := 117.26
	src := &fakeSource{rows: rows("113052"), median: &median}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	m.tick(t.Context(), false)
	require.Equal(t, 1, n.count())
	assert.Contains(t, n.sent[0], "当前中位数: 117.26")
	assert.Contains(t, n.sent[0], "转债 113052")
}

func TestMonitorSkipsOutsideWindow(t *testing.T) {
	src := &fakeSource{rows: rows("113052")}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)
	m.now = func() time.Time { return inSession.Add(10 * time.Hour) }

	assert.Equal(t, 40*time.Second, m.tick(t.Context(), false))
	assert.Zero(t, src.calls)

	m.tick(t.Context(), true)
	assert.Equal(t, 1, src.calls, "forced tick ignores the window")
	assert.Equal(t, 1, n.count())
}

func TestMonitorConnectionErrorKeepsInterval(t *testing.T) {
	src := &fakeSource{rows: rows("113052")}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	m.tick(t.Context(), false)
	m.tick(t.Context(), false)
	require.Equal(t, 60*time.Second, m.state.interval)

	src.err = fmt.Errorf("query: %w", syscall.ECONNREFUSED)
	assert.Equal(t, 5*time.Second, m.tick(t.Context(), false))
	assert.Equal(t, 60*time.Second, m.state.interval)

	src.err = errors.New("syntax error at or near")
	assert.Equal(t, 60*time.Second, m.tick(t.Context(), false))

	src.err = nil
	assert.Equal(t, 80*time.Second, m.tick(t.Context(), false))
	assert.Equal(t, 1, n.count())
}

func TestMonitorRunTicksImmediatelyAndOnTrigger(t *testing.T) {
	src := &fakeSource{rows: rows("113052")}
	n := &recordingNotifier{}
	m := newTestMonitor(src, n)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 5*time.Millisecond)

	src.rows = rows("113052", "128136")
	m.Trigger()
	require.Eventually(t, func() bool { return n.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(fmt.Errorf("read: %w", syscall.ECONNRESET)))
	assert.True(t, isConnectionError(fmt.Errorf("scan: %w", io.EOF)))
	assert.False(t, isConnectionError(errors.New("relation does not exist")))
}
