package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

type ScrapeRun struct {
	ID             int64      `json:"id" db:"id"`
	SiteID         string     `json:"site_id" db:"site_id"`
	Trigger        string     `json:"trigger" db:"trigger"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	ItemsFound     int        `json:"items_found" db:"items_found"`
	RowsUpserted   int        `json:"rows_upserted" db:"rows_upserted"`
	DetailsQueued  int        `json:"details_queued" db:"details_queued"`
	DetailsDone    int        `json:"details_done" db:"details_done"`
	DetailsDropped int        `json:"details_dropped" db:"details_dropped"`
	RowsPruned     int64      `json:"rows_pruned" db:"rows_pruned"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}

func (r *ScrapeRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ScrapeLog is one scrape_logs row. RunID is nil for worker events that
// happen outside a crawl.
type ScrapeLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Source    string    `json:"source" db:"source"`
	Message   string    `json:"message" db:"message"`
}
