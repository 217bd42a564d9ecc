package models

import "github.com/google/uuid"

type TaskLabel string

const (
	LabelList   TaskLabel = "LIST"
	LabelDetail TaskLabel = "DETAIL"
)

type TaskData struct {
	ItemID string `json:"itemId"`
	Index  int    `json:"index"`
}

type CrawlTask struct {
	ID         uuid.UUID `json:"id"`
	URL        string    `json:"url"`
	Label      TaskLabel `json:"label"`
	UserData   TaskData  `json:"userData"`
	RetryCount int       `json:"retryCount"`
}

func NewDetailTask(url, itemID string, index int) CrawlTask {
	return CrawlTask{
		ID:       uuid.New(),
		URL:      url,
		Label:    LabelDetail,
		UserData: TaskData{ItemID: itemID, Index: index},
	}
}

// UniqueKey identifies a task for de-duplication within one run.
func (t CrawlTask) UniqueKey() string {
	return string(t.Label) + "|" + t.URL
}
