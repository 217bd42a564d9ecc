package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdCrawl      CommandType = "crawl"
	CmdCrawlForce CommandType = "crawl_force"
	CmdReconcile  CommandType = "reconcile"
	CmdMonitorNow CommandType = "monitor_now"
	CmdPause      CommandType = "pause"
	CmdResume     CommandType = "resume"
)

// KnownCommands lists the commands the daemon acts on.
var KnownCommands = []CommandType{CmdCrawl, CmdCrawlForce, CmdReconcile, CmdMonitorNow, CmdPause, CmdResume}

func ParseCommandType(s string) (CommandType, bool) {
	for _, c := range KnownCommands {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Reason string `json:"reason,omitempty"`
}
