package model

import "time"

// AccountInfo is a point-in-time view of one pooled browser session.
type AccountInfo struct {
	ID         string     `json:"id"`
	ProfileDir string     `json:"profile_dir"`
	Sends      int        `json:"sends"`
	Failures   int        `json:"failures"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	Busy       bool       `json:"busy"`
	Disabled   bool       `json:"disabled"`
	Reason     string     `json:"reason,omitempty"`
}
