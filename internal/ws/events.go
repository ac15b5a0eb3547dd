package ws

import "time"

const (
	EventBlastStarted  = "blast.started"
	EventBlastProgress = "blast.progress"
	EventBlastFinished = "blast.finished"

	EventSessionOpened   = "session.opened"
	EventSessionDisabled = "session.disabled"
	EventSessionsClosed  = "sessions.closed"
)

// WsEvent is the envelope pushed to every dashboard client.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type BlastStartedData struct {
	BlastID  string `json:"blast_id"`
	Total    int    `json:"total"`
	Accounts int    `json:"accounts"`
}

type BlastProgressData struct {
	BlastID string `json:"blast_id"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Phone   string `json:"phone"`
	Account string `json:"account"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

type BlastFinishedData struct {
	BlastID     string `json:"blast_id"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Sent        int    `json:"sent"`
	Failed      int    `json:"failed"`
	Unavailable int    `json:"unavailable"`
	Error       string `json:"error,omitempty"`
}

type SessionStatusData struct {
	Account    string `json:"account"`
	ProfileDir string `json:"profile_dir,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
