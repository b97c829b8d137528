package models

import "time"

// SessionEvent is a lifecycle notification emitted by the session registry
type SessionEvent struct {
	Type        string    `json:"type" db:"type"`
	SessionID   string    `json:"session_id" db:"session_id"`
	ClientID    string    `json:"client_id,omitempty" db:"client_id"`
	MediaID     string    `json:"media_id,omitempty" db:"media_id"`
	TranscodeID string    `json:"transcode_id,omitempty" db:"transcode_id"`
	Detail      string    `json:"detail,omitempty" db:"detail"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// SessionEvent types
const (
	SessionEventAdded    = "added"
	SessionEventDeleted  = "deleted"
	SessionEventStarted  = "started"
	SessionEventStopped  = "stopped"
	SessionEventPurged   = "purged"
	SessionEventRejected = "rejected"
)
