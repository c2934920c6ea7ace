package domain

import "time"

// Tone classifies the feed connection state for presentation.
type Tone string

const (
	ToneLive  Tone = "live"
	ToneStale Tone = "stale"
	ToneError Tone = "error"
)

// Fixed status messages.
const (
	MessageLive         = "Live"
	MessageReconnecting = "Reconnecting..."
	MessageStale        = "Stale"
	MessageConnecting   = "Connecting..."
)

// Status is reported after every poll attempt.
type Status struct {
	Tone          Tone       `json:"tone"`
	Message       string     `json:"message"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt"`
}

// LiveStatus is the status after a successful poll at now.
func LiveStatus(now time.Time) Status {
	return Status{Tone: ToneLive, Message: MessageLive, LastUpdatedAt: &now}
}

// ErrorStatus is the status after a failed poll. It deliberately carries no
// last-known-good timestamp.
func ErrorStatus() Status {
	return Status{Tone: ToneError, Message: MessageReconnecting}
}

// Effective derives the presentation status at now. A live status whose last
// update is older than staleAfter is reported as stale; any other status is
// returned unchanged. A non-positive staleAfter disables the derivation.
func (s Status) Effective(now time.Time, staleAfter time.Duration) Status {
	if s.Tone != ToneLive || s.LastUpdatedAt == nil || staleAfter <= 0 {
		return s
	}
	if now.Sub(*s.LastUpdatedAt) <= staleAfter {
		return s
	}
	return Status{Tone: ToneStale, Message: MessageStale, LastUpdatedAt: s.LastUpdatedAt}
}
