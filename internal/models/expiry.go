package models

import "time"

// ExpiryStatus classifies a rate's validity date for display. It is
// informational only and never blocks a write.
type ExpiryStatus string

const (
	ExpiryStatusExpired  ExpiryStatus = "expired"
	ExpiryStatusExpiring ExpiryStatus = "expiring-soon"
	ExpiryStatusOK       ExpiryStatus = "ok"
	ExpiryStatusNone     ExpiryStatus = "none"
)

// ExpiringSoonWindow is how far ahead of the valid-until date a rate is
// flagged as expiring.
const ExpiringSoonWindow = 7 * 24 * time.Hour

func GetExpiryStatus(validUntil *time.Time, now time.Time) ExpiryStatus {
	if validUntil == nil {
		return ExpiryStatusNone
	}
	if validUntil.Before(now) {
		return ExpiryStatusExpired
	}
	if validUntil.Sub(now) <= ExpiringSoonWindow {
		return ExpiryStatusExpiring
	}
	return ExpiryStatusOK
}
