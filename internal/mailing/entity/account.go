package entity

import (
	"strings"
	"time"

	"github.com/shandysiswandi/jbcast/internal/pkg/clock"
)

// DailySendLimit is the number of messages an account may send per calendar day.
const DailySendLimit = 500

// OutboundAccount is the SMTP credential set of one owner and its daily quota.
//
// The quota has two states. RateLimited=false is Normal.
type OutboundAccount struct {
	ID       int64
	OwnerID  int64
	Host     string
	Port     int
	Username string
	// Password is the plaintext, filled only after SealedPassword is opened.
	Password       string
	SealedPassword []byte
	UseTLS         bool
	SentToday      int32
	RateLimited    bool
	LastReset      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NeedsReset reports whether LastReset falls on an earlier calendar day than now in loc.
func (a *OutboundAccount) NeedsReset(now time.Time, loc *time.Location) bool {
	return clock.StartOfDay(a.LastReset.In(loc)).Before(clock.StartOfDay(now.In(loc)))
}

// Touch applies the daily reset and reports whether it changed the account.
func (a *OutboundAccount) Touch(now time.Time, loc *time.Location) bool {
	if !a.NeedsReset(now, loc) {
		return false
	}
	a.SentToday = 0
	a.RateLimited = false
	a.LastReset = now
	return true
}

// Admit reports whether a send may start. A refusal leaves the account RateLimited.
func (a *OutboundAccount) Admit() bool {
	if a.RateLimited || a.SentToday >= DailySendLimit {
		a.RateLimited = true
		return false
	}
	return true
}

// IsQuotaError reports whether a transport error signals provider-side exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "limit")
}

type SaveAccount struct {
	ID             int64
	OwnerID        int64
	Host           string
	Port           int
	Username       string
	SealedPassword []byte
	UseTLS         bool
}
