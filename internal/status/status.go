// Package status computes how long a SIM card charge stays valid and how
// urgent a top-up is. Every view and the reminder scan derive their numbers
// from here.
package status

import (
	"math"
	"time"
)

// NeverCharged is the DaysRemaining value of a card that has no charge on
// record. It is lower than anything a real charge can produce.
const NeverCharged = math.MinInt32

// CriticalDays is the size of the critical window before a charge lapses.
const CriticalDays = 30

// WarningDays is the upper bound of the warning band.
const WarningDays = 60

const day = 24 * time.Hour

// Severity buckets the remaining validity of a card.
type Severity int

const (
	Good Severity = iota
	Warning
	Critical
	Expired
)

func (s Severity) String() string {
	switch s {
	case Expired:
		return "Expired"
	case Critical:
		return "Critical"
	case Warning:
		return "Warning"
	default:
		return "Good"
	}
}

// Emoji returns the marker used in chat listings.
func (s Severity) Emoji() string {
	switch s {
	case Expired:
		return "🚨"
	case Critical, Warning:
		return "⚠️"
	default:
		return "✅"
	}
}

// Status is the derived charging state of a single card.
type Status struct {
	Never           bool // no charge on record; DaysSinceCharge is meaningless
	DaysSinceCharge int
	DaysRemaining   int
}

// Severity classifies the remaining days.
func (s Status) Severity() Severity {
	return Classify(s.DaysRemaining)
}

// Compute derives the charging status from the last charge time.
func Compute(lastCharged *time.Time, now time.Time, validityDays int) Status {
	if lastCharged == nil {
		return Status{Never: true, DaysRemaining: NeverCharged}
	}
	since := int(now.Sub(*lastCharged) / day)
	// a charge stamped in the future (clock skew) counts as fresh
	if since < 0 {
		since = 0
	}
	return Status{
		DaysSinceCharge: since,
		DaysRemaining:   validityDays - since,
	}
}

// Classify maps remaining days to a severity. Thresholds are fixed.
func Classify(daysRemaining int) Severity {
	switch {
	case daysRemaining <= 0:
		return Expired
	case daysRemaining <= CriticalDays:
		return Critical
	case daysRemaining <= WarningDays:
		return Warning
	default:
		return Good
	}
}

// IsCritical reports whether the card is inside the critical window and has
// not lapsed yet.
func IsCritical(s Status) bool {
	return s.DaysRemaining > 0 && s.DaysRemaining <= CriticalDays
}

// Policy holds the configured reminder windows.
type Policy struct {
	ValidityDays          int // how long a charge keeps a SIM active
	ReminderThresholdDays int // days since charge after which a reminder is due
}

// Evaluate computes the status of a card under this policy.
func (p Policy) Evaluate(lastCharged *time.Time, now time.Time) Status {
	return Compute(lastCharged, now, p.ValidityDays)
}

// IsDue reports whether a reminder should be sent for the card.
func (p Policy) IsDue(s Status) bool {
	if s.Never {
		return true
	}
	return s.DaysSinceCharge >= p.ReminderThresholdDays || IsCritical(s)
}
