package cache

import "time"

// Decision is the outcome of a freshness check.
type Decision int

const (
	// Serve returns the stored value.
	Serve Decision = iota
	// Recompute calls the wrapped function and stores the result.
	Recompute
)

func (d Decision) String() string {
	if d == Recompute {
		return "recompute"
	}
	return "serve"
}

// Reason explains a Decision. It is used for logging and metric attributes.
type Reason string

const (
	ReasonFresh   Reason = "fresh"
	ReasonMissing Reason = "missing"
	ReasonForced  Reason = "precache"
	ReasonExpired Reason = "expired"
	ReasonGrace   Reason = "recache"
	ReasonBypass  Reason = "nocache"
)

// Evaluate decides whether entry can be served for a call in the given mode.
// Both thresholds are strict: an entry exactly timeout old is still served.
// ModeNoCache is handled before this point and is treated like ModeCache here.
func Evaluate(entry *Entry, mode Mode, now time.Time, timeout, grace time.Duration) (Decision, Reason) {
	if mode == ModePrecache {
		return Recompute, ReasonForced
	}
	if entry == nil {
		return Recompute, ReasonMissing
	}
	age := entry.Age(now)
	if age > timeout {
		return Recompute, ReasonExpired
	}
	if mode == ModeRecache && grace > 0 && age > timeout-grace {
		return Recompute, ReasonGrace
	}
	return Serve, ReasonFresh
}

// Decide is Evaluate without the reason.
func Decide(entry *Entry, mode Mode, now time.Time, timeout, grace time.Duration) Decision {
	d, _ := Evaluate(entry, mode, now, timeout, grace)
	return d
}

// IsExpired reports whether the entry is older than timeout.
func IsExpired(entry *Entry, now time.Time, timeout time.Duration) bool {
	return entry.Age(now) > timeout
}

// NeedsRefresh reports whether the entry is inside its grace window or past
// it. It is always false when grace is not set.
func NeedsRefresh(entry *Entry, now time.Time, timeout, grace time.Duration) bool {
	if grace <= 0 {
		return false
	}
	return entry.Age(now) > timeout-grace
}
