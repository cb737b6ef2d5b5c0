package authapi

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"tasktrack/cmd/internal/httpio"
)

const msgRateLimited = "Too many login attempts, please try again later"

// maxTrackedKeys triggers a sweep of stale throttle entries.
const maxTrackedKeys = 10_000

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// loginThrottle records failed logins per client IP and per normalized email.
//
// IPs get a sliding window; emails get progressive lockout.
type loginThrottle struct {
	mu      sync.Mutex
	byIP    map[string][]time.Time
	byEmail map[string][]time.Time

	ipMax      int
	ipWindow   time.Duration
	userWindow time.Duration
	tiers      []lockoutTier
	keep       int

	// retain is the longest of the user window and every lock duration.
	retain time.Duration
}

func newLoginThrottle(cfg Config) *loginThrottle {
	tiers := cfg.lockoutTiers()
	keep := cfg.LoginIPMax
	retain := cfg.LoginUserWindow
	for _, t := range tiers {
		keep = max(keep, t.Threshold)
		retain = max(retain, t.Duration)
	}
	return &loginThrottle{
		byIP:       make(map[string][]time.Time),
		byEmail:    make(map[string][]time.Time),
		ipMax:      cfg.LoginIPMax,
		ipWindow:   cfg.LoginIPWindow,
		userWindow: cfg.LoginUserWindow,
		tiers:      tiers,
		keep:       keep,
		retain:     retain,
	}
}

// check reports whether a login attempt must be refused before credentials are looked at.
// Empty keys are not throttled.
func (t *loginThrottle) check(ip, email string, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ip != "" {
		if blocked, retry := evaluateWindowThrottle(now, t.byIP[ip], t.ipMax, t.ipWindow); blocked {
			return true, retry
		}
	}
	if email != "" {
		if blocked, retry := evaluateProgressiveLockout(now, t.countedLocked(email, now), t.tiers); blocked {
			return true, retry
		}
	}
	return false, 0
}

// countedLocked returns the email's failures inside the user window that ends at its newest failure.
func (t *loginThrottle) countedLocked(email string, now time.Time) []time.Time {
	hist := since(t.byEmail[email], now.Add(-t.retain))
	if len(hist) == 0 {
		return nil
	}
	newest := newestFirst(hist)[0]
	return since(hist, newest.Add(-t.userWindow))
}

func (t *loginThrottle) recordFailure(ip, email string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.byIP)+len(t.byEmail) > maxTrackedKeys {
		t.sweepLocked(now)
	}
	if ip != "" {
		t.byIP[ip] = t.pushLocked(t.byIP[ip], now, now.Add(-t.ipWindow))
	}
	if email != "" {
		t.byEmail[email] = t.pushLocked(t.byEmail[email], now, now.Add(-t.retain))
	}
}

// reset clears the email history after a successful login. IP history is kept.
func (t *loginThrottle) reset(email string) {
	t.mu.Lock()
	delete(t.byEmail, email)
	t.mu.Unlock()
}

// pushLocked prepends now, drops entries older than cut and bounds the slice.
func (t *loginThrottle) pushLocked(hist []time.Time, now, cut time.Time) []time.Time {
	out := make([]time.Time, 0, min(len(hist)+1, t.keep))
	out = append(out, now)
	for _, ts := range hist {
		if len(out) >= t.keep {
			break
		}
		if ts.After(cut) {
			out = append(out, ts)
		}
	}
	return out
}

func (t *loginThrottle) sweepLocked(now time.Time) {
	for k, hist := range t.byIP {
		if len(hist) == 0 || !hist[0].After(now.Add(-t.ipWindow)) {
			delete(t.byIP, k)
		}
	}
	for k, hist := range t.byEmail {
		if len(hist) == 0 || !hist[0].After(now.Add(-t.retain)) {
			delete(t.byEmail, k)
		}
	}
}

// evaluateWindowThrottle blocks once max failures fall inside window.
// retry is the time until the oldest counted failure leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	inWindow := newestFirst(since(failures, now.Add(-window)))
	if len(inWindow) < max {
		return false, 0
	}
	retry := inWindow[max-1].Add(window).Sub(now)
	if retry <= 0 {
		return false, 0
	}
	return true, retry
}

// evaluateProgressiveLockout applies the first tier (most severe first) whose threshold is met
// and whose lock, measured from the newest failure, is still running.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	newest := newestFirst(failures)[0]
	for _, tier := range tiers {
		if tier.Threshold <= 0 || len(failures) < tier.Threshold {
			continue
		}
		if until := newest.Add(tier.Duration); until.After(now) {
			return true, until.Sub(now)
		}
	}
	return false, 0
}

func since(ts []time.Time, cut time.Time) []time.Time {
	out := make([]time.Time, 0, len(ts))
	for _, t := range ts {
		if t.After(cut) {
			out = append(out, t)
		}
	}
	return out
}

func newestFirst(ts []time.Time) []time.Time {
	out := slices.Clone(ts)
	slices.SortFunc(out, func(a, b time.Time) int { return b.Compare(a) })
	return out
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	httpio.WriteMessage(w, http.StatusTooManyRequests, msgRateLimited)
}
