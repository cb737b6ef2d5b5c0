package authapi

import (
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	failures := []time.Time{
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-6 * time.Minute),
	}

	blocked, retry := evaluateWindowThrottle(now, failures, 2, 5*time.Minute)
	if !blocked {
		t.Fatalf("expected window throttle to block")
	}
	if retry != 3*time.Minute {
		t.Fatalf("expected retry=3m, got %v", retry)
	}

	blocked, retry = evaluateWindowThrottle(now, failures, 3, 5*time.Minute)
	if blocked {
		t.Fatalf("expected window throttle to allow")
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestEvaluateProgressiveLockout_ShortTier(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	failures := []time.Time{
		now.Add(-30 * time.Second),
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-3 * time.Minute),
		now.Add(-4 * time.Minute),
	}

	blocked, retry := evaluateProgressiveLockout(now, failures, []lockoutTier{
		{Threshold: 20, Duration: 2 * time.Hour},
		{Threshold: 10, Duration: 30 * time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
	})
	if !blocked {
		t.Fatalf("expected short-tier lockout")
	}
	if retry != 4*time.Minute+30*time.Second {
		t.Fatalf("unexpected retry duration: %v", retry)
	}
}

func TestEvaluateProgressiveLockout_ClearsAfterDuration(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	failures := []time.Time{
		now.Add(-6 * time.Minute),
		now.Add(-7 * time.Minute),
		now.Add(-8 * time.Minute),
		now.Add(-9 * time.Minute),
		now.Add(-10 * time.Minute),
	}

	blocked, retry := evaluateProgressiveLockout(now, failures, []lockoutTier{
		{Threshold: 5, Duration: 5 * time.Minute},
	})
	if blocked {
		t.Fatalf("expected lockout to clear, retry=%v", retry)
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestEvaluateProgressiveLockout_SevereTierWins(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	failures := make([]time.Time, 0, 20)
	for i := 0; i < 20; i++ {
		failures = append(failures, now.Add(-time.Duration(i+1)*time.Minute))
	}

	blocked, retry := evaluateProgressiveLockout(now, failures, []lockoutTier{
		{Threshold: 20, Duration: 2 * time.Hour},
		{Threshold: 10, Duration: 30 * time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
	})
	if !blocked {
		t.Fatalf("expected severe-tier lockout")
	}

	want := failures[0].Add(2 * time.Hour).Sub(now)
	if retry != want {
		t.Fatalf("expected retry=%v, got %v", want, retry)
	}
}

func TestLoginThrottle_IPWindowAndEmailLockout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginIPMax = 3
	cfg.LoginIPWindow = time.Minute
	cfg.LockoutShortThreshold = 2
	cfg.LockoutShortDuration = 10 * time.Minute
	cfg.LockoutLongThreshold = 0
	cfg.LockoutSevereThreshold = 0

	th := newLoginThrottle(cfg)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	th.recordFailure("10.0.0.1", "a@x.com", now)
	if blocked, _ := th.check("10.0.0.1", "a@x.com", now); blocked {
		t.Fatalf("one failure must not block")
	}

	th.recordFailure("10.0.0.2", "a@x.com", now.Add(time.Second))
	blocked, retry := th.check("10.0.0.3", "a@x.com", now.Add(2*time.Second))
	if !blocked {
		t.Fatalf("expected email lockout regardless of IP")
	}
	if retry != 10*time.Minute-time.Second {
		t.Fatalf("unexpected retry: %v", retry)
	}
	if blocked, _ := th.check("10.0.0.3", "b@x.com", now.Add(2*time.Second)); blocked {
		t.Fatalf("other emails must not be locked")
	}

	th.reset("a@x.com")
	if blocked, _ := th.check("10.0.0.3", "a@x.com", now.Add(3*time.Second)); blocked {
		t.Fatalf("reset must clear email lockout")
	}

	for i := 0; i < 3; i++ {
		th.recordFailure("10.0.0.9", "", now.Add(time.Duration(i)*time.Second))
	}
	blocked, retry = th.check("10.0.0.9", "c@x.com", now.Add(10*time.Second))
	if !blocked || retry != 50*time.Second {
		t.Fatalf("expected ip window block with 50s retry, got blocked=%v retry=%v", blocked, retry)
	}
	if blocked, _ := th.check("10.0.0.9", "c@x.com", now.Add(61*time.Second)); blocked {
		t.Fatalf("ip window must clear")
	}
}

func TestLoginThrottle_BoundsHistory(t *testing.T) {
	cfg := DefaultConfig()
	th := newLoginThrottle(cfg)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		th.recordFailure("10.0.0.1", "a@x.com", now.Add(time.Duration(i)*time.Millisecond))
	}
	if n := len(th.byEmail["a@x.com"]); n != th.keep {
		t.Fatalf("expected history capped at %d, got %d", th.keep, n)
	}
}

func TestLoginThrottle_SevereLockOutlivesUserWindow(t *testing.T) {
	cfg := DefaultConfig()
	th := newLoginThrottle(cfg)
	t0 := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	for i := 0; i < cfg.LockoutSevereThreshold; i++ {
		th.recordFailure("", "a@x.com", t0.Add(time.Duration(i)*time.Second))
	}
	newest := t0.Add(time.Duration(cfg.LockoutSevereThreshold-1) * time.Second)

	at := t0.Add(90 * time.Minute)
	blocked, retry := th.check("", "a@x.com", at)
	if !blocked {
		t.Fatalf("severe lock must hold past the %v user window", cfg.LoginUserWindow)
	}
	if want := newest.Add(cfg.LockoutSevereDuration).Sub(at); retry != want {
		t.Fatalf("retry=%v want %v", retry, want)
	}

	if blocked, _ := th.check("", "a@x.com", newest.Add(cfg.LockoutSevereDuration)); blocked {
		t.Fatalf("severe lock must lift after its duration")
	}

	// A sweep at +90m keeps the history alive.
	th.mu.Lock()
	th.sweepLocked(at)
	th.mu.Unlock()
	if len(th.byEmail["a@x.com"]) == 0 {
		t.Fatalf("sweep dropped a history that still backs a lock")
	}
}

func TestLoginThrottle_CountsOnlyWithinUserWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockoutLongThreshold = 0
	cfg.LockoutSevereThreshold = 0
	th := newLoginThrottle(cfg)
	t0 := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	th.recordFailure("", "a@x.com", t0)
	later := t0.Add(cfg.LoginUserWindow + time.Minute)
	for i := 0; i < cfg.LockoutShortThreshold-1; i++ {
		th.recordFailure("", "a@x.com", later.Add(time.Duration(i)*time.Second))
	}

	if blocked, _ := th.check("", "a@x.com", later.Add(10*time.Second)); blocked {
		t.Fatalf("a failure older than the user window must not count toward lockout")
	}
}
