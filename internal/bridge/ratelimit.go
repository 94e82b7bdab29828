package bridge

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// limitWindow is one rolling accounting window: a cumulative volume and the
// instant the window opened.
type limitWindow struct {
	start  time.Time
	volume *big.Int
}

func newLimitWindow(now time.Time) *limitWindow {
	return &limitWindow{start: now, volume: new(big.Int)}
}

// rollover performs the lazy reset: if at least one period elapsed since the
// window opened, the counter drops to zero and the window restarts at now.
// However many periods were missed, exactly one reset happens; missed
// windows collapse. Returns true if a reset occurred.
func (w *limitWindow) rollover(now time.Time, period time.Duration) bool {
	if now.Sub(w.start) < period {
		return false
	}
	w.start = now
	w.volume = new(big.Int)
	return true
}

// Reservation reports what a successful CheckAndReserve did, so the caller
// can emit window-reset events.
type Reservation struct {
	GlobalReset bool
	UserReset   bool
}

// RateLimiter tracks cumulative transfer volume against a global cap and a
// per-user cap over a rolling period. Resets are lazy: they happen on the
// next reservation after the period elapsed, never from a scheduler.
type RateLimiter struct {
	period    time.Duration
	globalCap *big.Int
	userCap   *big.Int

	global *limitWindow
	users  map[common.Address]*limitWindow
}

func NewRateLimiter(period time.Duration, globalCap, userCap *big.Int, now time.Time) *RateLimiter {
	return &RateLimiter{
		period:    period,
		globalCap: new(big.Int).Set(globalCap),
		userCap:   new(big.Int).Set(userCap),
		global:    newLimitWindow(now),
		users:     make(map[common.Address]*limitWindow),
	}
}

// CheckAndReserve admits amount for user or rejects with
// ErrRateLimitExceeded. Counters only move on acceptance, so a rejected call
// leaves both windows untouched.
func (l *RateLimiter) CheckAndReserve(user common.Address, amount *big.Int, now time.Time) (Reservation, error) {
	var res Reservation
	res.GlobalReset = l.global.rollover(now, l.period)

	uw := l.users[user]
	if uw == nil {
		uw = newLimitWindow(now)
		l.users[user] = uw
	} else {
		res.UserReset = uw.rollover(now, l.period)
	}

	next := new(big.Int).Add(l.global.volume, amount)
	if next.Cmp(l.globalCap) > 0 {
		return res, ErrRateLimitExceeded
	}
	userNext := new(big.Int).Add(uw.volume, amount)
	if userNext.Cmp(l.userCap) > 0 {
		return res, ErrRateLimitExceeded
	}

	l.global.volume = next
	uw.volume = userNext
	return res, nil
}

// Release gives back a reservation that was made in an operation whose later
// steps failed. Never drops a counter below zero.
func (l *RateLimiter) Release(user common.Address, amount *big.Int) {
	sub := func(w *limitWindow) {
		w.volume.Sub(w.volume, amount)
		if w.volume.Sign() < 0 {
			w.volume = new(big.Int)
		}
	}
	sub(l.global)
	if uw := l.users[user]; uw != nil {
		sub(uw)
	}
}

// ForceReset zeroes every window out of band. Gated by Admin/Emergency at
// the engine layer.
func (l *RateLimiter) ForceReset(now time.Time) {
	l.global = newLimitWindow(now)
	l.users = make(map[common.Address]*limitWindow)
}

// GlobalVolume returns the volume admitted in the current global window.
func (l *RateLimiter) GlobalVolume() *big.Int {
	return new(big.Int).Set(l.global.volume)
}

// UserVolume returns the volume admitted for user in its current window.
func (l *RateLimiter) UserVolume(user common.Address) *big.Int {
	if uw := l.users[user]; uw != nil {
		return new(big.Int).Set(uw.volume)
	}
	return new(big.Int)
}
