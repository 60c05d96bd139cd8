package risk

import (
	"fmt"
	"math"
	"time"
)

type Violation struct {
	Code string
	Msg  string
}

// Decision is the result of a governor check. Policy violations are data,
// never errors: refusing to trade is expected behavior.
type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason flattens the violations into one human-readable string.
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	out := d.Violations[0].Msg
	for _, v := range d.Violations[1:] {
		out += "; " + v.Msg
	}
	return out
}

type lossEvent struct {
	at     time.Time
	amount float64
}

// Governor is the safety layer that can veto trading regardless of sequencer
// state. It owns the rapid-loss window and the safety-mode trip latch; the
// engine supplies profit/loss exposure at each check.
type Governor struct {
	policy Policy
	now    func() time.Time

	tripped      bool
	tripReason   string
	trippedAt    time.Time
	inSafetyMode bool

	window []lossEvent
}

// NewGovernor builds a governor. now may be nil, defaulting to time.Now;
// tests inject a fake clock.
func NewGovernor(p Policy, now func() time.Time) *Governor {
	if now == nil {
		now = time.Now
	}
	return &Governor{policy: p, now: now}
}

func (g *Governor) Policy() Policy { return g.policy }

func (g *Governor) Tripped() bool { return g.tripped }

func (g *Governor) TripReason() string { return g.tripReason }

func (g *Governor) InSafetyMode() bool { return g.inSafetyMode }

func (g *Governor) TrippedAt() time.Time { return g.trippedAt }

// CheckCircuitBreakers trips the governor if any configured loss ceiling is
// crossed. First violation wins; on trip the governor enters safety mode.
func (g *Governor) CheckCircuitBreakers(exp Exposure) Decision {
	d := Decision{Allowed: true}

	switch {
	case g.policy.MaxAbsoluteLoss > 0 && exp.TotalLoss >= g.policy.MaxAbsoluteLoss:
		d.add("ABSOLUTE_LOSS", fmt.Sprintf("cumulative loss %.2f reached ceiling %.2f",
			exp.TotalLoss, g.policy.MaxAbsoluteLoss))
	case g.policy.MaxDailyLoss > 0 && exp.DailyLoss >= g.policy.MaxDailyLoss:
		d.add("DAILY_LOSS", fmt.Sprintf("daily loss %.2f reached ceiling %.2f",
			exp.DailyLoss, g.policy.MaxDailyLoss))
	case g.policy.MaxConsecutiveLosses > 0 && exp.ConsecutiveLosses >= g.policy.MaxConsecutiveLosses:
		d.add("CONSECUTIVE_LOSSES", fmt.Sprintf("%d consecutive losses reached maximum %d",
			exp.ConsecutiveLosses, g.policy.MaxConsecutiveLosses))
	case g.policy.MaxBalancePercentLoss > 0 && exp.Balance > 0 &&
		exp.TotalLoss >= exp.Balance*g.policy.MaxBalancePercentLoss:
		d.add("BALANCE_PERCENT_LOSS", fmt.Sprintf("cumulative loss %.2f reached %.0f%% of balance %.2f",
			exp.TotalLoss, 100*g.policy.MaxBalancePercentLoss, exp.Balance))
	}

	if !d.Allowed {
		g.EnterSafetyMode(d.Violations[0].Msg)
	}
	return d
}

// RecordLoss appends a loss to the rolling rapid-loss window. Amounts must
// be positive and finite; anything else is an invariant violation.
func (g *Governor) RecordLoss(amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("loss amount must be a non-negative finite number, got %v", amount)
	}
	g.window = append(g.window, lossEvent{at: g.now(), amount: amount})
	return nil
}

// CheckRapidLosses prunes the window to the configured span and reports
// whether the losses within it meet the rapid-loss threshold.
func (g *Governor) CheckRapidLosses() bool {
	if g.policy.RapidLossThreshold <= 0 || g.policy.RapidLossWindow <= 0 {
		return false
	}

	// entries strictly older than the boundary fall out of the window
	cutoff := g.now().Add(-g.policy.RapidLossWindow)
	keep := 0
	for keep < len(g.window) && g.window[keep].at.Before(cutoff) {
		keep++
	}
	g.window = g.window[keep:]

	return len(g.window) >= g.policy.RapidLossThreshold
}

// WindowLosses returns the number of losses currently inside the window,
// after pruning.
func (g *Governor) WindowLosses() int {
	g.CheckRapidLosses()
	return len(g.window)
}

// EnterSafetyMode latches the trip state. Trading stays vetoed until the
// cooldown elapses past the trip timestamp.
func (g *Governor) EnterSafetyMode(reason string) {
	g.tripped = true
	g.tripReason = reason
	g.trippedAt = g.now()
	g.inSafetyMode = true
}

// CooldownRemaining reports how long the safety-mode veto still holds.
// Once it reaches zero the safety flag clears on the next call.
func (g *Governor) CooldownRemaining() time.Duration {
	if !g.inSafetyMode {
		return 0
	}
	remaining := g.trippedAt.Add(g.policy.Cooldown).Sub(g.now())
	if remaining <= 0 {
		g.inSafetyMode = false
		return 0
	}
	return remaining
}

// ValidateStake checks a proposed stake against the account balance. It
// returns structured violations so callers can report without aborting.
func (g *Governor) ValidateStake(stake, balance float64) Decision {
	d := Decision{Allowed: true}

	if stake <= 0 || math.IsNaN(stake) || math.IsInf(stake, 0) {
		d.add("BAD_STAKE", fmt.Sprintf("stake must be a positive finite number, got %v", stake))
		return d
	}
	if balance <= 0 {
		d.add("NO_BALANCE", fmt.Sprintf("account balance %.2f is not positive", balance))
		return d
	}

	if g.policy.MaxStakePercent > 0 {
		if maxStake := balance * g.policy.MaxStakePercent; stake > maxStake {
			d.add("STAKE_TOO_LARGE", fmt.Sprintf("stake %.2f exceeds %.0f%% of balance (max %.2f)",
				stake, 100*g.policy.MaxStakePercent, maxStake))
		}
	}
	if g.policy.MinBalanceReserve > 0 && stake > balance-g.policy.MinBalanceReserve {
		d.add("RESERVE_BREACH", fmt.Sprintf("stake %.2f would leave less than the %.2f reserve (balance %.2f)",
			stake, g.policy.MinBalanceReserve, balance))
	}

	return d
}

// Reset clears the trip latch, safety mode, and the rapid-loss window.
func (g *Governor) Reset() {
	g.tripped = false
	g.tripReason = ""
	g.trippedAt = time.Time{}
	g.inSafetyMode = false
	g.window = nil
}
