package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/the-code-writer/deriv-bots-app-sub001/config"
	"github.com/the-code-writer/deriv-bots-app-sub001/pkg/id"
	"github.com/the-code-writer/deriv-bots-app-sub001/predict"
	"github.com/the-code-writer/deriv-bots-app-sub001/reward"
	"github.com/the-code-writer/deriv-bots-app-sub001/risk"
	"github.com/the-code-writer/deriv-bots-app-sub001/sequence"
)

var (
	// ErrInvalidProfit marks a non-finite reported profit. The engine keeps
	// its prior state; the caller may retry with a valid value.
	ErrInvalidProfit = errors.New("reported profit is not a finite number")

	// ErrInvalidStake marks an internally produced non-positive stake.
	// Continuing would corrupt state; the session must be aborted.
	ErrInvalidStake = errors.New("computed stake is not positive")
)

const ReasonPaused = "paused"

// Engine owns all mutable state for one trading session and turns reported
// outcomes into the next TradeDecision. It is a strictly sequential state
// machine: one session, one caller, no internal locking.
type Engine struct {
	cfg *config.Config
	log *logrus.Entry
	now func() time.Time

	sessionID string
	seq       *sequence.Sequencer
	gov       *risk.Governor
	rewards   *reward.Table
	policy    predict.Policy
	family    reward.Family

	initialBalance float64
	session        Session
	stats          Statistics
	active         bool
}

// Option adjusts engine construction; used mainly by tests to inject a
// clock, logger, or deterministic prediction policy.
type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithPolicy(p predict.Policy) Option { return func(e *Engine) { e.policy = p } }

func WithRewards(t *reward.Table) Option { return func(e *Engine) { e.rewards = t } }

func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) { e.log = l.WithField("component", "engine") }
}

// New validates cfg and builds a session engine. Configuration errors are
// fatal to session start.
func New(cfg *config.Config, initialBalance float64, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if initialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", initialBalance)
	}

	e := &Engine{
		cfg:            cfg,
		now:            time.Now,
		sessionID:      id.New(),
		family:         reward.Family(cfg.Strategy.ContractFamily),
		initialBalance: initialBalance,
		active:         true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		e.log = logrus.StandardLogger().WithField("component", "engine")
	}
	e.log = e.log.WithField("session", e.sessionID)

	s := cfg.Strategy
	seq, err := sequence.New(sequence.Config{
		InitialStake:        s.InitialStake,
		Multipliers:         s.Sequence(),
		Protection:          s.EnableSequenceProtection,
		Mode:                sequence.Mode(s.RecoveryMode),
		RecoveryMultipliers: modeMultipliers(s.RecoveryMultipliers),
		Escalation:          s.RecoveryEscalation,
		LossLimit:           s.LossLimit,
		CapFraction:         s.RecoveryCapFraction,
		MaxRecoveryAttempts: s.MaxRecoveryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("sequencer: %w", err)
	}
	e.seq = seq

	cb := cfg.CircuitBreaker
	window, err := cb.ParseRapidLossWindow()
	if err != nil {
		return nil, fmt.Errorf("rapid loss window: %w", err)
	}
	cooldown, err := cb.ParseCooldown()
	if err != nil {
		return nil, fmt.Errorf("cooldown: %w", err)
	}
	e.gov = risk.NewGovernor(risk.Policy{
		MaxAbsoluteLoss:       cb.MaxAbsoluteLoss,
		MaxDailyLoss:          cb.MaxDailyLoss,
		MaxConsecutiveLosses:  cb.MaxConsecutiveLosses,
		MaxBalancePercentLoss: cb.MaxBalancePercentLoss,
		RapidLossWindow:       window,
		RapidLossThreshold:    cb.RapidLossThreshold,
		Cooldown:              cooldown,
		MaxStakePercent:       cb.MaxStakePercent,
		MinBalanceReserve:     cb.MinBalanceReserve,
	}, e.now)

	if e.rewards == nil {
		e.rewards = reward.New(familyTiers(cfg.Reward.Tiers))
	}
	if _, err := e.rewards.Lookup(e.family, s.InitialStake); err != nil {
		return nil, fmt.Errorf("reward table: %w", err)
	}

	if e.policy == nil {
		p, err := predict.ByName(s.Prediction, e.family, s.Seed, s.PredictionDigit)
		if err != nil {
			return nil, fmt.Errorf("prediction policy: %w", err)
		}
		e.policy = p
	}

	e.session = newSession(initialBalance, e.now())
	return e, nil
}

func newSession(balance float64, now time.Time) Session {
	return Session{Balance: balance, Day: dayOf(now)}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func modeMultipliers(in map[string]float64) map[sequence.Mode]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[sequence.Mode]float64, len(in))
	for k, v := range in {
		out[sequence.Mode(k)] = v
	}
	return out
}

func familyTiers(in map[string][]reward.Tier) map[reward.Family][]reward.Tier {
	if len(in) == 0 {
		return nil
	}
	out := make(map[reward.Family][]reward.Tier, len(in))
	for fam, tiers := range in {
		out[reward.Family(fam)] = tiers
	}
	return out
}

func (e *Engine) SessionID() string { return e.sessionID }

// Snapshot returns a copy of the session state for telemetry.
func (e *Engine) Snapshot() Session { return e.session }

// Stats returns a copy of the derived statistics.
func (e *Engine) Stats() Statistics { return e.stats }

// Active reports whether the engine accepts trades.
func (e *Engine) Active() bool { return e.active }

// Pause vetoes all trading without touching sequence or risk state.
func (e *Engine) Pause() { e.active = false }

// Resume lifts a pause.
func (e *Engine) Resume() { e.active = true }

// Reset hard-reinitializes the sequencer, session state, risk state, and
// statistics, restoring the engine to its post-construction state. The pause
// flag is independent: a paused engine stays paused until Resume.
func (e *Engine) Reset() {
	e.seq.Reset()
	e.gov.Reset()
	e.session = newSession(e.initialBalance, e.now())
	e.stats = Statistics{}
}

// PrepareNextTrade consumes the previous trade's outcome (nil on the first
// call), updates sequencer and governor state, evaluates stop conditions,
// and emits the next trade instruction or a refusal.
func (e *Engine) PrepareNextTrade(last *Outcome) (TradeDecision, error) {
	if !e.active {
		return e.refuse(ReasonPaused), nil
	}

	if last != nil {
		if math.IsNaN(last.Profit) || math.IsInf(last.Profit, 0) {
			return TradeDecision{}, fmt.Errorf("%w: %v", ErrInvalidProfit, last.Profit)
		}
	}

	now := e.now()
	if day := dayOf(now); day.After(e.session.Day) {
		e.session.Day = day
		e.session.TradesToday = 0
		e.session.DailyProfit = 0
	}

	if last != nil {
		if err := e.applyOutcome(last, now); err != nil {
			return TradeDecision{}, err
		}
	}

	if d, stopped := e.checkStopConditions(); stopped {
		return d, nil
	}

	stake := e.seq.Stake()
	if stake <= 0 || math.IsNaN(stake) || math.IsInf(stake, 0) {
		return TradeDecision{}, fmt.Errorf("%w: %v", ErrInvalidStake, stake)
	}

	if _, err := e.rewards.Lookup(e.family, stake); err != nil {
		return TradeDecision{}, err
	}

	if d := e.gov.ValidateStake(stake, e.session.Balance); !d.Allowed {
		return e.refuse(d.Reason()), nil
	}

	pred := e.policy.Predict()
	decision := TradeDecision{
		ShouldTrade:  true,
		Stake:        stake,
		Prediction:   pred.Digit,
		ContractType: pred.ContractType,
		Market:       e.cfg.Strategy.Market,
		Duration:     e.cfg.Strategy.Duration,
		DurationUnit: e.cfg.Strategy.DurationUnit,
		Meta:         e.meta(),
	}

	e.log.WithFields(logrus.Fields{
		"stake":    stake,
		"contract": pred.ContractType,
		"digit":    pred.Digit,
		"step":     e.seq.Label(),
	}).Debug("next trade prepared")

	return decision, nil
}

// applyOutcome feeds the settled trade into session state, statistics, the
// sequencer, and the risk governor.
func (e *Engine) applyOutcome(o *Outcome, now time.Time) error {
	e.session.TotalProfit += o.Profit
	e.session.DailyProfit += o.Profit
	if o.Balance > 0 {
		e.session.Balance = o.Balance
	} else {
		e.session.Balance += o.Profit
	}
	e.session.TradesToday++
	e.session.LastTradeAt = now

	if o.Won {
		e.stats.Wins++
		e.session.ConsecutiveWins++
		e.session.ConsecutiveLosses = 0
		e.session.StreakLoss = 0
		if e.session.ConsecutiveWins > e.stats.MaxWinStreak {
			e.stats.MaxWinStreak = e.session.ConsecutiveWins
		}

		res := e.seq.OnWin(o.Profit)
		if res.SequenceCompleted {
			e.stats.SequencesCompleted++
			if e.stats.SequencesCompleted == 1 || res.SequenceProfit > e.stats.BestSequenceProfit {
				e.stats.BestSequenceProfit = res.SequenceProfit
			}
			if e.stats.SequencesCompleted == 1 || res.SequenceProfit < e.stats.WorstSequenceProfit {
				e.stats.WorstSequenceProfit = res.SequenceProfit
			}
			e.log.WithField("profit", res.SequenceProfit).Info("sequence completed")
		}
		if res.ExitedRecovery {
			e.log.Info("recovered, sequence restarted")
		}
		return nil
	}

	loss := math.Abs(o.Profit)

	e.stats.Losses++
	e.session.ConsecutiveLosses++
	e.session.ConsecutiveWins = 0
	e.session.StreakLoss += loss
	if e.session.ConsecutiveLosses > e.stats.MaxLossStreak {
		e.stats.MaxLossStreak = e.session.ConsecutiveLosses
	}

	if err := e.gov.RecordLoss(loss); err != nil {
		return err
	}

	res := e.seq.OnLoss(e.session.StreakLoss)
	if res.EnteredRecovery {
		e.log.WithField("streak_loss", e.session.StreakLoss).Warn("entering recovery")
	}
	if res.HardReset {
		e.stats.HardResets++
		e.session.StreakLoss = 0
		e.log.Warn("recovery attempts exhausted, hard reset")
	}
	return nil
}

// checkStopConditions evaluates the stop rules in precedence order; the
// first match wins.
func (e *Engine) checkStopConditions() (TradeDecision, bool) {
	s := e.cfg.Strategy

	if e.session.TradesToday >= s.MaxDailyTrades {
		return e.refuse(fmt.Sprintf("Daily trade limit reached (%d)", s.MaxDailyTrades)), true
	}
	if e.session.TotalProfit >= s.ProfitTarget {
		return e.refuse(fmt.Sprintf("Profit target reached: %.2f >= %.2f", e.session.TotalProfit, s.ProfitTarget)), true
	}
	if e.session.TotalProfit <= -s.LossLimit {
		return e.refuse(fmt.Sprintf("Loss limit reached: %.2f <= -%.2f", e.session.TotalProfit, s.LossLimit)), true
	}
	if limit := e.cfg.CircuitBreaker.MaxConsecutiveLosses; limit > 0 && e.session.ConsecutiveLosses >= limit {
		return e.refuse(fmt.Sprintf("Consecutive loss limit reached (%d)", limit)), true
	}

	if e.gov.CheckRapidLosses() && !e.gov.InSafetyMode() {
		e.gov.EnterSafetyMode(fmt.Sprintf("%d losses within %s", e.gov.WindowLosses(), e.cfg.CircuitBreaker.RapidLossWindow))
	}
	if rem := e.gov.CooldownRemaining(); rem > 0 {
		return e.refuse(fmt.Sprintf("Rapid loss cooldown active: %s remaining (%s)", rem.Round(time.Second), e.gov.TripReason())), true
	}

	if d := e.gov.CheckCircuitBreakers(e.exposure()); !d.Allowed {
		return e.refuse("Circuit breaker tripped: " + d.Reason()), true
	}

	return TradeDecision{}, false
}

func (e *Engine) exposure() risk.Exposure {
	total := -e.session.TotalProfit
	if total < 0 {
		total = 0
	}
	daily := -e.session.DailyProfit
	if daily < 0 {
		daily = 0
	}
	return risk.Exposure{
		TotalLoss:         total,
		DailyLoss:         daily,
		ConsecutiveLosses: e.session.ConsecutiveLosses,
		Balance:           e.session.Balance,
	}
}

func (e *Engine) meta() Meta {
	return Meta{
		SessionID:        e.sessionID,
		SequencePosition: e.seq.Position(),
		InRecovery:       e.seq.InRecovery(),
		SequenceLabel:    e.seq.Label(),
	}
}

func (e *Engine) refuse(reason string) TradeDecision {
	e.log.WithField("reason", reason).Debug("trade refused")
	return TradeDecision{ShouldTrade: false, Reason: reason, Meta: e.meta()}
}
