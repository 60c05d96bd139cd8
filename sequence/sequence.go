package sequence

import (
	"fmt"
	"math"
)

// Mode selects how aggressively the sequencer sizes recovery stakes.
type Mode string

const (
	Conservative Mode = "conservative"
	Neutral      Mode = "neutral"
	Aggressive   Mode = "aggressive"
)

// Variants maps a named stake progression to its multiplier list.
// The default "1-3-2-6" progression banks profit on the third win.
var Variants = map[string][]float64{
	"1-3-2-6":    {1, 3, 2, 6},
	"paroli":     {1, 2, 4},
	"martingale": {1, 2, 4, 8},
	"dalembert":  {1, 2, 3, 4, 5},
	"fibonacci":  {1, 1, 2, 3, 5, 8},
}

// DefaultMultipliers are the per-mode recovery stake multipliers. They are
// configuration data, not policy; sessions may override them.
var DefaultMultipliers = map[Mode]float64{
	Conservative: 8.5,
	Neutral:      10.25,
	Aggressive:   12.5,
}

// Config fixes the sequencer's policy for one session.
type Config struct {
	InitialStake float64
	Multipliers  []float64 // stake progression, e.g. [1,3,2,6]

	// Recovery policy. Protection keeps the sequence alive after a loss by
	// switching to recovery sizing instead of resetting to position 0.
	Protection          bool
	Mode                Mode
	RecoveryMultipliers map[Mode]float64 // empty entries fall back to DefaultMultipliers
	Escalation          float64          // per-extra-loss factor while recovering, >= 1
	LossLimit           float64
	CapFraction         float64 // recovery stake cap = LossLimit * CapFraction
	MaxRecoveryAttempts int
}

func (c Config) multiplier() float64 {
	if m, ok := c.RecoveryMultipliers[c.Mode]; ok && m > 0 {
		return m
	}
	return DefaultMultipliers[c.Mode]
}

func (c Config) cap() float64 {
	if c.CapFraction <= 0 {
		return math.MaxFloat64
	}
	return c.LossLimit * c.CapFraction
}

// Result reports what a single outcome did to the sequencer.
type Result struct {
	SequenceCompleted bool
	SequenceProfit    float64 // profit of the completed run, set with SequenceCompleted
	EnteredRecovery   bool
	ExitedRecovery    bool
	HardReset         bool
}

// Sequencer holds progressive-stake state for one session. It is not safe
// for concurrent use; a session drives it strictly sequentially.
type Sequencer struct {
	cfg Config

	position       int
	stake          float64
	sequenceProfit float64
	inRecovery     bool
	attempts       int
}

func New(cfg Config) (*Sequencer, error) {
	if cfg.InitialStake <= 0 {
		return nil, fmt.Errorf("initial stake must be positive, got %.2f", cfg.InitialStake)
	}
	if len(cfg.Multipliers) == 0 {
		return nil, fmt.Errorf("multiplier sequence must not be empty")
	}
	for i, m := range cfg.Multipliers {
		if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("multiplier %d must be a positive number, got %v", i, m)
		}
	}
	if cfg.Protection {
		if cfg.multiplier() <= 0 {
			return nil, fmt.Errorf("no recovery multiplier for mode %q", cfg.Mode)
		}
		if cfg.MaxRecoveryAttempts <= 0 {
			return nil, fmt.Errorf("max recovery attempts must be positive, got %d", cfg.MaxRecoveryAttempts)
		}
	}
	if cfg.Escalation == 0 {
		cfg.Escalation = 1
	}
	if cfg.Escalation < 1 {
		return nil, fmt.Errorf("escalation factor must be >= 1, got %v", cfg.Escalation)
	}

	s := &Sequencer{cfg: cfg}
	s.Reset()
	return s, nil
}

// Reset restores the initial state: position 0, base stake, no recovery.
func (s *Sequencer) Reset() {
	s.position = 0
	s.stake = s.cfg.InitialStake * s.cfg.Multipliers[0]
	s.sequenceProfit = 0
	s.inRecovery = false
	s.attempts = 0
}

func (s *Sequencer) Stake() float64 { return s.stake }

func (s *Sequencer) Position() int { return s.position }

func (s *Sequencer) InRecovery() bool { return s.inRecovery }

func (s *Sequencer) RecoveryAttempts() int { return s.attempts }

func (s *Sequencer) SequenceProfit() float64 { return s.sequenceProfit }

// Label describes the current step, e.g. "3/4" or "recovery#2".
func (s *Sequencer) Label() string {
	if s.inRecovery {
		return fmt.Sprintf("recovery#%d", s.attempts)
	}
	return fmt.Sprintf("%d/%d", s.position+1, len(s.cfg.Multipliers))
}

// OnWin records a winning trade's profit and advances the progression.
// While recovering, a win that brings the running profit back to >= 0 exits
// recovery and restarts the sequence; a win that leaves a deficit keeps the
// recovery sizing aimed at the remaining shortfall.
func (s *Sequencer) OnWin(profit float64) Result {
	s.sequenceProfit += profit

	if s.inRecovery {
		if s.sequenceProfit >= 0 {
			s.Reset()
			return Result{ExitedRecovery: true}
		}
		s.stake = s.recoveryStake(-s.sequenceProfit)
		return Result{}
	}

	s.position++
	if s.position >= len(s.cfg.Multipliers) {
		res := Result{SequenceCompleted: true, SequenceProfit: s.sequenceProfit}
		s.Reset()
		return res
	}
	s.stake = s.cfg.InitialStake * s.cfg.Multipliers[s.position]
	return Result{}
}

// OnLoss records a losing trade. lossSoFar is the caller's running loss for
// the current losing streak, used to size the recovery stake.
//
// With protection off the sequence simply restarts, forfeiting any profit
// accumulated in the current run. With protection on the sequencer enters
// recovery, sizing the next stake to recoup lossSoFar on a single win; each
// further loss escalates the stake, bounded by the cap, until
// MaxRecoveryAttempts is exhausted and the sequencer hard-resets.
func (s *Sequencer) OnLoss(lossSoFar float64) Result {
	// the caller's streak total is authoritative for the deficit
	s.sequenceProfit = -lossSoFar

	if !s.cfg.Protection {
		s.Reset()
		return Result{}
	}

	if !s.inRecovery {
		s.inRecovery = true
		s.attempts = 1
		s.stake = s.recoveryStake(lossSoFar)
		return Result{EnteredRecovery: true}
	}

	s.attempts++
	if s.attempts > s.cfg.MaxRecoveryAttempts {
		s.Reset()
		return Result{HardReset: true}
	}

	next := s.recoveryStake(lossSoFar) * math.Pow(s.cfg.Escalation, float64(s.attempts-1))
	if limit := s.cfg.cap(); next > limit {
		next = limit
	}
	// never shrink the stake mid-recovery
	if next > s.stake {
		s.stake = next
	}
	return Result{}
}

// recoveryStake sizes a stake to recoup deficit on one win, capped at the
// configured fraction of the loss limit.
func (s *Sequencer) recoveryStake(deficit float64) float64 {
	stake := deficit * s.cfg.multiplier()
	if limit := s.cfg.cap(); stake > limit {
		stake = limit
	}
	return stake
}
