package executor

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/the-code-writer/deriv-bots-app-sub001/engine"
	"github.com/the-code-writer/deriv-bots-app-sub001/reward"
)

// Sim settles trades instantly against the reward table: wins pay the
// quoted percentage, losses forfeit the stake. Win probability and the
// random source are fixed at construction so runs replay exactly.
type Sim struct {
	rng     *rand.Rand
	rewards *reward.Table
	winProb float64
	balance float64
}

func NewSim(rewards *reward.Table, balance, winProb float64, seed int64) (*Sim, error) {
	if balance <= 0 {
		return nil, fmt.Errorf("balance must be positive, got %.2f", balance)
	}
	if winProb < 0 || winProb > 1 {
		return nil, fmt.Errorf("win probability must be in [0,1], got %v", winProb)
	}
	return &Sim{
		rng:     rand.New(rand.NewSource(seed)),
		rewards: rewards,
		winProb: winProb,
		balance: balance,
	}, nil
}

func (s *Sim) Balance() float64 { return s.balance }

func (s *Sim) Execute(ctx context.Context, d engine.TradeDecision) (engine.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return engine.Outcome{}, err
	}
	if !d.ShouldTrade {
		return engine.Outcome{}, fmt.Errorf("refused decision passed to executor: %s", d.Reason)
	}
	if d.Stake > s.balance {
		return engine.Outcome{}, fmt.Errorf("stake %.2f exceeds simulated balance %.2f", d.Stake, s.balance)
	}

	family := familyOf(d.ContractType)
	profit, err := s.rewards.Profit(family, d.Stake)
	if err != nil {
		return engine.Outcome{}, fmt.Errorf("settle %s: %w", d.ContractType, err)
	}

	if s.rng.Float64() < s.winProb {
		s.balance += profit
		return engine.Outcome{Won: true, Profit: profit, Balance: s.balance}, nil
	}

	s.balance -= d.Stake
	return engine.Outcome{Won: false, Profit: -d.Stake, Balance: s.balance}, nil
}

// familyOf maps broker contract codes back to payout families.
func familyOf(contractType string) reward.Family {
	switch contractType {
	case "DIGITOVER":
		return reward.DigitOver
	case "DIGITUNDER":
		return reward.DigitUnder
	case "DIGITEVEN":
		return reward.DigitEven
	case "DIGITODD":
		return reward.DigitOdd
	case "CALL", "PUT":
		return reward.RiseFall
	default:
		return reward.DigitDiff
	}
}
