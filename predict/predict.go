package predict

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/the-code-writer/deriv-bots-app-sub001/reward"
)

// Prediction is the contract parameter a policy selects for the next trade:
// the digit barrier for digit contracts, or the direction for rise/fall.
type Prediction struct {
	Digit        int
	ContractType string // e.g. "DIGITDIFF", "CALL"
}

// Policy selects the predicted digit/direction for each trade. Randomness
// is injected at construction so sessions are reproducible under a seed.
type Policy interface {
	Predict() Prediction
}

var registry = make(map[string]Policy)

// Register adds a policy under a name, replacing any existing entry.
func Register(name string, p Policy) {
	registry[name] = p
}

// Get returns a registered policy or nil.
func Get(name string) Policy {
	return registry[name]
}

// ByName builds one of the built-in policies for a contract family.
// seed drives the random and rotate policies; digit pins the fixed policy.
func ByName(name string, family reward.Family, seed int64, digit int) (Policy, error) {
	contract := contractType(family)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random", "":
		return &RandomDigit{
			rng:      rand.New(rand.NewSource(seed)),
			contract: contract,
		}, nil

	case "fixed":
		if digit < 0 || digit > 9 {
			return nil, fmt.Errorf("fixed digit must be in [0,9], got %d", digit)
		}
		return FixedDigit{Digit: digit, Contract: contract}, nil

	case "rotate":
		return &RotateDigit{contract: contract}, nil

	default:
		if p := Get(name); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("unknown prediction policy %q (supported: random, fixed, rotate)", name)
	}
}

// contractType maps a payout family to the broker contract code.
func contractType(family reward.Family) string {
	switch family {
	case reward.DigitOver:
		return "DIGITOVER"
	case reward.DigitUnder:
		return "DIGITUNDER"
	case reward.DigitEven:
		return "DIGITEVEN"
	case reward.DigitOdd:
		return "DIGITODD"
	case reward.RiseFall:
		return "CALL"
	default:
		return "DIGITDIFF"
	}
}

// RandomDigit picks a uniformly random digit per trade from its own seeded
// source. Never uses the global rand state.
type RandomDigit struct {
	rng      *rand.Rand
	contract string
}

func (p *RandomDigit) Predict() Prediction {
	return Prediction{Digit: p.rng.Intn(10), ContractType: p.contract}
}

// FixedDigit always predicts the same digit.
type FixedDigit struct {
	Digit    int
	Contract string
}

func (p FixedDigit) Predict() Prediction {
	return Prediction{Digit: p.Digit, ContractType: p.Contract}
}

// RotateDigit cycles 0..9 deterministically.
type RotateDigit struct {
	next     int
	contract string
}

func (p *RotateDigit) Predict() Prediction {
	d := p.next
	p.next = (p.next + 1) % 10
	return Prediction{Digit: d, ContractType: p.contract}
}
