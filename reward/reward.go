package reward

import (
	"errors"
	"fmt"
	"sort"
)

// Family identifies a contract family with its own payout table.
type Family string

const (
	DigitDiff  Family = "digitdiff"
	DigitOver  Family = "digitover"
	DigitUnder Family = "digitunder"
	DigitEven  Family = "digiteven"
	DigitOdd   Family = "digitodd"
	RiseFall   Family = "risefall"
)

var (
	ErrUnsupportedFamily = errors.New("unsupported contract family")
	ErrInvalidStake      = errors.New("stake must be positive")
)

// Tier maps a stake band to the payout percentage the broker quotes for it.
// Bands are inclusive on both ends.
type Tier struct {
	MinStake float64 `json:"min_stake" yaml:"min_stake"`
	MaxStake float64 `json:"max_stake" yaml:"max_stake"`
	Percent  float64 `json:"percent" yaml:"percent"`
}

// Table holds payout tiers per contract family, sorted ascending by stake.
// A Table is immutable after construction; lookups are pure.
type Table struct {
	tiers map[Family][]Tier
}

// Builtin returns the default payout table observed on volatility-index
// contracts. Percentages shrink slightly at larger stakes.
func Builtin() *Table {
	return &Table{tiers: map[Family][]Tier{
		DigitDiff: {
			{MinStake: 0.35, MaxStake: 10, Percent: 9.5},
			{MinStake: 10, MaxStake: 100, Percent: 9.2},
			{MinStake: 100, MaxStake: 1000, Percent: 8.8},
		},
		DigitOver: {
			{MinStake: 0.35, MaxStake: 10, Percent: 23.5},
			{MinStake: 10, MaxStake: 100, Percent: 23.1},
			{MinStake: 100, MaxStake: 1000, Percent: 22.4},
		},
		DigitUnder: {
			{MinStake: 0.35, MaxStake: 10, Percent: 23.5},
			{MinStake: 10, MaxStake: 100, Percent: 23.1},
			{MinStake: 100, MaxStake: 1000, Percent: 22.4},
		},
		DigitEven: {
			{MinStake: 0.35, MaxStake: 10, Percent: 95.4},
			{MinStake: 10, MaxStake: 100, Percent: 94.8},
			{MinStake: 100, MaxStake: 1000, Percent: 93.9},
		},
		DigitOdd: {
			{MinStake: 0.35, MaxStake: 10, Percent: 95.4},
			{MinStake: 10, MaxStake: 100, Percent: 94.8},
			{MinStake: 100, MaxStake: 1000, Percent: 93.9},
		},
		RiseFall: {
			{MinStake: 0.35, MaxStake: 10, Percent: 91.3},
			{MinStake: 10, MaxStake: 100, Percent: 90.5},
			{MinStake: 100, MaxStake: 1000, Percent: 89.2},
		},
	}}
}

// New builds a table from the builtin defaults with per-family overrides
// applied on top. Overridden families replace the builtin tiers wholesale.
func New(overrides map[Family][]Tier) *Table {
	t := Builtin()
	for fam, tiers := range overrides {
		sorted := make([]Tier, len(tiers))
		copy(sorted, tiers)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinStake < sorted[j].MinStake })
		t.tiers[fam] = sorted
	}
	return t
}

// Families lists the contract families the table covers, sorted by name.
func (t *Table) Families() []Family {
	out := make([]Family, 0, len(t.tiers))
	for fam := range t.tiers {
		out = append(out, fam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the payout percentage for the tier containing stake.
// Stakes above the table's top band clamp to the last tier rather than
// extrapolating; stakes below the bottom band clamp to the first.
func (t *Table) Lookup(fam Family, stake float64) (float64, error) {
	if stake <= 0 {
		return 0, fmt.Errorf("%w: %.2f", ErrInvalidStake, stake)
	}
	tiers, ok := t.tiers[fam]
	if !ok || len(tiers) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFamily, fam)
	}
	for _, tier := range tiers {
		if stake >= tier.MinStake && stake <= tier.MaxStake {
			return tier.Percent, nil
		}
	}
	if stake > tiers[len(tiers)-1].MaxStake {
		return tiers[len(tiers)-1].Percent, nil
	}
	return tiers[0].Percent, nil
}

// Profit returns the expected win profit for a stake: stake x percent / 100.
func (t *Table) Profit(fam Family, stake float64) (float64, error) {
	pct, err := t.Lookup(fam, stake)
	if err != nil {
		return 0, err
	}
	return stake * pct / 100, nil
}
