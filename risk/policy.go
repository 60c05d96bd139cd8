package risk

import "time"

// Policy fixes the governor's ceilings for one session.
type Policy struct {
	// Circuit breakers
	MaxAbsoluteLoss       float64 // e.g. 500
	MaxDailyLoss          float64 // e.g. 200
	MaxConsecutiveLosses  int     // e.g. 5
	MaxBalancePercentLoss float64 // 0.20 = 20% of account balance

	// Rapid-loss detection
	RapidLossWindow    time.Duration // e.g. 5m
	RapidLossThreshold int           // e.g. 3
	Cooldown           time.Duration // e.g. 30m

	// Stake constraints
	MaxStakePercent   float64 // 0.10 = stake may not exceed 10% of balance
	MinBalanceReserve float64 // balance that must remain after staking
}

// Exposure is the caller-supplied view of the session at check time. The
// governor keeps no profit accounting of its own; the engine owns that.
type Exposure struct {
	TotalLoss         float64 // cumulative session loss, >= 0
	DailyLoss         float64 // loss for the current calendar day, >= 0
	ConsecutiveLosses int
	Balance           float64
}
