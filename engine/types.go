package engine

import "time"

// Outcome is the terminal result of the previous trade, reported by the
// caller. Profit is signed: positive for a win, negative for a loss.
// Balance is the account balance after settlement; zero means "derive it
// from the running balance".
type Outcome struct {
	Won     bool
	Profit  float64
	Balance float64
}

// Meta describes sequence position and recovery status for observability.
// It never feeds back into decisions.
type Meta struct {
	SessionID        string
	SequencePosition int
	InRecovery       bool
	SequenceLabel    string
}

// TradeDecision is the engine's sole output: either a trade instruction for
// the executor, or a refusal with a human-readable reason. Refusals are
// normal control flow, never errors.
type TradeDecision struct {
	ShouldTrade  bool
	Reason       string
	Stake        float64
	Prediction   int
	ContractType string
	Market       string
	Duration     int
	DurationUnit string
	Meta         Meta
}

// Session is the session-lifetime aggregate, mutated after every trade and
// rolled over on date change. Exposed only as a copy via Snapshot.
type Session struct {
	TotalProfit       float64
	DailyProfit       float64
	Balance           float64
	ConsecutiveWins   int
	ConsecutiveLosses int
	StreakLoss        float64 // running loss of the current losing streak
	TradesToday       int
	LastTradeAt       time.Time
	Day               time.Time // start of the current trading day, UTC
}

// Statistics is a derived reporting aggregate. It is updated as a side
// effect of state transitions and never consulted for decisions.
type Statistics struct {
	Wins                int
	Losses              int
	SequencesCompleted  int
	HardResets          int
	MaxWinStreak        int
	MaxLossStreak       int
	BestSequenceProfit  float64
	WorstSequenceProfit float64
}
