package journal

import "time"

// SettlementRecord is one settled (or refused) trade as the engine saw it.
type SettlementRecord struct {
	TradeID       string
	SessionID     string
	Market        string
	ContractType  string
	Stake         float64
	Prediction    int
	SequenceLabel string
	InRecovery    bool
	Won           bool
	Profit        float64
	BalanceAfter  float64
	Reason        string // refusal reason when no trade was placed
	DecidedAt     time.Time
	SettledAt     time.Time
}

// SessionSnapshot is a periodic roll-up of session state for reporting.
type SessionSnapshot struct {
	Time               time.Time
	SessionID          string
	TotalProfit        float64
	Balance            float64
	Wins               int
	Losses             int
	SequencesCompleted int
	MaxWinStreak       int
	MaxLossStreak      int
}

// Journal records trading activity for audit and telemetry. Implementations
// are write-only from the engine's point of view; nothing here feeds back
// into decisions.
type Journal interface {
	RecordSettlement(SettlementRecord) error
	RecordSnapshot(SessionSnapshot) error
	Close() error
}

// Nop discards everything. Used when journaling is disabled.
type Nop struct{}

func (Nop) RecordSettlement(SettlementRecord) error { return nil }
func (Nop) RecordSnapshot(SessionSnapshot) error    { return nil }
func (Nop) Close() error                            { return nil }
