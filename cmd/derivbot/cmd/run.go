package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/the-code-writer/deriv-bots-app-sub001/config"
	"github.com/the-code-writer/deriv-bots-app-sub001/engine"
	"github.com/the-code-writer/deriv-bots-app-sub001/executor"
	"github.com/the-code-writer/deriv-bots-app-sub001/journal"
	"github.com/the-code-writer/deriv-bots-app-sub001/monitor"
	"github.com/the-code-writer/deriv-bots-app-sub001/pkg/id"
	"github.com/the-code-writer/deriv-bots-app-sub001/reward"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulated trading session from a config file",
	Long: `Run a trading session against the built-in simulated executor.

The engine prepares each trade from the prior outcome; the simulator settles
it using the payout table and a seeded win probability. The session ends when
the engine refuses to trade or the trade budget is spent.

Example:
  derivbot run -f examples/configs/basic.yaml --trades 100 --balance 1000`,
	RunE: runRun,
}

var (
	runConfigPath string
	runMaxTrades  int
	runBalance    float64
	runWinProb    float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().IntVar(&runMaxTrades, "trades", 100, "maximum number of trades to settle")
	runCmd.Flags().Float64Var(&runBalance, "balance", 1000, "starting account balance")
	runCmd.Flags().Float64Var(&runWinProb, "win-prob", 0.5, "simulated win probability")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := monitor.NewLogger(cfg.Log.Level, cfg.Log.Output, cfg.Log.File)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	eng, err := engine.New(cfg, runBalance, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	rewards := reward.Builtin()
	sim, err := executor.NewSim(rewards, runBalance, runWinProb, cfg.Strategy.Seed)
	if err != nil {
		return fmt.Errorf("create simulator: %w", err)
	}

	fmt.Printf("Session %s on %s (%s), balance %.2f\n\n",
		eng.SessionID(), cfg.Strategy.Market, cfg.Strategy.ContractFamily, runBalance)

	stopReason, err := runSession(context.Background(), eng, sim, j, runMaxTrades)
	if err != nil {
		return err
	}
	if stopReason != "" {
		fmt.Printf("Session stopped: %s\n\n", stopReason)
	}

	snap := eng.Snapshot()
	stats := eng.Stats()

	if err := j.RecordSnapshot(journal.SessionSnapshot{
		Time:               time.Now(),
		SessionID:          eng.SessionID(),
		TotalProfit:        snap.TotalProfit,
		Balance:            snap.Balance,
		Wins:               stats.Wins,
		Losses:             stats.Losses,
		SequencesCompleted: stats.SequencesCompleted,
		MaxWinStreak:       stats.MaxWinStreak,
		MaxLossStreak:      stats.MaxLossStreak,
	}); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	fmt.Printf("Results:\n")
	fmt.Printf("  Trades: %d (%d wins / %d losses)\n", stats.Wins+stats.Losses, stats.Wins, stats.Losses)
	fmt.Printf("  Profit/Loss: %.2f\n", snap.TotalProfit)
	fmt.Printf("  Balance: %.2f\n", snap.Balance)
	fmt.Printf("  Sequences completed: %d\n", stats.SequencesCompleted)
	fmt.Printf("  Longest streaks: %d wins / %d losses\n", stats.MaxWinStreak, stats.MaxLossStreak)

	return nil
}

// runSession settles trades until the engine refuses or the trade budget is
// spent, journaling every settlement. Every settled outcome is fed back into
// the engine, including the last one when the budget ends the session, so the
// engine's accounting always matches the settlements journal. A non-empty
// stopReason is the engine's refusal.
func runSession(ctx context.Context, eng *engine.Engine, exec executor.Executor, j journal.Journal, maxTrades int) (stopReason string, err error) {
	var last *engine.Outcome

	for i := 0; i < maxTrades; i++ {
		decision, err := eng.PrepareNextTrade(last)
		last = nil
		if err != nil {
			return "", fmt.Errorf("prepare trade: %w", err)
		}
		if !decision.ShouldTrade {
			return decision.Reason, nil
		}

		decidedAt := time.Now()
		outcome, err := exec.Execute(ctx, decision)
		if err != nil {
			return "", fmt.Errorf("execute trade: %w", err)
		}

		rec := journal.SettlementRecord{
			TradeID:       id.New(),
			SessionID:     decision.Meta.SessionID,
			Market:        decision.Market,
			ContractType:  decision.ContractType,
			Stake:         decision.Stake,
			Prediction:    decision.Prediction,
			SequenceLabel: decision.Meta.SequenceLabel,
			InRecovery:    decision.Meta.InRecovery,
			Won:           outcome.Won,
			Profit:        outcome.Profit,
			BalanceAfter:  outcome.Balance,
			DecidedAt:     decidedAt,
			SettledAt:     time.Now(),
		}
		if err := j.RecordSettlement(rec); err != nil {
			return "", fmt.Errorf("record settlement: %w", err)
		}

		last = &outcome
	}

	// Budget spent with one settled outcome still in hand.
	if last != nil {
		if _, err := eng.PrepareNextTrade(last); err != nil {
			return "", fmt.Errorf("prepare trade: %w", err)
		}
	}
	return "", nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.TradesFile, cfg.SnapshotsFile)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	default:
		return journal.Nop{}, nil
	}
}
