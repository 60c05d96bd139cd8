package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "derivbot",
	Short: "A progressive-stake trade decision and risk engine",
	Long: `Derivbot decides whether to trade, how much to stake, and which contract
to submit, based on the outcome of each prior trade.

It combines:
  - Progressive stake sequences (1-3-2-6 and friends)
  - Loss-recovery sizing with bounded escalation
  - Circuit breakers and rapid-loss detection
  - Payout-aware stake validation
  - CSV/SQLite trade journaling`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
