package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/the-code-writer/deriv-bots-app-sub001/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate session configuration files",
	Long: `Manage session configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  derivbot config init -o session.yaml
  derivbot config validate -f session.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "session.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  derivbot run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Market: %s, contract: %s\n", cfg.Strategy.Market, cfg.Strategy.ContractFamily)
	fmt.Printf("  Sequence: %s, initial stake: %.2f\n", cfg.Strategy.SequenceVariant, cfg.Strategy.InitialStake)
	fmt.Printf("  Profit target: %.2f, loss limit: %.2f\n", cfg.Strategy.ProfitTarget, cfg.Strategy.LossLimit)
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}
