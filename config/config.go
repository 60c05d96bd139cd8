package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/the-code-writer/deriv-bots-app-sub001/reward"
	"github.com/the-code-writer/deriv-bots-app-sub001/sequence"
	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable configuration for one trading session.
// All fields are validated once at load; nothing is merged or defaulted
// silently afterwards.
type Config struct {
	Strategy       StrategyConfig       `json:"strategy" yaml:"strategy"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Reward         RewardConfig         `json:"reward,omitempty" yaml:"reward,omitempty"`
	Journal        JournalConfig        `json:"journal" yaml:"journal"`
	Log            LogConfig            `json:"log" yaml:"log"`
}

// StrategyConfig contains stake progression and session-limit parameters.
type StrategyConfig struct {
	ProfitTarget float64 `json:"profit_target" yaml:"profit_target"`
	LossLimit    float64 `json:"loss_limit" yaml:"loss_limit"`
	InitialStake float64 `json:"initial_stake" yaml:"initial_stake"`

	SequenceVariant string    `json:"sequence_variant" yaml:"sequence_variant"`
	CustomSequence  []float64 `json:"custom_sequence,omitempty" yaml:"custom_sequence,omitempty"`

	EnableSequenceProtection bool               `json:"enable_sequence_protection" yaml:"enable_sequence_protection"`
	RecoveryMode             string             `json:"recovery_mode" yaml:"recovery_mode"`
	RecoveryMultipliers      map[string]float64 `json:"recovery_multipliers,omitempty" yaml:"recovery_multipliers,omitempty"`
	RecoveryEscalation       float64            `json:"recovery_escalation" yaml:"recovery_escalation"`
	RecoveryCapFraction      float64            `json:"recovery_cap_fraction" yaml:"recovery_cap_fraction"`
	MaxRecoveryAttempts      int                `json:"max_recovery_attempts" yaml:"max_recovery_attempts"`

	MaxDailyTrades int `json:"max_daily_trades" yaml:"max_daily_trades"`

	Market         string `json:"market" yaml:"market"`
	ContractFamily string `json:"contract_family" yaml:"contract_family"`
	Duration       int    `json:"duration" yaml:"duration"`
	DurationUnit   string `json:"duration_unit" yaml:"duration_unit"`

	Prediction      string `json:"prediction" yaml:"prediction"`
	PredictionDigit int    `json:"prediction_digit,omitempty" yaml:"prediction_digit,omitempty"`
	Seed            int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// CircuitBreakerConfig contains the risk governor's ceilings.
type CircuitBreakerConfig struct {
	MaxAbsoluteLoss       float64 `json:"max_absolute_loss" yaml:"max_absolute_loss"`
	MaxDailyLoss          float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxConsecutiveLosses  int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	MaxBalancePercentLoss float64 `json:"max_balance_percent_loss" yaml:"max_balance_percent_loss"`
	RapidLossWindow       string  `json:"rapid_loss_window" yaml:"rapid_loss_window"` // e.g. "5m"
	RapidLossThreshold    int     `json:"rapid_loss_threshold" yaml:"rapid_loss_threshold"`
	Cooldown              string  `json:"cooldown" yaml:"cooldown"` // e.g. "30m"
	MaxStakePercent       float64 `json:"max_stake_percent" yaml:"max_stake_percent"`
	MinBalanceReserve     float64 `json:"min_balance_reserve" yaml:"min_balance_reserve"`
}

// RewardConfig optionally overrides payout tiers per contract family.
type RewardConfig struct {
	Tiers map[string][]reward.Tier `json:"tiers,omitempty" yaml:"tiers,omitempty"`
}

// JournalConfig selects where settled trades are recorded.
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Output string `json:"output" yaml:"output"` // console, file, both
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// ParseRapidLossWindow converts the window string to a time.Duration.
// Empty means the rapid-loss check is disabled.
func (c CircuitBreakerConfig) ParseRapidLossWindow() (time.Duration, error) {
	if c.RapidLossWindow == "" {
		return 0, nil
	}
	return time.ParseDuration(c.RapidLossWindow)
}

// ParseCooldown converts the cooldown string to a time.Duration.
// Empty means no cooldown.
func (c CircuitBreakerConfig) ParseCooldown() (time.Duration, error) {
	if c.Cooldown == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Cooldown)
}

// Sequence resolves the configured stake progression: an explicit custom
// list wins over the named variant.
func (s StrategyConfig) Sequence() []float64 {
	if len(s.CustomSequence) > 0 {
		return s.CustomSequence
	}
	return sequence.Variants[s.SequenceVariant]
}

// LoadFromFile loads configuration from a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or JSON.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration. Monetary and count fields must be
// positive; unknown variant, mode, family, and journal names are rejected.
func (c *Config) Validate() error {
	s := c.Strategy

	if s.ProfitTarget <= 0 {
		return fmt.Errorf("strategy.profit_target must be positive")
	}
	if s.LossLimit <= 0 {
		return fmt.Errorf("strategy.loss_limit must be positive")
	}
	if s.InitialStake <= 0 {
		return fmt.Errorf("strategy.initial_stake must be positive")
	}
	if len(s.Sequence()) == 0 {
		return fmt.Errorf("unknown sequence variant %q and no custom sequence given", s.SequenceVariant)
	}
	for i, m := range s.Sequence() {
		if m <= 0 {
			return fmt.Errorf("sequence multiplier %d must be positive, got %v", i, m)
		}
	}
	switch sequence.Mode(s.RecoveryMode) {
	case sequence.Conservative, sequence.Neutral, sequence.Aggressive:
	default:
		return fmt.Errorf("recovery_mode must be conservative, neutral or aggressive, got %q", s.RecoveryMode)
	}
	if s.EnableSequenceProtection && s.MaxRecoveryAttempts <= 0 {
		return fmt.Errorf("strategy.max_recovery_attempts must be positive when sequence protection is enabled")
	}
	if s.RecoveryEscalation != 0 && s.RecoveryEscalation < 1 {
		return fmt.Errorf("strategy.recovery_escalation must be >= 1")
	}
	if s.RecoveryCapFraction < 0 || s.RecoveryCapFraction > 1 {
		return fmt.Errorf("strategy.recovery_cap_fraction must be in [0,1]")
	}
	if s.MaxDailyTrades <= 0 {
		return fmt.Errorf("strategy.max_daily_trades must be positive")
	}
	if s.Market == "" {
		return fmt.Errorf("strategy.market is required")
	}
	if s.ContractFamily == "" {
		return fmt.Errorf("strategy.contract_family is required")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("strategy.duration must be positive")
	}
	if s.DurationUnit == "" {
		return fmt.Errorf("strategy.duration_unit is required")
	}
	if strings.EqualFold(s.Prediction, "fixed") && (s.PredictionDigit < 0 || s.PredictionDigit > 9) {
		return fmt.Errorf("strategy.prediction_digit must be in [0,9] for the fixed policy, got %d", s.PredictionDigit)
	}

	cb := c.CircuitBreaker
	if cb.MaxAbsoluteLoss < 0 || cb.MaxDailyLoss < 0 || cb.MaxConsecutiveLosses < 0 {
		return fmt.Errorf("circuit breaker ceilings must not be negative")
	}
	if cb.MaxBalancePercentLoss < 0 || cb.MaxBalancePercentLoss > 1 {
		return fmt.Errorf("circuit_breaker.max_balance_percent_loss must be in [0,1]")
	}
	if cb.MaxStakePercent < 0 || cb.MaxStakePercent > 1 {
		return fmt.Errorf("circuit_breaker.max_stake_percent must be in [0,1]")
	}
	window, err := cb.ParseRapidLossWindow()
	if err != nil {
		return fmt.Errorf("circuit_breaker.rapid_loss_window: %w", err)
	}
	cooldown, err := cb.ParseCooldown()
	if err != nil {
		return fmt.Errorf("circuit_breaker.cooldown: %w", err)
	}
	if cb.RapidLossThreshold > 0 {
		if window <= 0 {
			return fmt.Errorf("circuit_breaker.rapid_loss_window must be positive when rapid_loss_threshold is set")
		}
		if cooldown <= 0 {
			return fmt.Errorf("circuit_breaker.cooldown must be positive when rapid_loss_threshold is set")
		}
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.SnapshotsFile == "" {
			return fmt.Errorf("journal trades_file and snapshots_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	return nil
}

// Default returns a configuration with sensible defaults: the 1-3-2-6
// progression with neutral recovery on a volatility-index digit contract.
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			ProfitTarget:             1000,
			LossLimit:                500,
			InitialStake:             1,
			SequenceVariant:          "1-3-2-6",
			EnableSequenceProtection: true,
			RecoveryMode:             string(sequence.Neutral),
			RecoveryEscalation:       1,
			RecoveryCapFraction:      0.5,
			MaxRecoveryAttempts:      3,
			MaxDailyTrades:           50,
			Market:                   "R_100",
			ContractFamily:           string(reward.DigitDiff),
			Duration:                 5,
			DurationUnit:             "t",
			Prediction:               "random",
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxAbsoluteLoss:       500,
			MaxDailyLoss:          200,
			MaxConsecutiveLosses:  5,
			MaxBalancePercentLoss: 0.20,
			RapidLossWindow:       "5m",
			RapidLossThreshold:    3,
			Cooldown:              "30m",
			MaxStakePercent:       0.10,
			MinBalanceReserve:     10,
		},
		Journal: JournalConfig{
			Type:          "csv",
			TradesFile:    "./trades.csv",
			SnapshotsFile: "./sessions.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Output: "console",
		},
	}
}
