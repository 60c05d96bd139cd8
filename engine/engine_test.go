package engine

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-code-writer/deriv-bots-app-sub001/config"
	"github.com/the-code-writer/deriv-bots-app-sub001/predict"
)

type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Strategy.ProfitTarget = 1000
	cfg.Strategy.LossLimit = 500
	cfg.Strategy.InitialStake = 1
	cfg.Strategy.MaxDailyTrades = 100
	cfg.CircuitBreaker.MaxConsecutiveLosses = 50
	cfg.CircuitBreaker.MaxAbsoluteLoss = 500
	cfg.CircuitBreaker.MaxDailyLoss = 500
	cfg.CircuitBreaker.MaxStakePercent = 0.5
	cfg.CircuitBreaker.MinBalanceReserve = 0
	cfg.Journal.Type = "none"
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, balance float64, clock *testClock) *Engine {
	t.Helper()
	e, err := New(cfg, balance,
		WithClock(clock.now),
		WithLogger(quietLogger()),
		WithPolicy(predict.FixedDigit{Digit: 5, Contract: "DIGITDIFF"}),
	)
	require.NoError(t, err)
	return e
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.InitialStake = -1
	_, err := New(cfg, 1000)
	assert.Error(t, err)
}

func TestNewRejectsBadBalance(t *testing.T) {
	t.Parallel()

	_, err := New(testConfig(), 0)
	assert.Error(t, err)
}

func TestNewRejectsMalformedCooldown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CircuitBreaker.RapidLossThreshold = 0
	cfg.CircuitBreaker.Cooldown = "half an hour"
	_, err := New(cfg, 1000)
	assert.Error(t, err)
}

func TestFixedPredictionDigitFromConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.Prediction = "fixed"
	cfg.Strategy.PredictionDigit = 7

	e, err := New(cfg, 1000, WithClock(newTestClock().now), WithLogger(quietLogger()))
	require.NoError(t, err)

	d, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)
	assert.Equal(t, 7, d.Prediction)

	cfg.Strategy.PredictionDigit = 12
	_, err = New(cfg, 1000, WithLogger(quietLogger()))
	assert.Error(t, err)
}

func TestNewRejectsUnknownContractFamily(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.ContractFamily = "lookback"
	_, err := New(cfg, 1000)
	assert.Error(t, err)
}

// Four consecutive wins request stakes 1,3,2,6, complete one sequence, and
// restart at stake 1.
func TestWinningSequenceWalk(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 1000, newTestClock())

	wantStakes := []float64{1, 3, 2, 6}
	var last *Outcome
	for i, want := range wantStakes {
		d, err := e.PrepareNextTrade(last)
		require.NoError(t, err)
		require.True(t, d.ShouldTrade, "trade %d refused: %s", i+1, d.Reason)
		assert.InDelta(t, want, d.Stake, 1e-9)
		assert.Equal(t, i, d.Meta.SequencePosition)
		assert.Equal(t, 5, d.Prediction)
		assert.Equal(t, "R_100", d.Market)

		last = &Outcome{Won: true, Profit: d.Stake * 0.95}
	}

	d, err := e.PrepareNextTrade(last)
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)
	assert.InDelta(t, 1, d.Stake, 1e-9)
	assert.Equal(t, 0, d.Meta.SequencePosition)

	stats := e.Stats()
	assert.Equal(t, 1, stats.SequencesCompleted)
	assert.Equal(t, 4, stats.Wins)
	assert.Equal(t, 4, stats.MaxWinStreak)
	assert.InDelta(t, 11.4, stats.BestSequenceProfit, 1e-9)
}

// Losses totalling 4 under neutral recovery size the next stake at
// min(4 x 10.25, 500 x 0.5) = 41.
func TestRecoveryStakeAfterLosses(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 1000, newTestClock())

	d, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)

	// lose the first trade (stake 1)
	d, err = e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)
	assert.True(t, d.Meta.InRecovery)
	assert.InDelta(t, 10.25, d.Stake, 1e-9)

	// lose again with a streak loss of 4
	d, err = e.PrepareNextTrade(&Outcome{Won: false, Profit: -3})
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)
	assert.True(t, d.Meta.InRecovery)
	assert.InDelta(t, 41, d.Stake, 1e-9)
	assert.Equal(t, "recovery#2", d.Meta.SequenceLabel)
}

func TestRecoveryExitRestartsSequence(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 1000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	d, err := e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	require.True(t, d.Meta.InRecovery)

	// recovery win clears the deficit
	d, err = e.PrepareNextTrade(&Outcome{Won: true, Profit: 2})
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)
	assert.False(t, d.Meta.InRecovery)
	assert.InDelta(t, 1, d.Stake, 1e-9)
	assert.Equal(t, 0, d.Meta.SequencePosition)
}

// After maxDailyTrades settled trades, the next call refuses with a daily
// limit reason and no state change.
func TestDailyTradeLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.MaxDailyTrades = 5
	e := newTestEngine(t, cfg, 1000, newTestClock())

	var last *Outcome
	for i := 0; i < 5; i++ {
		d, err := e.PrepareNextTrade(last)
		require.NoError(t, err)
		require.True(t, d.ShouldTrade)
		last = &Outcome{Won: true, Profit: 0.95}
	}

	d, err := e.PrepareNextTrade(last)
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Daily trade limit")
}

func TestDailyCountersRollOver(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.MaxDailyTrades = 2
	clock := newTestClock()
	e := newTestEngine(t, cfg, 1000, clock)

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	_, err = e.PrepareNextTrade(&Outcome{Won: true, Profit: 0.95})
	require.NoError(t, err)
	d, err := e.PrepareNextTrade(&Outcome{Won: true, Profit: 0.95})
	require.NoError(t, err)
	require.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Daily trade limit")

	clock.advance(24 * time.Hour)
	d, err = e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.True(t, d.ShouldTrade)
	assert.Equal(t, 0, e.Snapshot().TradesToday)
}

func TestProfitTargetRefusalIsIdempotent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 10000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	d, err := e.PrepareNextTrade(&Outcome{Won: true, Profit: 1000})
	require.NoError(t, err)
	require.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Profit target")

	for i := 0; i < 3; i++ {
		d, err = e.PrepareNextTrade(nil)
		require.NoError(t, err)
		assert.False(t, d.ShouldTrade)
		assert.Contains(t, d.Reason, "Profit target")
	}
}

func TestLossLimitRefusal(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.LossLimit = 100
	cfg.CircuitBreaker.MaxAbsoluteLoss = 1000 // keep the breaker out of the way
	cfg.CircuitBreaker.MaxDailyLoss = 1000
	e := newTestEngine(t, cfg, 10000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	d, err := e.PrepareNextTrade(&Outcome{Won: false, Profit: -100})
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Loss limit")
}

func TestConsecutiveLossLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CircuitBreaker.MaxConsecutiveLosses = 2
	cfg.CircuitBreaker.RapidLossThreshold = 0 // rapid-loss detection off
	e := newTestEngine(t, cfg, 100000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	_, err = e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	d, err := e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Consecutive loss limit")
}

// Three losses inside the rapid-loss window trip safety mode; trading is
// vetoed until the cooldown elapses.
func TestRapidLossCooldown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CircuitBreaker.RapidLossThreshold = 3
	cfg.CircuitBreaker.RapidLossWindow = "5m"
	cfg.CircuitBreaker.Cooldown = "30m"
	clock := newTestClock()
	e := newTestEngine(t, cfg, 100000, clock)

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	_, err = e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	clock.advance(time.Minute)
	_, err = e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	clock.advance(time.Minute)

	d, err := e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	require.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Rapid loss cooldown")

	// still vetoed mid-cooldown
	clock.advance(10 * time.Minute)
	d, err = e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Rapid loss cooldown")

	// cooldown elapsed, window drained
	clock.advance(25 * time.Minute)
	d, err = e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.True(t, d.ShouldTrade)
}

func TestCircuitBreakerAbsoluteLoss(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.LossLimit = 1000 // engine-level limit out of the way
	cfg.CircuitBreaker.MaxAbsoluteLoss = 50
	cfg.CircuitBreaker.MaxDailyLoss = 1000
	cfg.CircuitBreaker.RapidLossThreshold = 0
	e := newTestEngine(t, cfg, 100000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	d, err := e.PrepareNextTrade(&Outcome{Won: false, Profit: -50})
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "Circuit breaker")
}

func TestStakeValidationRefusal(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CircuitBreaker.MaxStakePercent = 0.05
	e := newTestEngine(t, cfg, 10, newTestClock())

	// base stake 1 exceeds 5% of the 10 balance
	d, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Contains(t, d.Reason, "exceeds")
}

func TestInvalidProfitKeepsState(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 1000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	before := e.Snapshot()

	_, err = e.PrepareNextTrade(&Outcome{Won: true, Profit: math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidProfit)
	assert.Equal(t, before, e.Snapshot())

	// retry with a valid value succeeds
	d, err := e.PrepareNextTrade(&Outcome{Won: true, Profit: 0.95})
	require.NoError(t, err)
	assert.True(t, d.ShouldTrade)
}

func TestPauseBlocksWithoutMutation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 1000, newTestClock())

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	before := e.Snapshot()

	e.Pause()
	d, err := e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, ReasonPaused, d.Reason)
	assert.Equal(t, before, e.Snapshot())

	e.Resume()
	d, err = e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.True(t, d.ShouldTrade)
}

func TestResetPreservesPause(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testConfig(), 1000, newTestClock())

	e.Pause()
	e.Reset()

	d, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, ReasonPaused, d.Reason)

	e.Resume()
	d, err = e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.True(t, d.ShouldTrade)
}

func TestResetRestoresInitialState(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	e := newTestEngine(t, testConfig(), 1000, clock)
	fresh := e.Snapshot()

	_, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	_, err = e.PrepareNextTrade(&Outcome{Won: false, Profit: -1})
	require.NoError(t, err)
	_, err = e.PrepareNextTrade(&Outcome{Won: true, Profit: 10})
	require.NoError(t, err)

	e.Reset()
	assert.Equal(t, fresh, e.Snapshot())
	assert.Equal(t, Statistics{}, e.Stats())

	// idempotent
	e.Reset()
	assert.Equal(t, fresh, e.Snapshot())

	d, err := e.PrepareNextTrade(nil)
	require.NoError(t, err)
	assert.True(t, d.ShouldTrade)
	assert.InDelta(t, 1, d.Stake, 1e-9)
}

func TestStakePositiveWheneverTrading(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	e := newTestEngine(t, testConfig(), 100000, clock)

	outcomes := []Outcome{
		{Won: true, Profit: 0.95},
		{Won: false, Profit: -3},
		{Won: false, Profit: -41},
		{Won: true, Profit: 50},
		{Won: true, Profit: 0.95},
	}

	var last *Outcome
	for i := range outcomes {
		d, err := e.PrepareNextTrade(last)
		require.NoError(t, err)
		if d.ShouldTrade {
			assert.Greater(t, d.Stake, 0.0)
		}
		clock.advance(time.Minute)
		outcomes[i].Profit = adjustProfit(outcomes[i], d)
		last = &outcomes[i]
	}
}

// adjustProfit makes the scripted outcome consistent with the stake the
// engine actually requested.
func adjustProfit(o Outcome, d TradeDecision) float64 {
	if !d.ShouldTrade {
		return o.Profit
	}
	if o.Won {
		return d.Stake * 0.95
	}
	return -d.Stake
}

func TestHardResetAfterRecoveryExhaustion(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategy.MaxRecoveryAttempts = 2
	cfg.Strategy.LossLimit = 10000
	cfg.CircuitBreaker.MaxAbsoluteLoss = 100000
	cfg.CircuitBreaker.MaxDailyLoss = 100000
	cfg.CircuitBreaker.MaxConsecutiveLosses = 50
	cfg.CircuitBreaker.RapidLossThreshold = 0
	cfg.CircuitBreaker.MaxStakePercent = 1
	clock := newTestClock()
	e := newTestEngine(t, cfg, 1000000, clock)

	var last *Outcome
	for i := 0; i < 3; i++ {
		d, err := e.PrepareNextTrade(last)
		require.NoError(t, err)
		require.True(t, d.ShouldTrade)
		last = &Outcome{Won: false, Profit: -d.Stake}
		clock.advance(10 * time.Minute)
	}

	// third loss exceeds the 2-attempt budget: back to the base stake
	d, err := e.PrepareNextTrade(last)
	require.NoError(t, err)
	require.True(t, d.ShouldTrade)
	assert.False(t, d.Meta.InRecovery)
	assert.InDelta(t, 1, d.Stake, 1e-9)
	assert.Equal(t, 1, e.Stats().HardResets)
}
