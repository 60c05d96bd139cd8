package executor

import (
	"context"

	"github.com/the-code-writer/deriv-bots-app-sub001/engine"
)

// Executor turns a trade instruction into an actual purchase and reports
// the terminal outcome. Implementations own all I/O, timeouts, and broker
// protocol details; the engine only ever sees the settled result. Callers
// must guarantee at most one in-flight trade per session.
type Executor interface {
	Execute(ctx context.Context, d engine.TradeDecision) (engine.Outcome, error)
}
