package journal

const Schema = `
CREATE TABLE IF NOT EXISTS settlements (
	trade_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	market TEXT NOT NULL,
	contract_type TEXT NOT NULL,
	stake REAL NOT NULL,
	prediction INTEGER NOT NULL,
	sequence_label TEXT NOT NULL,
	in_recovery INTEGER NOT NULL,
	won INTEGER NOT NULL,
	profit REAL NOT NULL,
	balance_after REAL NOT NULL,
	reason TEXT NOT NULL,
	decided_at DATETIME NOT NULL,
	settled_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlements_session ON settlements(session_id);

CREATE TABLE IF NOT EXISTS snapshots (
	time DATETIME NOT NULL,
	session_id TEXT NOT NULL,
	total_profit REAL NOT NULL,
	balance REAL NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	sequences_completed INTEGER NOT NULL,
	max_win_streak INTEGER NOT NULL,
	max_loss_streak INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, time);
`
