package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordSettlement(r SettlementRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO settlements
		(trade_id, session_id, market, contract_type, stake, prediction,
		 sequence_label, in_recovery, won, profit, balance_after, reason,
		 decided_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TradeID, r.SessionID, r.Market, r.ContractType, r.Stake, r.Prediction,
		r.SequenceLabel, r.InRecovery, r.Won, r.Profit, r.BalanceAfter, r.Reason,
		r.DecidedAt, r.SettledAt,
	)
	return err
}

func (j *SQLiteJournal) RecordSnapshot(s SessionSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(time, session_id, total_profit, balance, wins, losses,
		 sequences_completed, max_win_streak, max_loss_streak)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Time, s.SessionID, s.TotalProfit, s.Balance, s.Wins, s.Losses,
		s.SequencesCompleted, s.MaxWinStreak, s.MaxLossStreak,
	)
	return err
}

// ListSettlements returns a session's settlements in decision order.
func (j *SQLiteJournal) ListSettlements(sessionID string) ([]SettlementRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, session_id, market, contract_type, stake, prediction,
		       sequence_label, in_recovery, won, profit, balance_after, reason,
		       decided_at, settled_at
		FROM settlements WHERE session_id = ? ORDER BY trade_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SettlementRecord
	for rows.Next() {
		var r SettlementRecord
		if err := rows.Scan(&r.TradeID, &r.SessionID, &r.Market, &r.ContractType,
			&r.Stake, &r.Prediction, &r.SequenceLabel, &r.InRecovery, &r.Won,
			&r.Profit, &r.BalanceAfter, &r.Reason, &r.DecidedAt, &r.SettledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
