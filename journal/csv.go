package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	settlements *csv.Writer
	snapshots   *csv.Writer
	sf, pf      *os.File
}

func NewCSV(settlementsPath, snapshotsPath string) (*CSVJournal, error) {
	sf, err := os.Create(settlementsPath)
	if err != nil {
		return nil, err
	}
	pf, err := os.Create(snapshotsPath)
	if err != nil {
		sf.Close()
		return nil, err
	}

	sw := csv.NewWriter(sf)
	pw := csv.NewWriter(pf)

	sw.Write([]string{
		"trade_id", "session_id", "market", "contract_type", "stake", "prediction",
		"sequence_label", "in_recovery", "won", "profit", "balance_after", "reason",
		"decided_at", "settled_at",
	})
	sw.Flush()
	pw.Write([]string{
		"time", "session_id", "total_profit", "balance", "wins", "losses",
		"sequences_completed", "max_win_streak", "max_loss_streak",
	})
	pw.Flush()

	if err := sw.Error(); err != nil {
		sf.Close()
		pf.Close()
		return nil, err
	}
	if err := pw.Error(); err != nil {
		sf.Close()
		pf.Close()
		return nil, err
	}

	return &CSVJournal{settlements: sw, snapshots: pw, sf: sf, pf: pf}, nil
}

func (j *CSVJournal) RecordSettlement(r SettlementRecord) error {
	j.settlements.Write([]string{
		r.TradeID,
		r.SessionID,
		r.Market,
		r.ContractType,
		f(r.Stake),
		strconv.Itoa(r.Prediction),
		r.SequenceLabel,
		strconv.FormatBool(r.InRecovery),
		strconv.FormatBool(r.Won),
		f(r.Profit),
		f(r.BalanceAfter),
		r.Reason,
		r.DecidedAt.Format(time.RFC3339),
		r.SettledAt.Format(time.RFC3339),
	})
	j.settlements.Flush()
	return j.settlements.Error()
}

func (j *CSVJournal) RecordSnapshot(s SessionSnapshot) error {
	j.snapshots.Write([]string{
		s.Time.Format(time.RFC3339),
		s.SessionID,
		f(s.TotalProfit),
		f(s.Balance),
		strconv.Itoa(s.Wins),
		strconv.Itoa(s.Losses),
		strconv.Itoa(s.SequencesCompleted),
		strconv.Itoa(s.MaxWinStreak),
		strconv.Itoa(s.MaxLossStreak),
	})
	j.snapshots.Flush()
	return j.snapshots.Error()
}

func (j *CSVJournal) Close() error {
	j.settlements.Flush()
	j.snapshots.Flush()
	if err := j.sf.Close(); err != nil {
		j.pf.Close()
		return err
	}
	return j.pf.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
