// Package store provides a SQLite-backed journal of transfer attempts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/roundup/internal/logging"
	"github.com/theirongolddev/roundup/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register sqlite driver
)

// Transfer outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded transfer attempt.
type Entry struct {
	TransferUID string
	AccountUID  string
	GoalUID     string
	Amount      model.Amount
	Week        int
	Outcome     string
	Error       string
	RecordedAt  time.Time
}

// Succeeded reports whether the attempt went through.
func (e Entry) Succeeded() bool { return e.Outcome == OutcomeSucceeded }

// Totals summarizes successful transfers per currency.
type Totals struct {
	Attempts  int
	Succeeded int
	// MinorUnits is keyed by currency code.
	MinorUnits map[string]int64
}

// Journal records every transfer attempt. It is an audit trail only;
// nothing is ever restored from it.
type Journal struct {
	db  *sql.DB
	now func() time.Time
	log *zap.Logger
}

// Open opens or creates the journal database at the given path.
func Open(dbPath string, logger *zap.Logger) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Journal{
		db:  db,
		now: time.Now,
		log: logging.OrNop(logger).Named(logging.ComponentJournal),
	}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordTransfer stores the outcome of one attempt. cause is nil on success.
func (j *Journal) RecordTransfer(ctx context.Context, req model.TransferRequest, weekIdx int, cause error) error {
	if req.TransferUID == "" {
		return errors.New("store: transfer uid is required")
	}

	outcome := OutcomeSucceeded
	var errText sql.NullString
	if cause != nil {
		outcome = OutcomeFailed
		errText = sql.NullString{String: cause.Error(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `INSERT INTO transfers
		(transfer_uid, account_uid, goal_uid, minor_units, currency,
		 week_index, outcome, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.TransferUID, req.AccountUID, req.GoalUID, req.Amount.MinorUnits, req.Amount.Currency,
		weekIdx, outcome, errText, j.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("store: recording transfer %s: %w", req.TransferUID, err)
	}

	j.log.Debug("transfer recorded",
		zap.String(logging.FieldTransferID, req.TransferUID),
		zap.String("outcome", outcome),
	)
	return nil
}

// List returns the most recent entries first. limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT
		transfer_uid, account_uid, goal_uid, minor_units, currency,
		week_index, outcome, error, recorded_at
		FROM transfers ORDER BY recorded_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errText sql.NullString
		var recorded string

		err := rows.Scan(
			&e.TransferUID, &e.AccountUID, &e.GoalUID, &e.Amount.MinorUnits, &e.Amount.Currency,
			&e.Week, &e.Outcome, &errText, &recorded,
		)
		if err != nil {
			return nil, err
		}

		if errText.Valid {
			e.Error = errText.String
		}
		e.RecordedAt, _ = time.Parse(timeLayout, recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Totals sums all attempts and the successfully transferred amounts.
func (j *Journal) Totals(ctx context.Context) (Totals, error) {
	t := Totals{MinorUnits: make(map[string]int64)}

	rows, err := j.db.QueryContext(ctx, `SELECT currency, outcome, COUNT(*), SUM(minor_units)
		FROM transfers GROUP BY currency, outcome`)
	if err != nil {
		return t, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var currency, outcome string
		var n int
		var sum int64
		if err := rows.Scan(&currency, &outcome, &n, &sum); err != nil {
			return t, err
		}
		t.Attempts += n
		if outcome == OutcomeSucceeded {
			t.Succeeded += n
			t.MinorUnits[currency] += sum
		}
	}
	return t, rows.Err()
}
