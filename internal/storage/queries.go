package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
)

// Sync queue item states.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

// timeLayout matches SQLite's CURRENT_TIMESTAMP so stored times compare as text.
const timeLayout = "2006-01-02 15:04:05"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries groups the SQL statements of the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row is a stored transaction with its owner and version.
type Row struct {
	UserID      string
	Version     int64
	Transaction core.Transaction
}

// SyncQueue is one outbox entry.
type SyncQueue struct {
	ID            int64
	TransactionID string
	UserID        string
	Version       int64
	Status        string
	Attempts      int64
	LastError     sql.NullString
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// SyncQueueStats counts outbox entries by state.
type SyncQueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

const transactionColumns = `id, user_id, date, type, amount, original_amount, bank_account, reason,
	is_paid, customer_name, phone_name, fault, price_status, version`

const insertTransaction = `INSERT INTO transactions (` + transactionColumns + `, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, userID string, tx core.Transaction, now time.Time) error {
	ts := now.UTC().Format(timeLayout)
	_, err := q.db.ExecContext(ctx, insertTransaction,
		tx.ID, userID, core.FormatTimestamp(tx.Date), string(tx.Type),
		tx.Amount.String(), tx.OriginalAmount.String(), tx.BankAccount, tx.Reason,
		tx.IsPaid, tx.CustomerName, tx.PhoneName, tx.Fault, string(tx.PriceStatus),
		1, ts, ts)
	return err
}

const updateTransaction = `UPDATE transactions SET
	date = ?, type = ?, amount = ?, original_amount = ?, bank_account = ?, reason = ?,
	is_paid = ?, customer_name = ?, phone_name = ?, fault = ?, price_status = ?,
	version = version + 1, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING version`

// UpdateTransaction overwrites every mutable column and returns the new version.
func (q *Queries) UpdateTransaction(ctx context.Context, userID string, tx core.Transaction, now time.Time) (int64, error) {
	var version int64
	err := q.db.QueryRowContext(ctx, updateTransaction,
		core.FormatTimestamp(tx.Date), string(tx.Type), tx.Amount.String(), tx.OriginalAmount.String(),
		tx.BankAccount, tx.Reason, tx.IsPaid, tx.CustomerName, tx.PhoneName, tx.Fault,
		string(tx.PriceStatus), now.UTC().Format(timeLayout), tx.ID, userID,
	).Scan(&version)
	return version, err
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (Row, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanRow(row)
}

func (q *Queries) GetUserTransaction(ctx context.Context, userID, id string) (Row, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	return scanRow(row)
}

func (q *Queries) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Transaction)
	}
	return out, rows.Err()
}

func (q *Queries) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM transactions ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) EnqueueSync(ctx context.Context, transactionID, userID string, version int64, now time.Time) (int64, error) {
	ts := now.UTC().Format(timeLayout)
	res, err := q.db.ExecContext(ctx, `INSERT INTO sync_queue
		(transaction_id, user_id, version, status, attempts, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		transactionID, userID, version, SyncPending, ts, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const syncQueueColumns = `id, transaction_id, user_id, version, status, attempts, last_error, next_attempt_at, created_at`

func (q *Queries) DequeueSyncBatch(ctx context.Context, limit int64, now time.Time) ([]SyncQueue, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+syncQueueColumns+` FROM sync_queue
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY id LIMIT ?`, SyncPending, now.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SyncQueue
	for rows.Next() {
		item, err := scanSyncQueue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (q *Queries) GetSyncItem(ctx context.Context, id int64) (SyncQueue, error) {
	return scanSyncQueue(q.db.QueryRowContext(ctx, `SELECT `+syncQueueColumns+` FROM sync_queue WHERE id = ?`, id))
}

func (q *Queries) SetSyncStatus(ctx context.Context, id int64, status string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE sync_queue SET status = ?, updated_at = ? WHERE id = ?`,
		status, now.UTC().Format(timeLayout), id)
	return err
}

// CompleteSyncUpTo marks every open entry for the transaction with a version
// at or below version as completed.
func (q *Queries) CompleteSyncUpTo(ctx context.Context, transactionID string, version int64, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE sync_queue SET status = ?, updated_at = ?
		WHERE transaction_id = ? AND version <= ? AND status IN (?, ?)`,
		SyncCompleted, now.UTC().Format(timeLayout), transactionID, version, SyncPending, SyncProcessing)
	return err
}

func (q *Queries) IncrementSyncAttempt(ctx context.Context, id int64, lastError string, next, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE sync_queue
		SET status = ?, attempts = attempts + 1, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?`,
		SyncPending, lastError, next.UTC().Format(timeLayout), now.UTC().Format(timeLayout), id)
	return err
}

func (q *Queries) MarkSyncFailed(ctx context.Context, id int64, lastError string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE sync_queue
		SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		SyncFailed, lastError, now.UTC().Format(timeLayout), id)
	return err
}

func (q *Queries) ResetStaleProcessing(ctx context.Context, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE sync_queue SET status = ?, updated_at = ? WHERE status = ?`,
		SyncPending, now.UTC().Format(timeLayout), SyncProcessing)
	return err
}

func (q *Queries) RetryFailedSyncs(ctx context.Context, now time.Time) (int64, error) {
	ts := now.UTC().Format(timeLayout)
	res, err := q.db.ExecContext(ctx, `UPDATE sync_queue
		SET status = ?, attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = ?`,
		SyncPending, ts, ts, SyncFailed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CleanupCompletedSyncs(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE status = ? AND updated_at < ?`,
		SyncCompleted, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) GetSyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	var s SyncQueueStats
	err := q.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM sync_queue`).Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed)
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (Row, error) {
	var (
		r                    Row
		date, typ, amt, orig string
		status               string
	)
	t := &r.Transaction
	err := s.Scan(&t.ID, &r.UserID, &date, &typ, &amt, &orig, &t.BankAccount, &t.Reason,
		&t.IsPaid, &t.CustomerName, &t.PhoneName, &t.Fault, &status, &r.Version)
	if err != nil {
		return Row{}, err
	}
	if t.Date, err = core.ParseTimestamp(date, time.UTC); err != nil {
		return Row{}, fmt.Errorf("row %s date: %w", t.ID, err)
	}
	if t.Amount, err = decimal.NewFromString(amt); err != nil {
		return Row{}, fmt.Errorf("row %s amount: %w", t.ID, err)
	}
	if t.OriginalAmount, err = decimal.NewFromString(orig); err != nil {
		return Row{}, fmt.Errorf("row %s original_amount: %w", t.ID, err)
	}
	t.Type = core.TransactionType(typ)
	t.PriceStatus = core.PriceStatus(status)
	return r, nil
}

func scanSyncQueue(s scanner) (SyncQueue, error) {
	var (
		item        SyncQueue
		next, added any
	)
	if err := s.Scan(&item.ID, &item.TransactionID, &item.UserID, &item.Version, &item.Status,
		&item.Attempts, &item.LastError, &next, &added); err != nil {
		return SyncQueue{}, err
	}
	item.NextAttemptAt = dbTime(next)
	item.CreatedAt = dbTime(added)
	return item, nil
}

// dbTime reads a timestamp column, which the driver hands back either as
// time.Time or as the stored text.
func dbTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, _ := time.Parse(timeLayout, t)
		return parsed
	case []byte:
		parsed, _ := time.Parse(timeLayout, string(t))
		return parsed
	default:
		return time.Time{}
	}
}
