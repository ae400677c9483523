package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/txwatch/internal/domain"
)

var (
	ErrNotFound        = errors.New("transaction not found")
	ErrAlreadyReviewed = errors.New("transaction already reviewed")
)

const transactionColumns = `id, user_id, amount, location, device_id, status, risk_score,
	violations, reviewed_by, analyst_comment, created_at, reviewed_at`

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const insertSQL = `INSERT OR IGNORE INTO transactions
	(` + transactionColumns + `)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`

func insertArgs(tx *domain.Transaction) ([]any, error) {
	violations := tx.Violations
	if violations == nil {
		violations = []string{}
	}
	v, err := json.Marshal(violations)
	if err != nil {
		return nil, fmt.Errorf("encode violations: %w", err)
	}
	return []any{
		tx.ID, tx.UserID, tx.Amount.String(), tx.Location, tx.DeviceID,
		string(tx.Status), tx.RiskScore, string(v),
		nullableString(tx.ReviewedBy), nullableString(tx.AnalystNote),
		tx.CreatedAt.UTC().Format(time.RFC3339Nano), formatNullableTime(tx.ReviewedAt),
	}, nil
}

func (r *TransactionRepo) Insert(tx *domain.Transaction) error {
	args, err := insertArgs(tx)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(insertSQL, args...); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) BulkInsert(txns []domain.Transaction) (int, error) {
	inserted := 0
	sqlTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.Prepare(insertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range txns {
		args, err := insertArgs(&txns[i])
		if err != nil {
			return inserted, fmt.Errorf("row %d: %w", i, err)
		}
		res, err := stmt.Exec(args...)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *TransactionRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

func (r *TransactionRepo) GetByID(id string) (*domain.Transaction, error) {
	row := r.db.QueryRow("SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListByUser returns a user's transactions in creation order.
func (r *TransactionRepo) ListByUser(userID string) ([]domain.Transaction, error) {
	return r.query(
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY seq",
		userID,
	)
}

type TransactionFilter struct {
	Status string
	UserID string
	Limit  int
}

// List returns the most recent transactions first, for the admin log.
func (r *TransactionRepo) List(f TransactionFilter) ([]domain.Transaction, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	if f.Limit <= 0 {
		f.Limit = 100
	}
	args = append(args, f.Limit)

	return r.query("SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY seq DESC LIMIT ?", args...)
}

// Review records an analyst decision. Only PENDING and SUSPICIOUS
// transactions can be reviewed.
func (r *TransactionRepo) Review(id string, decision domain.Status, analyst, comment string, at time.Time) (*domain.Transaction, error) {
	res, err := r.db.Exec(
		`UPDATE transactions
		SET status = ?, reviewed_by = ?, analyst_comment = ?, reviewed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(decision), analyst, nullableString(comment), at.UTC().Format(time.RFC3339Nano),
		id, string(domain.StatusPending), string(domain.StatusSuspicious),
	)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	ra, _ := res.RowsAffected()
	if ra == 0 {
		if _, err := r.GetByID(id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyReviewed
	}
	return r.GetByID(id)
}

// --- helpers ---

func (r *TransactionRepo) query(q string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *tx)
	}
	return txns, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount, status, violations, createdAt string
	var reviewedBy, comment, reviewedAt sql.NullString

	err := row.Scan(
		&tx.ID, &tx.UserID, &amount, &tx.Location, &tx.DeviceID, &status,
		&tx.RiskScore, &violations, &reviewedBy, &comment, &createdAt, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", amount, err)
	}
	tx.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(violations), &tx.Violations); err != nil {
		return nil, fmt.Errorf("violations: %w", err)
	}
	tx.ReviewedBy = reviewedBy.String
	tx.AnalystNote = comment.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if reviewedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, reviewedAt.String)
		tx.ReviewedAt = &t
	}

	return &tx, nil
}
