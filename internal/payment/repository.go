package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// Repository is the durable Store implementation backed by Postgres. The
// lifecycle rule is enforced inside a transaction with a row lock, so the
// per-key serialization guarantee holds across processes too.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const txColumns = `transaction_id, appointment_id, amount, status,
		user_details, appointment_details, created_at, updated_at,
		create_response, callback_payload, status_payload`

func (r *Repository) Create(ctx context.Context, tx *Transaction) error {
	status := tx.Status
	if status == "" {
		status = StatusPending
	}
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id,
		appointment_id,
		amount,
		status,
		user_details,
		appointment_details,
		created_at,
		updated_at,
		create_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		tx.TransactionID, tx.AppointmentID, tx.AmountMinorUnits, string(status),
		nullableJSON(tx.UserDetails), nullableJSON(tx.AppointmentDetails), now, now,
		nullableJSON(tx.CreateResponse),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+txColumns+`
		FROM transactions WHERE transaction_id = $1
	`, id)
	return scanTransaction(row)
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, next Status, snapshot json.RawMessage, kind SnapshotKind) (*Transaction, error) {
	if !next.Valid() {
		return nil, ErrInvalidTransition
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	var current string
	err = dbTx.QueryRowContext(ctx, `
		SELECT status FROM transactions WHERE transaction_id = $1 FOR UPDATE
	`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !canTransition(Status(current), next) {
		return nil, ErrInvalidTransition
	}

	snapshotColumn := "callback_payload"
	if kind == SnapshotStatusPoll {
		snapshotColumn = "status_payload"
	}

	row := dbTx.QueryRowContext(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = $3, `+snapshotColumn+` = $4
		WHERE transaction_id = $1
		RETURNING `+txColumns+`
	`, id, string(next), time.Now().UTC(), nullableJSON(snapshot))

	updated, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) List(ctx context.Context) ([]*Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+txColumns+`
		FROM transactions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx     Transaction
		status string
	)
	err := row.Scan(
		&tx.TransactionID, &tx.AppointmentID, &tx.AmountMinorUnits, &status,
		&tx.UserDetails, &tx.AppointmentDetails, &tx.CreatedAt, &tx.UpdatedAt,
		&tx.CreateResponse, &tx.CallbackPayload, &tx.StatusPayload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	tx.Status = Status(status)
	return &tx, nil
}

// nullableJSON maps an absent blob to SQL NULL instead of an empty byte slice.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
