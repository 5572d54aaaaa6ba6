// Package postgres is the durable record store. Every write runs inside the
// transaction RunInTx binds to ctx; rows read inside it are locked with
// FOR UPDATE and updates are conditional on the row's version.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"qochi/internal/registry/service"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/sentinel"
	txcontext "qochi/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Postgres error codes the store translates.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type Store struct {
	db      *sql.DB
	timeout time.Duration
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithTxTimeout overrides the default transaction timeout.
func (s *Store) WithTxTimeout(d time.Duration) *Store {
	s.timeout = d
	return s
}

// RunInTx opens a transaction, binds it to ctx and commits when fn returns
// nil. Any error rolls back every write fn made.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate(err, "commit transaction")
	}
	return nil
}

// Ping satisfies the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) exec(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

// forUpdate locks single-row reads made inside a transaction.
func forUpdate(ctx context.Context) string {
	if _, ok := txcontext.From(ctx); ok {
		return " FOR UPDATE"
	}
	return ""
}

// translate maps driver errors onto the sentinels the service understands.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %s", op, sentinel.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, sentinel.ErrUnavailable, err)
}

// staleOrMoved explains why a conditional update touched no row: the row
// is gone, its status moved on, or another writer bumped its version.
func staleOrMoved(ctx context.Context, q txcontext.DBTX, table string, rowID uuid.UUID, from string) error {
	var status string
	query := "SELECT '' FROM " + table + " WHERE id = $1"
	if from != "" {
		query = "SELECT status FROM " + table + " WHERE id = $1"
	}
	if err := q.QueryRowContext(ctx, query, rowID).Scan(&status); err != nil {
		return translate(err, "recheck "+table)
	}
	if from != "" && status != from {
		return sentinel.ErrInvalidState
	}
	return fmt.Errorf("%s: %w: stale version", table, sentinel.ErrConflict)
}

func checkUpdated(ctx context.Context, q txcontext.DBTX, res sql.Result, table string, rowID uuid.UUID, from string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "update "+table)
	}
	if n == 0 {
		return staleOrMoved(ctx, q, table, rowID, from)
	}
	return nil
}

// where accumulates filter predicates and their positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

type scanner interface {
	Scan(dest ...any) error
}
