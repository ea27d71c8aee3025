// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver. Transactions run at SERIALIZABLE isolation and
// lock the rows they read; serialization failures, deadlocks and unique
// violations surface as store.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/window"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// SQLSTATE codes reported as store.ErrConflict.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("accredit/postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("accredit/postgres: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("accredit/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		}
	}
	return err
}

// ==================== Accounts ====================

func (s *Store) GetAccount(ctx context.Context, userID string) (*entitlement.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accredit_accounts WHERE user_id = $1`, userID)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accredit.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) CreateAccount(ctx context.Context, a *entitlement.Account) error {
	args, err := accountArgs(a)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx, insertAccount, args...).Scan(&a.Version)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return accredit.ErrAlreadyExists
	}
	return err
}

func (s *Store) FindAccountsByCustomerID(ctx context.Context, customerID string) ([]*entitlement.Account, error) {
	result := make([]*entitlement.Account, 0, 1)
	if customerID == "" {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accredit_accounts WHERE customer_id = $1 ORDER BY user_id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) ListStaleAccounts(ctx context.Context, now time.Time, limit int) ([]*entitlement.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accredit_accounts
		WHERE (tier = 'cme_annual' AND (cme_live_until IS NULL OR cme_live_until <= $1))
		   OR (tier = 'board_review' AND (board_review_live_until IS NULL OR board_review_live_until <= $1))
		ORDER BY user_id
		LIMIT NULLIF($2, 0)`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*entitlement.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// ==================== Claims ====================

func (s *Store) ListClaims(ctx context.Context, userID string, opts claim.ListOpts) ([]*claim.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+claimColumns+` FROM accredit_claims
		WHERE user_id = $1
		ORDER BY claimed_at, id
		LIMIT NULLIF($2, 0) OFFSET $3`, userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*claim.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) AttachClaimArtifact(ctx context.Context, userID string, claimID id.ClaimID, path string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accredit_claims SET file_path = $3 WHERE user_id = $1 AND id = $2`,
		userID, claimID.String(), path)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return accredit.ErrNotFound
	}
	return nil
}

// ==================== Windows ====================

func (s *Store) ListWindows(ctx context.Context) ([]*window.Window, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_date, end_date FROM accredit_windows ORDER BY start_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*window.Window, 0)
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (s *Store) PutWindow(ctx context.Context, w *window.Window) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accredit_windows (id, start_date, end_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`,
		w.ID, w.StartDate.UTC(), w.EndDate.UTC())
	return err
}

// ==================== Transactions ====================

// RunInTx runs fn in a SERIALIZABLE transaction. A panic in fn rolls back
// and is rethrown.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapErr(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = mapErr(sqlTx.Commit())
	}()

	return fn(ctx, &tx{tx: sqlTx})
}
