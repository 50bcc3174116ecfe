// Package store persists clients, orders, bans, challenge attempts and unban requests.
//
// Queries are written with ? bindvars and rebound by sqlx for the active driver,
// so the same store runs on PostgreSQL and SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/forgebot/forge/domain"
)

// Store is the SQL implementation of every repository interface used by the bot.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database handle.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// UpsertClient inserts the client or refreshes its name and username, returning the id.
func (s *Store) UpsertClient(ctx context.Context, c domain.Client) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO clients (identity, display_name, username, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identity) DO UPDATE
		SET display_name = excluded.display_name, username = excluded.username
		RETURNING id`),
		c.Identity, c.DisplayName, c.Username, s.now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert client %d: %w", c.Identity, err)
	}
	return id, nil
}

// ClientByIdentity returns the client registered for an identity.
func (s *Store) ClientByIdentity(ctx context.Context, who domain.Identity) (*domain.Client, error) {
	var c domain.Client
	err := s.db.GetContext(ctx, &c, s.q(`
		SELECT id, identity, display_name, username
		FROM clients WHERE identity = ?`), who)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateOrder inserts a new order and returns its id. CreatedAt and Status are filled when zero.
func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (int64, error) {
	if o.Status == "" {
		o.Status = domain.StatusNew
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO orders (client_id, kind, service_code, title, description, budget, deadline,
			contact_method, contact_value, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		o.ClientID, o.Kind, o.ServiceCode, o.Title, o.Description, o.Budget, o.Deadline,
		o.ContactMethod, o.ContactValue, o.Status, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

const orderViewColumns = `
	o.id, o.client_id, o.kind, o.service_code, o.title, o.description, o.budget, o.deadline,
	o.contact_method, o.contact_value, o.status, o.created_at,
	c.display_name AS client_name, c.identity AS client_identity, c.username AS client_username`

// Order returns one order joined with its client.
func (s *Store) Order(ctx context.Context, id int64) (*domain.OrderView, error) {
	var v domain.OrderView
	err := s.db.GetContext(ctx, &v, s.q(`
		SELECT`+orderViewColumns+`
		FROM orders o LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// ActiveOrders returns a newest-first page of orders that are new or in progress.
func (s *Store) ActiveOrders(ctx context.Context, limit, offset int) ([]domain.OrderView, error) {
	query, args, err := sqlx.In(`
		SELECT`+orderViewColumns+`
		FROM orders o LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.status IN (?)
		ORDER BY o.id DESC
		LIMIT ? OFFSET ?`, domain.ActiveStatuses, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("active orders query: %w", err)
	}
	var out []domain.OrderView
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("active orders: %w", err)
	}
	return out, nil
}

// CountActiveOrders counts orders that are new or in progress.
func (s *Store) CountActiveOrders(ctx context.Context) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM orders WHERE status IN (?)`, domain.ActiveStatuses)
	if err != nil {
		return 0, fmt.Errorf("count active query: %w", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(query), args...); err != nil {
		return 0, fmt.Errorf("count active orders: %w", err)
	}
	return n, nil
}

// SetOrderStatus overwrites the status of an order.
func (s *Store) SetOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE orders SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return fmt.Errorf("set order %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// OrderStats counts orders per status.
func (s *Store) OrderStats(ctx context.Context) ([]domain.StatusCount, error) {
	var out []domain.StatusCount
	err := s.db.SelectContext(ctx, &out, `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return out, nil
}

// Ban returns the ban row for an identity, active or not.
func (s *Store) Ban(ctx context.Context, who domain.Identity) (*domain.BanRecord, error) {
	var b domain.BanRecord
	err := s.db.GetContext(ctx, &b, s.q(`
		SELECT identity, reason, active, created_at FROM bans WHERE identity = ?`), who)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// UpsertBan activates a ban for the identity, overwriting any previous reason.
func (s *Store) UpsertBan(ctx context.Context, who domain.Identity, reason string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO bans (identity, reason, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identity) DO UPDATE
		SET reason = excluded.reason, active = excluded.active, created_at = excluded.created_at`),
		who, reason, true, s.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert ban %d: %w", who, err)
	}
	return nil
}

// DeactivateBan clears the active flag. Missing rows are not an error.
func (s *Store) DeactivateBan(ctx context.Context, who domain.Identity) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE bans SET active = ? WHERE identity = ?`), false, who)
	if err != nil {
		return fmt.Errorf("deactivate ban %d: %w", who, err)
	}
	return nil
}

// ActiveBans lists active bans, newest first.
func (s *Store) ActiveBans(ctx context.Context) ([]domain.BanRecord, error) {
	var out []domain.BanRecord
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT identity, reason, active, created_at FROM bans
		WHERE active = ?
		ORDER BY created_at DESC, identity DESC`), true)
	if err != nil {
		return nil, fmt.Errorf("active bans: %w", err)
	}
	return out, nil
}

// IncrementAttempts adds one failed attempt and returns the new count.
func (s *Store) IncrementAttempts(ctx context.Context, who domain.Identity, at time.Time) (int, error) {
	var n int
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO challenge_attempts (identity, attempts, last_attempt_at)
		VALUES (?, 1, ?)
		ON CONFLICT (identity) DO UPDATE
		SET attempts = challenge_attempts.attempts + 1, last_attempt_at = excluded.last_attempt_at
		RETURNING attempts`),
		who, at.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment attempts %d: %w", who, err)
	}
	return n, nil
}

// Attempts returns the failed attempt count, zero when none were recorded.
func (s *Store) Attempts(ctx context.Context, who domain.Identity) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT attempts FROM challenge_attempts WHERE identity = ?`), who)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("attempts %d: %w", who, err)
	}
	return n, nil
}

// ResetAttempts zeroes the failed attempt count.
func (s *Store) ResetAttempts(ctx context.Context, who domain.Identity) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM challenge_attempts WHERE identity = ?`), who); err != nil {
		return fmt.Errorf("reset attempts %d: %w", who, err)
	}
	return nil
}

// CreateUnbanRequest stores a pending request and returns its id.
func (s *Store) CreateUnbanRequest(ctx context.Context, who domain.Identity, reason string) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO unban_requests (identity, reason, status, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		who, reason, domain.UnbanPending, s.now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create unban request: %w", err)
	}
	return id, nil
}

// HasPendingUnbanRequest reports whether the identity has an undecided request.
func (s *Store) HasPendingUnbanRequest(ctx context.Context, who domain.Identity) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`
		SELECT COUNT(*) FROM unban_requests WHERE identity = ? AND status = ?`),
		who, domain.UnbanPending)
	if err != nil {
		return false, fmt.Errorf("pending unban requests %d: %w", who, err)
	}
	return n > 0, nil
}

// UnbanRequest returns one request.
func (s *Store) UnbanRequest(ctx context.Context, id int64) (*domain.UnbanRequest, error) {
	var r domain.UnbanRequest
	err := s.db.GetContext(ctx, &r, s.q(`
		SELECT id, identity, reason, status, created_at FROM unban_requests WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// UnbanRequests lists requests with the given status, newest first.
func (s *Store) UnbanRequests(ctx context.Context, status domain.UnbanStatus) ([]domain.UnbanRequest, error) {
	var out []domain.UnbanRequest
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT id, identity, reason, status, created_at FROM unban_requests
		WHERE status = ?
		ORDER BY created_at DESC, id DESC`), status)
	if err != nil {
		return nil, fmt.Errorf("unban requests: %w", err)
	}
	return out, nil
}

// DecideUnbanRequest moves a pending request to status.
// It returns ErrAlreadyDecided when the request is no longer pending.
func (s *Store) DecideUnbanRequest(ctx context.Context, id int64, status domain.UnbanStatus) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE unban_requests SET status = ? WHERE id = ? AND status = ?`),
		status, id, domain.UnbanPending)
	if err != nil {
		return fmt.Errorf("decide unban request %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.UnbanRequest(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadyDecided
}
