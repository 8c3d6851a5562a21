package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/model"
)

// MySQLStore is the production TicketStore backed by the tickets table.
// Conditional updates run inside a transaction with row locks so that two
// holders racing for the same numbers serialize at the database, not in the
// process.  After each committed mutation the store publishes a ChangeEvent
// to the feed so observers learn about the transition without polling.
type MySQLStore struct {
	db   *sql.DB
	feed *Feed // optional; nil disables change publishing
}

// NewMySQLStore constructs a MySQLStore bound to the provided database and
// change feed.  The feed may be nil, in which case subscribers rely solely
// on the broadcaster's fallback poll.
func NewMySQLStore(db *sql.DB, feed *Feed) *MySQLStore {
	return &MySQLStore{db: db, feed: feed}
}

// DB exposes the underlying handle for schema bootstrap and tests.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// StatusCounts reports SOLD and RESERVED counts in a single grouped query.
// AVAILABLE is intentionally not queried; it is a derived quantity.
func (s *MySQLStore) StatusCounts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tickets WHERE status IN ('SOLD', 'RESERVED') GROUP BY status`)
	if err != nil {
		return Counts{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		switch model.TicketStatus(status) {
		case model.StatusSold:
			c.Sold = n
		case model.StatusReserved:
			c.Reserved = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c, nil
}

// ConditionalUpdate implements the all-or-nothing batch transition.  The
// requested rows are locked with SELECT ... FOR UPDATE, their statuses are
// verified against expected, and only when every number matches does the
// UPDATE run.  Any mismatch rolls the transaction back and reports the
// offending numbers via *ConflictError.
func (s *MySQLStore) ConditionalUpdate(ctx context.Context, numbers []int, expected, next model.TicketStatus, holder, purchaseID string) ([]int, error) {
	if len(numbers) == 0 {
		return []int{}, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the requested rows and read their current statuses.
	query := `SELECT number, status FROM tickets WHERE number IN (` + placeholders(len(numbers)) + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, intArgs(numbers)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	current := make(map[int]model.TicketStatus, len(numbers))
	for rows.Next() {
		var n int
		var st string
		if scanErr := rows.Scan(&n, &st); scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, scanErr)
		}
		current[n] = model.TicketStatus(st)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Every requested number must exist and sit in the expected status,
	// otherwise the whole batch is rejected.
	var conflicting []int
	for _, n := range numbers {
		if st, ok := current[n]; !ok || st != expected {
			conflicting = append(conflicting, n)
		}
	}
	if len(conflicting) > 0 {
		return nil, &ConflictError{Numbers: conflicting}
	}

	upd := `UPDATE tickets SET status = ?, `
	args := []interface{}{string(next)}
	switch next {
	case model.StatusReserved:
		upd += `holder = ?, purchase_id = NULL, reserved_at = UTC_TIMESTAMP(), sold_at = NULL`
		args = append(args, holder)
	case model.StatusSold:
		upd += `holder = ?, purchase_id = ?, sold_at = UTC_TIMESTAMP()`
		args = append(args, holder, purchaseID)
	default: // back to AVAILABLE
		upd += `holder = NULL, purchase_id = NULL, reserved_at = NULL, sold_at = NULL`
	}
	upd += ` WHERE number IN (` + placeholders(len(numbers)) + `)`
	args = append(args, intArgs(numbers)...)
	if _, err := tx.ExecContext(ctx, upd, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if next == model.StatusSold && purchaseID != "" {
		// Record the purchase in the same transaction as the row flips.
		if _, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO purchases (id, holder) VALUES (?, ?)`, purchaseID, holder); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	committed = true

	if s.feed != nil {
		// Best effort; a lost event is absorbed by the fallback poll.
		s.feed.Publish(ctx, ChangeEvent{
			Numbers: numbers,
			Status:  next,
			Holder:  holder,
			At:      time.Now().UTC(),
		})
	}
	return numbers, nil
}

// UnavailableNumbers lists every ticket number that is not AVAILABLE.
func (s *MySQLStore) UnavailableNumbers(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number FROM tickets WHERE status <> 'AVAILABLE' ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return numbers, nil
}

// TicketsByNumbers fetches full rows for the given numbers.
func (s *MySQLStore) TicketsByNumbers(ctx context.Context, numbers []int) ([]model.Ticket, error) {
	if len(numbers) == 0 {
		return []model.Ticket{}, nil
	}
	query := `SELECT number, status, holder, purchase_id, reserved_at, sold_at
			  FROM tickets WHERE number IN (` + placeholders(len(numbers)) + `) ORDER BY number`
	rows, err := s.db.QueryContext(ctx, query, intArgs(numbers)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	var tickets []model.Ticket
	for rows.Next() {
		var t model.Ticket
		var status string
		var holder, purchase sql.NullString
		var reservedAt, soldAt sql.NullTime
		if err := rows.Scan(&t.Number, &status, &holder, &purchase, &reservedAt, &soldAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		t.Status = model.TicketStatus(status)
		if holder.Valid {
			t.Holder = &holder.String
		}
		if purchase.Valid {
			t.PurchaseID = &purchase.String
		}
		if reservedAt.Valid {
			t.ReservedAt = &reservedAt.Time
		}
		if soldAt.Valid {
			t.SoldAt = &soldAt.Time
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tickets, nil
}

// Subscribe delegates to the Redis change feed.  Without a feed the
// subscription is a no-op that never terminates and the caller relies on
// interval polling.
func (s *MySQLStore) Subscribe(ctx context.Context, fn func(ChangeEvent)) (func(), <-chan struct{}, error) {
	if s.feed == nil {
		return func() {}, make(chan struct{}), nil
	}
	return s.feed.Subscribe(ctx, fn)
}

// placeholders returns "?, ?, ..., ?" with n markers.
func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}

// intArgs widens ints into the []interface{} shape ExecContext expects.
func intArgs(numbers []int) []interface{} {
	args := make([]interface{}, 0, len(numbers))
	for _, n := range numbers {
		args = append(args, n)
	}
	return args
}
