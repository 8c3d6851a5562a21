package store

import (
	"context"
	"database/sql"
	"fmt"
)

// This file bootstraps the persisted layout owned by the store: the tickets
// table keyed by number and the purchases table keyed by the external
// purchase reference.  The pool is seeded exactly once; reruns are no-ops.

const createTickets = `
CREATE TABLE IF NOT EXISTS tickets (
	number      INT UNSIGNED NOT NULL,
	status      ENUM('AVAILABLE', 'RESERVED', 'SOLD') NOT NULL DEFAULT 'AVAILABLE',
	holder      VARCHAR(128) NULL,
	purchase_id VARCHAR(64) NULL,
	reserved_at DATETIME NULL,
	sold_at     DATETIME NULL,
	PRIMARY KEY (number),
	KEY idx_tickets_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createPurchases = `
CREATE TABLE IF NOT EXISTS purchases (
	id         VARCHAR(64) NOT NULL,
	holder     VARCHAR(128) NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the tickets and purchases tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createTickets); err != nil {
		return fmt.Errorf("create tickets table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createPurchases); err != nil {
		return fmt.Errorf("create purchases table: %w", err)
	}
	return nil
}

// EnsurePool seeds ticket numbers 1..total in AVAILABLE state.  Tickets are
// created once for the lifetime of the system and never deleted, so seeding
// uses INSERT IGNORE and an existing pool is left untouched.  Rows are
// inserted in chunks to keep statements bounded.
func EnsurePool(ctx context.Context, db *sql.DB, total int) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		return fmt.Errorf("count tickets: %w", err)
	}
	if count >= total {
		return nil
	}
	const chunk = 1000
	for start := 1; start <= total; start += chunk {
		end := start + chunk - 1
		if end > total {
			end = total
		}
		query := `INSERT IGNORE INTO tickets (number) VALUES `
		args := make([]interface{}, 0, end-start+1)
		for n := start; n <= end; n++ {
			if n > start {
				query += ","
			}
			query += "(?)"
			args = append(args, n)
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("seed tickets %d-%d: %w", start, end, err)
		}
	}
	return nil
}
