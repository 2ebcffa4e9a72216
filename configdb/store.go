// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package configdb is the only component that talks to the relational
// store. It returns configuration rows as plain tuples and tagged lookup
// results; all resolution policy lives above it.
package configdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryTimeout bounds every store call so a slow database cannot stall
// the resolution path; callers treat a timeout as "could not check".
const queryTimeout = 5 * time.Second

// Store provides all functions to execute db queries and transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for migration tooling.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// execTx executes fn inside a database transaction.
func (s *Store) execTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx err: %w, rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}

func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}
