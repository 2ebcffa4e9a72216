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

package configdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/runtimeconfig/configdb/migrations"
)

// Connect builds a pool from the CONFIGDB_* environment variables and
// verifies the schema is at the expected migration version.
func Connect(ctx context.Context, opts ...migrations.CheckOption) (*pgxpool.Pool, error) {
	connectionString, err := DatabaseURLFromEnv()
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	if err := migrations.CheckVersion(ctx, pool, opts...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configdb migration version check failed: %w", err)
	}

	return pool, nil
}

// ConnectStore connects and wraps the pool in a Store.
func ConnectStore(ctx context.Context, opts ...migrations.CheckOption) (*Store, error) {
	pool, err := Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

// NewPool creates a connection pool without running the migration
// version check; the migrate command needs this to bootstrap an empty
// database.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "configdb",
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}
