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

// Package migrations owns the configdb schema: the environments and
// config_entries tables plus the append-only audit_events table.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed *.sql
var migrationFiles embed.FS

const migrationsTable = "gomigrate_runtimeconfig"

// RunMigrationsUp applies all up migrations using the embedded files.
func RunMigrationsUp(ctx context.Context, pool *pgxpool.Pool) error {
	m, cleanup, err := newMigrator(pool)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	slog.Info("configdb migrations applied",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty))
	return nil
}

func newMigrator(pool *pgxpool.Pool) (*migrate.Migrate, func(), error) {
	sourceDriver, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("create iofs driver: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)

	dbDriver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("create pgx driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}

	cleanup := func() {
		_ = dbDriver.Close()
		_ = sqlDB.Close()
	}
	return m, cleanup, nil
}

// expectedVersion returns the highest migration version embedded in this
// binary.
func expectedVersion() (uint, error) {
	entries, err := migrationFiles.ReadDir(".")
	if err != nil {
		return 0, err
	}

	var max uint
	for _, entry := range entries {
		var version uint
		var rest string
		if _, err := fmt.Sscanf(entry.Name(), "%d_%s", &version, &rest); err != nil {
			continue
		}
		if version > max {
			max = version
		}
	}
	if max == 0 {
		return 0, errors.New("no embedded migration files found")
	}
	return max, nil
}
