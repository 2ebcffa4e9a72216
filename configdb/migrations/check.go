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

package migrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckMode defines how migration version checking behaves.
type CheckMode int

const (
	// CheckModeFail returns an error when the schema is behind or dirty.
	CheckModeFail CheckMode = iota
	// CheckModeWarn logs a warning about mismatches but continues. Used
	// by operator tooling that must work against a mid-upgrade database.
	CheckModeWarn
	// CheckModeSkip skips version checking entirely.
	CheckModeSkip
)

// CheckOptions controls CheckVersion.
type CheckOptions struct {
	Mode       CheckMode
	AllowDirty bool
}

// CheckOption mutates CheckOptions.
type CheckOption func(*CheckOptions)

// WarnOnMismatch makes version mismatches non-fatal.
func WarnOnMismatch() CheckOption {
	return func(o *CheckOptions) { o.Mode = CheckModeWarn }
}

// WithAllowDirty permits a dirty migration state.
func WithAllowDirty(allow bool) CheckOption {
	return func(o *CheckOptions) { o.AllowDirty = allow }
}

// CheckVersion verifies the database schema matches the migrations
// embedded in this binary. MIGRATION_CHECK_ENABLED=false disables the
// check for local development.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, opts ...CheckOption) error {
	options := CheckOptions{Mode: CheckModeFail}
	for _, opt := range opts {
		opt(&options)
	}

	if strings.EqualFold(os.Getenv("MIGRATION_CHECK_ENABLED"), "false") {
		options.Mode = CheckModeSkip
	}
	if options.Mode == CheckModeSkip {
		slog.Debug("configdb migration version check skipped")
		return nil
	}

	expected, err := expectedVersion()
	if err != nil {
		return fmt.Errorf("determine expected migration version: %w", err)
	}

	m, cleanup, err := newMigrator(pool)
	if err != nil {
		return err
	}
	defer cleanup()

	current, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return reportMismatch(options, fmt.Errorf(
			"database has no migrations applied, expected version %d; run 'runtimeconfig migrate'", expected))
	}
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	if dirty && !options.AllowDirty {
		return reportMismatch(options, fmt.Errorf(
			"database migration state is dirty at version %d", current))
	}
	if uint(current) != expected {
		return reportMismatch(options, fmt.Errorf(
			"database is at migration version %d, binary expects %d", current, expected))
	}
	return nil
}

func reportMismatch(options CheckOptions, err error) error {
	if options.Mode == CheckModeWarn {
		slog.Warn("configdb migration version mismatch", slog.Any("error", err))
		return nil
	}
	return err
}
