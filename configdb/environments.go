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
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const listEnvironmentsQuery = `
SELECT id, code, base_url
FROM environments
ORDER BY id
`

// ListEnvironments returns every environment row. The table is small and
// rarely changes; callers cache the result.
func (s *Store) ListEnvironments(ctx context.Context) ([]Environment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, listEnvironmentsQuery)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	var envs []Environment
	for rows.Next() {
		var e Environment
		if err := rows.Scan(&e.ID, &e.Code, &e.BaseURL); err != nil {
			return nil, err
		}
		envs = append(envs, e)
	}
	return envs, rows.Err()
}

const getEnvironmentByCodeQuery = `
SELECT id, code, base_url
FROM environments
WHERE code = $1
`

// GetEnvironmentByCode fetches one environment by its uppercase code.
// A code with no row reports found=false with a nil error; err is
// reserved for store failures.
func (s *Store) GetEnvironmentByCode(ctx context.Context, code string) (Environment, bool, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var e Environment
	err := s.pool.QueryRow(ctx, getEnvironmentByCodeQuery, strings.ToUpper(code)).Scan(&e.ID, &e.Code, &e.BaseURL)
	switch {
	case err == nil:
		return e, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return Environment{}, false, nil
	default:
		return Environment{}, false, fmt.Errorf("get environment %q: %w", code, err)
	}
}
