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

	"github.com/jackc/pgx/v5"
)

const getActiveEntryQuery = `
SELECT id, key, environment_id, value, data_type, classification,
       is_active, is_system_managed, description
FROM config_entries
WHERE key = $1
  AND environment_id IS NOT DISTINCT FROM $2
  AND is_active = true
`

// GetActiveEntry fetches the single active entry for (key, environment).
// Pass a nil environmentID for the global row. The result is tagged: a
// store failure is LookupUnavailable, never an error the caller must
// distinguish from absence by inspection.
func (s *Store) GetActiveEntry(ctx context.Context, key string, environmentID *int32) Lookup {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var e ConfigEntry
	err := s.pool.QueryRow(ctx, getActiveEntryQuery, key, environmentID).Scan(
		&e.ID, &e.Key, &e.EnvironmentID, &e.Value, &e.DataType,
		&e.Classification, &e.IsActive, &e.IsSystemManaged, &e.Description,
	)
	switch {
	case err == nil:
		return Lookup{Status: LookupFound, Entry: e}
	case errors.Is(err, pgx.ErrNoRows):
		return Lookup{Status: LookupNotFound}
	default:
		return Lookup{Status: LookupUnavailable, Err: err}
	}
}

const listActiveEntriesByPrefixQuery = `
SELECT id, key, environment_id, value, data_type, classification,
       is_active, is_system_managed, description
FROM config_entries
WHERE key LIKE $1 || '%'
  AND environment_id IS NOT DISTINCT FROM $2
  AND is_active = true
ORDER BY key
`

// ListActiveEntriesByPrefix returns all active entries whose key starts
// with prefix, scoped to one environment (nil for global rows).
func (s *Store) ListActiveEntriesByPrefix(ctx context.Context, prefix string, environmentID *int32) ([]ConfigEntry, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, listActiveEntriesByPrefixQuery, prefix, environmentID)
	if err != nil {
		return nil, fmt.Errorf("list entries by prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var entries []ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		if err := rows.Scan(
			&e.ID, &e.Key, &e.EnvironmentID, &e.Value, &e.DataType,
			&e.Classification, &e.IsActive, &e.IsSystemManaged, &e.Description,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const deactivateEntryQuery = `
UPDATE config_entries
SET is_active = false
WHERE key = $1
  AND environment_id IS NOT DISTINCT FROM $2
  AND is_active = true
`

const insertEntryQuery = `
INSERT INTO config_entries
  (key, environment_id, value, data_type, classification,
   is_active, is_system_managed, description)
VALUES ($1, $2, $3, $4, $5, true, $6, $7)
RETURNING id
`

// UpsertEntry writes a new active entry for (key, environment), first
// deactivating any current active row in the same transaction so that at
// most one active row exists per (key, environment). Previous rows stay
// in the table for audit continuity.
func (s *Store) UpsertEntry(ctx context.Context, e ConfigEntry) (ConfigEntry, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	err := s.execTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deactivateEntryQuery, e.Key, e.EnvironmentID); err != nil {
			return fmt.Errorf("deactivate previous entry for %q: %w", e.Key, err)
		}
		return tx.QueryRow(ctx, insertEntryQuery,
			e.Key, e.EnvironmentID, e.Value, e.DataType, e.Classification,
			e.IsSystemManaged, e.Description,
		).Scan(&e.ID)
	})
	if err != nil {
		return ConfigEntry{}, err
	}
	e.IsActive = true
	return e, nil
}

// DeactivateEntry retires the active entry for (key, environment) without
// deleting it. Returns true if a row was deactivated.
func (s *Store) DeactivateEntry(ctx context.Context, key string, environmentID *int32) (bool, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, deactivateEntryQuery, key, environmentID)
	if err != nil {
		return false, fmt.Errorf("deactivate entry %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}
