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
)

const insertAuditEventQuery = `
INSERT INTO audit_events
  (id, event_type, key, environment_code, classification,
   masked_value, actor, recorded_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// InsertAuditEvent appends one row to the audit_events table. The table
// is append-only; nothing in this codebase updates or deletes from it.
func (s *Store) InsertAuditEvent(ctx context.Context, row AuditEventRow) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, insertAuditEventQuery,
		row.ID, row.EventType, row.Key, row.EnvironmentCode,
		row.Classification, row.MaskedValue, row.Actor,
		row.RecordedAt, row.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", row.EventType, err)
	}
	return nil
}
