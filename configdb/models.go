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
	"time"

	"github.com/google/uuid"
)

// DataType constrains how a configuration value is interpreted by typed
// accessors.
type DataType string

const (
	DataTypeString  DataType = "STRING"
	DataTypeInteger DataType = "INTEGER"
	DataTypeBoolean DataType = "BOOLEAN"
)

// ConfigEntry is one row of the config_entries table. EnvironmentID nil
// means the value is global and applies to every environment that has no
// environment-specific override. Rows are never deleted; they are
// deactivated so the audit trail stays coherent.
type ConfigEntry struct {
	ID              int64
	Key             string
	EnvironmentID   *int32
	Value           string
	DataType        DataType
	Classification  string
	IsActive        bool
	IsSystemManaged bool
	Description     string
}

// Environment is one row of the environments table. Code is unique and
// stored uppercase.
type Environment struct {
	ID      int32
	Code    string
	BaseURL string
}

// AuditEventRow is the persisted shape of an audit event. Value-bearing
// fields arrive pre-masked; this layer never sees raw sensitive values.
type AuditEventRow struct {
	ID              uuid.UUID
	EventType       string
	Key             string
	EnvironmentCode string
	Classification  string
	MaskedValue     string
	Actor           string
	RecordedAt      time.Time
	DurationMs      int64
}

// LookupStatus distinguishes a row that is genuinely absent from one we
// could not check. Tier logic in the resolution engine switches on this
// instead of inspecting errors.
type LookupStatus int

const (
	// LookupFound means an active row matched.
	LookupFound LookupStatus = iota
	// LookupNotFound means the store answered and no active row matched.
	LookupNotFound
	// LookupUnavailable means the store could not be consulted; Err holds
	// the cause.
	LookupUnavailable
)

// Lookup is the tagged result of a single-entry query.
type Lookup struct {
	Status LookupStatus
	Entry  ConfigEntry
	Err    error
}
