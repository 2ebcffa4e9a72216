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

// Package configservice resolves configuration values for the current
// environment.
//
// # Fallback Chain
//
// Lookups follow: cache -> environment-specific row -> global row ->
// process environment variable (local environments only) -> caller
// default. A store outage at any tier is absorbed and resolution
// continues to the next tier; a transient database problem must never
// make the surrounding application unable to start or operate.
//
// # Caching
//
// Resolved values are cached per (key, environment code) with a fixed
// TTL. Caller defaults are not cached, so the store is retried on the
// next call once it comes back.
//
// # Auditing
//
// Every read and cache-management operation emits an audit event through
// a non-blocking recorder. Values are masked for their sensitivity
// classification before they reach an event or a log line.
package configservice
