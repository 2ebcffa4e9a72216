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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardinalhq/runtimeconfig/config"
	"github.com/cardinalhq/runtimeconfig/configdb"
	"github.com/cardinalhq/runtimeconfig/configdb/migrations"
	"github.com/cardinalhq/runtimeconfig/internal/audit"
	"github.com/cardinalhq/runtimeconfig/internal/configcache"
	"github.com/cardinalhq/runtimeconfig/internal/configservice"
	"github.com/cardinalhq/runtimeconfig/internal/envid"
)

// buildService is the composition root: it wires the store, resolver,
// cache, and audit recorder into a single Service instance and registers
// it as the process-wide singleton.
func buildService(ctx context.Context) (*configservice.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	store, err := configdb.ConnectStore(ctx, migrations.WarnOnMismatch())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to configdb: %w", err)
	}

	override := environmentFlag
	if override == "" {
		override = cfg.Environment.Override
	}

	resolver := envid.New(store, override, cfg.Environment.BaseURL, cfg.Cache.TTL, slog.Default())
	cache := configcache.New(cfg.Cache.TTL)
	recorder := audit.NewRecorder(store, cfg.Audit.QueueSize, cfg.Audit.Workers, slog.Default())

	svc := configservice.New(store, resolver, cache, recorder, slog.Default(), cfg.Environment.Local)
	configservice.NewGlobal(svc)

	cleanup := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := recorder.Close(drainCtx); err != nil {
			slog.Warn("audit recorder did not drain cleanly", slog.Any("error", err))
		}
		store.Close()
	}
	return svc, cleanup, nil
}
