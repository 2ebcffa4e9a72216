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
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/runtimeconfig/config"
	"github.com/cardinalhq/runtimeconfig/configdb"
	"github.com/cardinalhq/runtimeconfig/configdb/migrations"
	"github.com/cardinalhq/runtimeconfig/internal/envid"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the resolved environment identity for this process",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		store, err := configdb.ConnectStore(ctx, migrations.WarnOnMismatch())
		if err != nil {
			return fmt.Errorf("connect to configdb: %w", err)
		}
		defer store.Close()

		override := environmentFlag
		if override == "" {
			override = cfg.Environment.Override
		}
		resolver := envid.New(store, override, cfg.Environment.BaseURL, cfg.Cache.TTL, slog.Default())

		res := resolver.Resolve(ctx)
		fmt.Printf("environment: %s (via %s)\n", res.Code, res.Source)

		id, err := resolver.EnvironmentID(ctx, res.Code)
		switch {
		case err == nil:
			fmt.Printf("id: %d\n", id)
		case errors.Is(err, envid.ErrUnknownEnvironment):
			fmt.Printf("id: unresolved (%v)\n", err)
		default:
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
