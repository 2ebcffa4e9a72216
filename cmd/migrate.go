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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/runtimeconfig/configdb"
	"github.com/cardinalhq/runtimeconfig/configdb/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply configdb schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		url, err := configdb.DatabaseURLFromEnv()
		if err != nil {
			return err
		}
		pool, err := configdb.NewPool(ctx, url)
		if err != nil {
			return fmt.Errorf("connect to configdb: %w", err)
		}
		defer pool.Close()

		return migrations.RunMigrationsUp(ctx, pool)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
