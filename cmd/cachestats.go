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
)

var (
	cacheStatsClear   bool
	cacheStatsRefresh bool
	cacheStatsEvict   bool
)

var cacheStatsCmd = &cobra.Command{
	Use:   "cachestats",
	Short: "Report resolution cache statistics and run cache maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if cacheStatsClear {
			svc.ClearCache(ctx)
		}
		if cacheStatsRefresh {
			svc.RefreshCache(ctx)
		}
		if cacheStatsEvict {
			svc.EvictExpiredCacheEntries()
		}

		stats := svc.CacheStats()
		fmt.Printf("size=%d hits=%d misses=%d evictions=%d ttl=%s\n",
			stats.Size, stats.Hits, stats.Misses, stats.Evictions, stats.TTL)
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().BoolVar(&cacheStatsClear, "clear", false, "clear the cache before reporting")
	cacheStatsCmd.Flags().BoolVar(&cacheStatsRefresh, "refresh", false, "mark cached values for re-fetch before reporting")
	cacheStatsCmd.Flags().BoolVar(&cacheStatsEvict, "evict-expired", false, "reclaim expired entries before reporting")
	rootCmd.AddCommand(cacheStatsCmd)
}
