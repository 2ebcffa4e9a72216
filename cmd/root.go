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
	"os"

	"github.com/spf13/cobra"
)

// environmentFlag is the launch-time environment override; it takes
// precedence over every other identity tier.
var environmentFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "runtimeconfig",
	Short: "Environment-aware configuration resolution",
	Long: `Resolve configuration values for the environment this process runs in,
backed by the configdb store with caching, sensitivity masking, and an
append-only audit trail.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&environmentFlag, "environment", "",
		"override the detected environment code (e.g. DEV, UAT, PROD)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	setupLogging("runtimeconfig")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
