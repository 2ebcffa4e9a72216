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
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	getDefault string
	getType    string
	getSection bool
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a configuration value for the current environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Validate the flag combination before touching the database so
		// usage mistakes fail fast.
		intDef, boolDef, err := parseTypedDefault(getType, getDefault)
		if err != nil {
			return err
		}

		svc, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if getSection {
			section := svc.GetSection(ctx, args[0])
			keys := make([]string, 0, len(section))
			for k := range section {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s=%s\n", k, section[k])
			}
			return nil
		}

		switch getType {
		case "int":
			fmt.Println(svc.GetInt(ctx, args[0], intDef))
		case "bool":
			fmt.Println(svc.GetBool(ctx, args[0], boolDef))
		default:
			fmt.Println(svc.GetString(ctx, args[0], getDefault))
		}
		return nil
	},
}

// parseTypedDefault parses --default according to --type. An unparseable
// default is a usage error, not something to silently coerce to zero.
func parseTypedDefault(typ, raw string) (int, bool, error) {
	switch typ {
	case "int":
		if raw == "" {
			return 0, false, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false, fmt.Errorf("invalid --default %q for --type int", raw)
		}
		return v, false, nil
	case "bool":
		if raw == "" {
			return 0, false, nil
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, false, fmt.Errorf("invalid --default %q for --type bool", raw)
		}
		return 0, v, nil
	}
	return 0, false, nil
}

func init() {
	getCmd.Flags().StringVar(&getDefault, "default", "", "value to return when no tier resolves the key")
	getCmd.Flags().StringVar(&getType, "type", "string", "interpret the value as string, int, or bool")
	getCmd.Flags().BoolVar(&getSection, "section", false, "treat <key> as a prefix and list the whole section")
	rootCmd.AddCommand(getCmd)
}
