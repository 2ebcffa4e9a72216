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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypedDefault(t *testing.T) {
	t.Run("valid int default", func(t *testing.T) {
		intDef, _, err := parseTypedDefault("int", "42")
		require.NoError(t, err)
		assert.Equal(t, 42, intDef)
	})

	t.Run("invalid int default is a usage error", func(t *testing.T) {
		_, _, err := parseTypedDefault("int", "forty-two")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--default")
	})

	t.Run("valid bool default", func(t *testing.T) {
		_, boolDef, err := parseTypedDefault("bool", "true")
		require.NoError(t, err)
		assert.True(t, boolDef)
	})

	t.Run("invalid bool default is a usage error", func(t *testing.T) {
		_, _, err := parseTypedDefault("bool", "maybe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--type bool")
	})

	t.Run("empty default is fine for every type", func(t *testing.T) {
		for _, typ := range []string{"string", "int", "bool"} {
			_, _, err := parseTypedDefault(typ, "")
			assert.NoError(t, err, "type %s", typ)
		}
	})

	t.Run("string type never parses the default", func(t *testing.T) {
		_, _, err := parseTypedDefault("string", "anything goes")
		assert.NoError(t, err)
	})
}

func TestCacheStatsCommandIsRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"cachestats"})
	require.NoError(t, err)
	require.Equal(t, "cachestats", cmd.Name())

	for _, flag := range []string{"clear", "refresh", "evict-expired"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %s", flag)
	}
}
