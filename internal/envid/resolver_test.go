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

package envid

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/runtimeconfig/configdb"
)

// mockEnvStore is a test double for EnvironmentStore.
type mockEnvStore struct {
	envs      []configdb.Environment
	listErr   error
	getErr    error
	listCalls atomic.Int32
	getCalls  atomic.Int32
}

func (m *mockEnvStore) ListEnvironments(ctx context.Context) ([]configdb.Environment, error) {
	m.listCalls.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.envs, nil
}

func (m *mockEnvStore) GetEnvironmentByCode(ctx context.Context, code string) (configdb.Environment, bool, error) {
	m.getCalls.Add(1)
	if m.getErr != nil {
		return configdb.Environment{}, false, m.getErr
	}
	for _, env := range m.envs {
		if env.Code == code {
			return env, true, nil
		}
	}
	return configdb.Environment{}, false, nil
}

func threeEnvs() []configdb.Environment {
	return []configdb.Environment{
		{ID: 1, Code: "DEV", BaseURL: "http://localhost:8090"},
		{ID: 2, Code: "UAT", BaseURL: "https://uat.example.com"},
		{ID: 3, Code: "PROD", BaseURL: "https://wiki.example.com"},
	}
}

func TestResolve_FlagOverrideWinsOverPattern(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	// Hostname pattern would say DEV; the override must win.
	r := New(store, "UAT", "http://localhost:8090", time.Minute, nil)

	res := r.Resolve(context.Background())
	assert.Equal(t, "UAT", res.Code)
	assert.Equal(t, SourceOverride, res.Source)
}

func TestResolve_OverrideIsCaseInsensitive(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "uat", "", time.Minute, nil)

	assert.Equal(t, "UAT", r.CurrentCode(context.Background()))
}

func TestResolve_InvalidOverrideFallsThrough(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "BOGUS", "https://uat.example.com", time.Minute, nil)

	res := r.Resolve(context.Background())
	assert.Equal(t, "UAT", res.Code, "invalid override must not be accepted")
	assert.Equal(t, SourceStore, res.Source)
}

func TestResolve_EnvVarOverride(t *testing.T) {
	t.Setenv(EnvVarOverride, "prod")
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "", "http://localhost:8090", time.Minute, nil)

	res := r.Resolve(context.Background())
	assert.Equal(t, "PROD", res.Code)
	assert.Equal(t, SourceEnvVar, res.Source)
}

func TestResolve_StoreURLMatchNormalizes(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	// Differs from the stored URL by case and trailing slash only.
	r := New(store, "", "HTTP://LOCALHOST:8090/", time.Minute, nil)

	res := r.Resolve(context.Background())
	assert.Equal(t, "DEV", res.Code)
	assert.Equal(t, SourceStore, res.Source)
}

func TestResolve_PatternFallbackWhenStoreDown(t *testing.T) {
	store := &mockEnvStore{listErr: errors.New("connection refused")}

	t.Run("localhost resolves to DEV", func(t *testing.T) {
		r := New(store, "", "http://localhost:8090", time.Minute, nil)
		res := r.Resolve(context.Background())
		assert.Equal(t, "DEV", res.Code)
		assert.Equal(t, SourcePattern, res.Source)
	})

	t.Run("uat marker resolves to UAT", func(t *testing.T) {
		r := New(store, "", "https://wiki-staging.example.com", time.Minute, nil)
		assert.Equal(t, "UAT", r.CurrentCode(context.Background()))
	})

	t.Run("prod marker resolves to PROD", func(t *testing.T) {
		r := New(store, "", "https://wiki-prod.example.com", time.Minute, nil)
		assert.Equal(t, "PROD", r.CurrentCode(context.Background()))
	})
}

func TestResolve_FailSafeDefault(t *testing.T) {
	store := &mockEnvStore{listErr: errors.New("connection refused")}
	r := New(store, "", "https://wiki.internal.example.com", time.Minute, nil)

	res := r.Resolve(context.Background())
	assert.Equal(t, "PROD", res.Code)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolve_ResultIsCached(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "", "https://uat.example.com", time.Minute, nil)
	ctx := context.Background()

	first := r.Resolve(ctx)
	require.False(t, first.Cached)
	calls := store.listCalls.Load()

	second := r.Resolve(ctx)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, calls, store.listCalls.Load(), "cached resolution must not hit the store")
}

func TestResolve_OverrideValidationIsCached(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "UAT", "", time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		res := r.Resolve(ctx)
		require.Equal(t, "UAT", res.Code)
	}
	assert.Equal(t, int32(1), store.listCalls.Load(),
		"override validation must reuse the cached environment set within the TTL")
}

func TestResolve_StoreFailureIsNotRetriedPerCall(t *testing.T) {
	store := &mockEnvStore{listErr: errors.New("connection refused")}
	r := New(store, "UAT", "", time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Equal(t, "UAT", r.CurrentCode(ctx))
	}
	assert.Equal(t, int32(1), store.listCalls.Load(),
		"a down store must not be re-queried on every resolution")
}

func TestResolve_InvalidOverrideValidatedAgainstStaticSetWhenStoreDown(t *testing.T) {
	store := &mockEnvStore{listErr: errors.New("connection refused")}
	r := New(store, "UAT", "", time.Minute, nil)

	res := r.Resolve(context.Background())
	assert.Equal(t, "UAT", res.Code)
	assert.Equal(t, SourceOverride, res.Source)
}

func TestEnvironmentID(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "", "", time.Minute, nil)
	ctx := context.Background()

	id, err := r.EnvironmentID(ctx, "UAT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)

	// Second lookup is served from the id cache.
	calls := store.getCalls.Load()
	id, err = r.EnvironmentID(ctx, "uat")
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)
	assert.Equal(t, calls, store.getCalls.Load())
}

func TestEnvironmentID_UnknownCodeIsHardFailure(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "", "", time.Minute, nil)

	_, err := r.EnvironmentID(context.Background(), "QA")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEnvironment)
	assert.Contains(t, err.Error(), "QA")
	assert.Contains(t, err.Error(), "environments table")
}

func TestEnvironmentID_StoreErrorIsNotUnknown(t *testing.T) {
	store := &mockEnvStore{getErr: errors.New("connection refused")}
	r := New(store, "", "", time.Minute, nil)

	_, err := r.EnvironmentID(context.Background(), "DEV")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEnvironment,
		"a store outage must be distinguishable from a missing row")
}

func TestInvalidateCache(t *testing.T) {
	store := &mockEnvStore{envs: threeEnvs()}
	r := New(store, "", "https://uat.example.com", time.Minute, nil)
	ctx := context.Background()

	r.Resolve(ctx)
	calls := store.listCalls.Load()

	r.InvalidateCache()
	res := r.Resolve(ctx)
	assert.False(t, res.Cached)
	assert.Greater(t, store.listCalls.Load(), calls)
}
