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

package configservice

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/runtimeconfig/configdb"
	"github.com/cardinalhq/runtimeconfig/internal/audit"
	"github.com/cardinalhq/runtimeconfig/internal/configcache"
	"github.com/cardinalhq/runtimeconfig/internal/envid"
)

// mockQuerier is a test mock for EntryQuerier. Entries are keyed by
// "key|envID" with envID "-" for global rows.
type mockQuerier struct {
	mu           sync.Mutex
	entries      map[string]configdb.ConfigEntry
	getCallCount atomic.Int32
	unavailable  bool
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{entries: make(map[string]configdb.ConfigEntry)}
}

func entryKey(key string, envID *int32) string {
	if envID == nil {
		return key + "|-"
	}
	return key + "|" + strconv.Itoa(int(*envID))
}

func (m *mockQuerier) put(key string, envID *int32, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(key, envID)] = configdb.ConfigEntry{
		Key:           key,
		EnvironmentID: envID,
		Value:         value,
		IsActive:      true,
	}
}

func (m *mockQuerier) putEntry(e configdb.ConfigEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(e.Key, e.EnvironmentID)] = e
}

func (m *mockQuerier) GetActiveEntry(ctx context.Context, key string, envID *int32) configdb.Lookup {
	m.getCallCount.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return configdb.Lookup{Status: configdb.LookupUnavailable, Err: errors.New("connection refused")}
	}
	if e, ok := m.entries[entryKey(key, envID)]; ok {
		return configdb.Lookup{Status: configdb.LookupFound, Entry: e}
	}
	return configdb.Lookup{Status: configdb.LookupNotFound}
}

func (m *mockQuerier) ListActiveEntriesByPrefix(ctx context.Context, prefix string, envID *int32) ([]configdb.ConfigEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, errors.New("connection refused")
	}
	var out []configdb.ConfigEntry
	for _, e := range m.entries {
		sameScope := (envID == nil) == (e.EnvironmentID == nil) &&
			(envID == nil || *envID == *e.EnvironmentID)
		if sameScope && strings.HasPrefix(e.Key, prefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

// mockEnvResolver is a fixed-environment test double.
type mockEnvResolver struct {
	code  string
	idErr error
}

func (m *mockEnvResolver) Resolve(ctx context.Context) envid.Resolution {
	return envid.Resolution{Code: m.code, Source: envid.SourceStore, Cached: true}
}

func (m *mockEnvResolver) EnvironmentID(ctx context.Context, code string) (int32, error) {
	if m.idErr != nil {
		return 0, m.idErr
	}
	switch code {
	case "DEV":
		return 1, nil
	case "UAT":
		return 2, nil
	case "PROD":
		return 3, nil
	}
	return 0, envid.ErrUnknownEnvironment
}

// mockRecorder collects audit events synchronously.
type mockRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *mockRecorder) Record(event audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockRecorder) byType(t audit.EventType) []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T, store *mockQuerier, envCode string) (*Service, *mockRecorder) {
	t.Helper()
	rec := &mockRecorder{}
	svc := New(store, &mockEnvResolver{code: envCode}, configcache.New(time.Minute), rec, nil, nil)
	return svc, rec
}

func int32p(v int32) *int32 { return &v }

func TestGetString_EnvironmentSpecificBeatsGlobal(t *testing.T) {
	store := newMockQuerier()
	store.put("smtp.host", int32p(1), "dev-mail.example.com")
	store.put("smtp.host", nil, "mail.example.com")
	svc, _ := newTestService(t, store, "DEV")

	assert.Equal(t, "dev-mail.example.com", svc.GetString(context.Background(), "smtp.host", ""))
}

func TestGetString_GlobalFallback(t *testing.T) {
	store := newMockQuerier()
	store.put("smtp.host", nil, "mail.example.com")
	svc, _ := newTestService(t, store, "PROD")

	assert.Equal(t, "mail.example.com", svc.GetString(context.Background(), "smtp.host", ""))
}

func TestGetString_DefaultWhenAbsent(t *testing.T) {
	store := newMockQuerier()
	svc, _ := newTestService(t, store, "PROD")

	assert.Equal(t, "fallback", svc.GetString(context.Background(), "missing.key", "fallback"))
}

func TestGetString_EmptyKeyReturnsDefault(t *testing.T) {
	store := newMockQuerier()
	svc, _ := newTestService(t, store, "DEV")

	assert.Equal(t, "d", svc.GetString(context.Background(), "", "d"))
	assert.Equal(t, "d", svc.GetString(context.Background(), "   ", "d"))
	assert.Equal(t, int32(0), store.getCallCount.Load(), "empty key must not reach the store")
}

func TestGetString_SecondCallServedFromCache(t *testing.T) {
	store := newMockQuerier()
	store.put("feature.x", int32p(1), "on")
	svc, _ := newTestService(t, store, "DEV")
	ctx := context.Background()

	first := svc.GetString(ctx, "feature.x", "")
	calls := store.getCallCount.Load()

	second := svc.GetString(ctx, "feature.x", "")
	assert.Equal(t, first, second)
	assert.Equal(t, calls, store.getCallCount.Load(), "second call within TTL must not re-query the store")
}

func TestGetString_ExpiredEntryRequeriesStore(t *testing.T) {
	store := newMockQuerier()
	store.put("feature.x", int32p(1), "on")
	rec := &mockRecorder{}
	svc := New(store, &mockEnvResolver{code: "DEV"}, configcache.New(50*time.Millisecond), rec, nil, nil)
	ctx := context.Background()

	svc.GetString(ctx, "feature.x", "")
	calls := store.getCallCount.Load()

	time.Sleep(80 * time.Millisecond)
	store.put("feature.x", int32p(1), "off")

	assert.Equal(t, "off", svc.GetString(ctx, "feature.x", ""))
	assert.Greater(t, store.getCallCount.Load(), calls)
}

func TestGetString_ProcessEnvOnlyInLocalEnvironment(t *testing.T) {
	t.Setenv("SMTP_RELAY_HOST", "relay.local")
	store := newMockQuerier()

	t.Run("DEV consults process environment", func(t *testing.T) {
		svc, _ := newTestService(t, store, "DEV")
		assert.Equal(t, "relay.local", svc.GetString(context.Background(), "smtp.relay.host", "d"))
	})

	t.Run("PROD never consults process environment", func(t *testing.T) {
		svc, _ := newTestService(t, store, "PROD")
		assert.Equal(t, "d", svc.GetString(context.Background(), "smtp.relay.host", "d"))
	})
}

func TestGetString_DefaultIsNotCached(t *testing.T) {
	store := newMockQuerier()
	svc, _ := newTestService(t, store, "PROD")
	ctx := context.Background()

	assert.Equal(t, "d", svc.GetString(ctx, "late.key", "d"))

	// The store gains the row; the next call must see it rather than a
	// cached default.
	store.put("late.key", nil, "from-store")
	assert.Equal(t, "from-store", svc.GetString(ctx, "late.key", "d"))
}

func TestGetString_StoreUnavailableFailsSoft(t *testing.T) {
	store := newMockQuerier()
	store.unavailable = true
	svc, _ := newTestService(t, store, "PROD")

	assert.Equal(t, "d", svc.GetString(context.Background(), "any.key", "d"))
}

func TestGetString_UnknownEnvironmentSkipsScopedTier(t *testing.T) {
	store := newMockQuerier()
	store.put("smtp.host", nil, "mail.example.com")
	rec := &mockRecorder{}
	env := &mockEnvResolver{code: "QA", idErr: envid.ErrUnknownEnvironment}
	svc := New(store, env, configcache.New(time.Minute), rec, nil, nil)

	// Global tier still works even when the environment id is
	// unresolvable.
	assert.Equal(t, "mail.example.com", svc.GetString(context.Background(), "smtp.host", ""))
}

func TestGetInt(t *testing.T) {
	store := newMockQuerier()
	store.put("pool.size", nil, "25")
	store.put("pool.bad", nil, "not-a-number")
	svc, _ := newTestService(t, store, "PROD")
	ctx := context.Background()

	assert.Equal(t, 25, svc.GetInt(ctx, "pool.size", 5))
	assert.Equal(t, 5, svc.GetInt(ctx, "pool.bad", 5))
	assert.Equal(t, 5, svc.GetInt(ctx, "pool.missing", 5))
}

func TestGetInt_StoredEmptyValueIsParseFailure(t *testing.T) {
	store := newMockQuerier()
	store.put("pool.size", nil, "")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := New(store, &mockEnvResolver{code: "PROD"}, configcache.New(time.Minute), &mockRecorder{}, logger, nil)

	assert.Equal(t, 5, svc.GetInt(context.Background(), "pool.size", 5))
	assert.Contains(t, buf.String(), "not an integer",
		"a stored empty value must surface as a parse failure, not a silent miss")
}

func TestGetBool_StoredEmptyValueIsParseFailure(t *testing.T) {
	store := newMockQuerier()
	store.put("feature.x", nil, "")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := New(store, &mockEnvResolver{code: "PROD"}, configcache.New(time.Minute), &mockRecorder{}, logger, nil)

	assert.True(t, svc.GetBool(context.Background(), "feature.x", true))
	assert.Contains(t, buf.String(), "not a recognized boolean token")
}

func TestGetBool(t *testing.T) {
	store := newMockQuerier()
	svc, _ := newTestService(t, store, "PROD")
	ctx := context.Background()

	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"yes", false, true},
		{"1", false, true},
		{"on", false, true},
		{"enabled", false, true},
		{"TRUE", false, true},
		{"false", true, false},
		{"no", true, false},
		{"0", true, false},
		{"off", true, false},
		{"disabled", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		store.put("feature.x", nil, tt.value)
		svc.ClearCache(ctx)
		assert.Equal(t, tt.want, svc.GetBool(ctx, "feature.x", tt.def),
			"value %q default %v", tt.value, tt.def)
	}

	assert.True(t, svc.GetBool(ctx, "feature.absent", true))
}

func TestGetSection(t *testing.T) {
	store := newMockQuerier()
	store.put("smtp.host", int32p(3), "mail.example.com")
	store.put("smtp.port", int32p(3), "25")
	svc, _ := newTestService(t, store, "PROD")

	section := svc.GetSection(context.Background(), "smtp.")
	assert.Equal(t, map[string]string{
		"host": "mail.example.com",
		"port": "25",
	}, section)
}

func TestGetSection_EnvironmentWinsOnCollision(t *testing.T) {
	store := newMockQuerier()
	store.put("smtp.host", nil, "global-mail")
	store.put("smtp.host", int32p(1), "dev-mail")
	store.put("smtp.port", nil, "25")
	svc, _ := newTestService(t, store, "DEV")

	section := svc.GetSection(context.Background(), "smtp.")
	assert.Equal(t, map[string]string{
		"host": "dev-mail",
		"port": "25",
	}, section)
}

func TestGetSection_EmptyOnFailureOrBadInput(t *testing.T) {
	store := newMockQuerier()
	store.unavailable = true
	svc, _ := newTestService(t, store, "DEV")
	ctx := context.Background()

	assert.Empty(t, svc.GetSection(ctx, "smtp."))
	assert.Empty(t, svc.GetSection(ctx, ""))
}

func TestAudit_ReadEventsAreMasked(t *testing.T) {
	store := newMockQuerier()
	store.put("smtp.password", int32p(1), "hunter2-with-entropy")
	svc, rec := newTestService(t, store, "DEV")

	svc.GetString(context.Background(), "smtp.password", "")

	reads := rec.byType(audit.EventRead)
	require.Len(t, reads, 1)
	assert.Equal(t, "smtp.password", reads[0].Key)
	assert.Equal(t, "CONFIDENTIAL", reads[0].Classification)
	assert.Equal(t, "[REDACTED]", reads[0].MaskedValue)
	assert.NotContains(t, reads[0].MaskedValue, "hunter2")
}

func TestAudit_ExplicitClassificationWins(t *testing.T) {
	store := newMockQuerier()
	store.putEntry(configdb.ConfigEntry{
		Key:            "smtp.host",
		EnvironmentID:  int32p(1),
		Value:          "mail.example.com",
		Classification: "CONFIDENTIAL",
		IsActive:       true,
	})
	svc, rec := newTestService(t, store, "DEV")

	svc.GetString(context.Background(), "smtp.host", "")

	reads := rec.byType(audit.EventRead)
	require.Len(t, reads, 1)
	assert.Equal(t, "[REDACTED]", reads[0].MaskedValue)
}

func TestAudit_CacheManagementEvents(t *testing.T) {
	store := newMockQuerier()
	svc, rec := newTestService(t, store, "DEV")
	ctx := context.Background()

	svc.ClearCache(ctx)
	svc.RefreshCache(ctx)

	assert.Len(t, rec.byType(audit.EventCacheClear), 1)
	assert.Len(t, rec.byType(audit.EventCacheRefresh), 1)
}

func TestCacheStats(t *testing.T) {
	store := newMockQuerier()
	store.put("a", nil, "1")
	svc, _ := newTestService(t, store, "PROD")
	ctx := context.Background()

	svc.GetString(ctx, "a", "")
	svc.GetString(ctx, "a", "")

	stats := svc.CacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.GreaterOrEqual(t, stats.Hits, uint64(1))
}

func TestConcurrentResolutionAndClear(t *testing.T) {
	store := newMockQuerier()
	store.put("shared.key", int32p(1), "value")
	svc, _ := newTestService(t, store, "DEV")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := svc.GetString(ctx, "shared.key", "d")
			// Either the stored value or, mid-clear, a re-resolved one;
			// never a corrupted result.
			assert.Equal(t, "value", v)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.ClearCache(ctx)
		svc.EvictExpiredCacheEntries()
	}()
	wg.Wait()
}
