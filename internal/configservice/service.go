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
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/runtimeconfig/configdb"
	"github.com/cardinalhq/runtimeconfig/internal/audit"
	"github.com/cardinalhq/runtimeconfig/internal/classify"
	"github.com/cardinalhq/runtimeconfig/internal/configcache"
	"github.com/cardinalhq/runtimeconfig/internal/envid"
)

var meter = otel.Meter("github.com/cardinalhq/runtimeconfig/internal/configservice")

var (
	global     *Service
	globalOnce sync.Once
)

// NewGlobal initializes the global config service instance.
// Thread-safe: only the first call initializes the service; subsequent
// calls are no-ops.
func NewGlobal(svc *Service) {
	globalOnce.Do(func() {
		global = svc
	})
}

// Global returns the global config service instance.
// Panics if NewGlobal has not been called.
func Global() *Service {
	if global == nil {
		panic("configservice: NewGlobal must be called before Global")
	}
	return global
}

// EntryQuerier defines the minimal database interface required by the
// resolution engine.
type EntryQuerier interface {
	GetActiveEntry(ctx context.Context, key string, environmentID *int32) configdb.Lookup
	ListActiveEntriesByPrefix(ctx context.Context, prefix string, environmentID *int32) ([]configdb.ConfigEntry, error)
}

// EnvironmentResolver is the slice of envid.Resolver the engine needs.
type EnvironmentResolver interface {
	Resolve(ctx context.Context) envid.Resolution
	EnvironmentID(ctx context.Context, code string) (int32, error)
}

// AuditRecorder receives one event per engine operation.
type AuditRecorder interface {
	Record(event audit.Event)
}

// Service is the public-facing resolution engine. All consumers obtain
// configuration through its accessors; nothing else reads the store for
// configuration purposes.
type Service struct {
	store    EntryQuerier
	env      EnvironmentResolver
	cache    *configcache.Cache
	recorder AuditRecorder
	logger   *slog.Logger

	// localEnvs are the environment codes allowed to take values from
	// process environment variables. A production process must never be
	// overridable that way.
	localEnvs map[string]struct{}

	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	parseFailures  metric.Int64Counter
	storeFallbacks metric.Int64Counter
}

// DefaultLocalEnvironments is the environment class that may consult
// process environment variables during resolution.
var DefaultLocalEnvironments = []string{"DEV"}

// New wires a Service. localEnvs nil means DefaultLocalEnvironments.
func New(store EntryQuerier, env EnvironmentResolver, cache *configcache.Cache, recorder AuditRecorder, logger *slog.Logger, localEnvs []string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if localEnvs == nil {
		localEnvs = DefaultLocalEnvironments
	}

	s := &Service{
		store:     store,
		env:       env,
		cache:     cache,
		recorder:  recorder,
		logger:    logger,
		localEnvs: make(map[string]struct{}, len(localEnvs)),
	}
	for _, code := range localEnvs {
		s.localEnvs[strings.ToUpper(code)] = struct{}{}
	}

	var err error
	s.cacheHits, err = meter.Int64Counter(
		"runtimeconfig.cache.hits",
		metric.WithDescription("Configuration lookups served from cache"),
	)
	if err != nil {
		logger.Warn("failed to create cache hit counter", slog.Any("error", err))
	}
	s.cacheMisses, err = meter.Int64Counter(
		"runtimeconfig.cache.misses",
		metric.WithDescription("Configuration lookups that fell through to the store"),
	)
	if err != nil {
		logger.Warn("failed to create cache miss counter", slog.Any("error", err))
	}
	s.parseFailures, err = meter.Int64Counter(
		"runtimeconfig.parse.failures",
		metric.WithDescription("Typed accessor values that failed to parse"),
	)
	if err != nil {
		logger.Warn("failed to create parse failure counter", slog.Any("error", err))
	}
	s.storeFallbacks, err = meter.Int64Counter(
		"runtimeconfig.store.fallbacks",
		metric.WithDescription("Tier lookups that degraded because the store was unavailable"),
	)
	if err != nil {
		logger.Warn("failed to create store fallback counter", slog.Any("error", err))
	}

	return s
}

// GetString resolves key for the current environment, falling back to def
// when no tier produces a value. It never returns an error: input
// problems and store outages degrade to the default.
func (s *Service) GetString(ctx context.Context, key, def string) string {
	value, _ := s.resolve(ctx, key, def)
	return value
}

// resolve runs the tier chain. found is false only when no tier produced
// a value and def was the outcome; a stored empty string is a resolved
// value, not an absence, so typed accessors can tell the two apart.
func (s *Service) resolve(ctx context.Context, key, def string) (value string, found bool) {
	start := time.Now()

	key = strings.TrimSpace(key)
	if key == "" {
		s.logger.Warn("configuration key is empty, returning default")
		return def, false
	}

	envCode := s.currentEnvironment(ctx)
	cacheKey := key + ":" + envCode

	if value, ok := s.cache.Get(cacheKey); ok {
		s.addCounter(ctx, s.cacheHits)
		s.auditRead(key, envCode, value, classify.Classify(key), start)
		return value, true
	}
	s.addCounter(ctx, s.cacheMisses)

	// Tier A: environment-specific row.
	if envID, ok := s.environmentID(ctx, envCode); ok {
		if value, class, ok := s.lookupTier(ctx, key, &envID, "environment"); ok {
			s.cache.Put(cacheKey, value)
			s.auditRead(key, envCode, value, class, start)
			return value, true
		}
	}

	// Tier B: global row.
	if value, class, ok := s.lookupTier(ctx, key, nil, "global"); ok {
		s.cache.Put(cacheKey, value)
		s.auditRead(key, envCode, value, class, start)
		return value, true
	}

	// Tier C: process environment, local environment class only.
	if s.isLocalEnvironment(envCode) {
		if value, ok := lookupProcessEnv(key); ok {
			s.cache.Put(cacheKey, value)
			s.auditRead(key, envCode, value, classify.Classify(key), start)
			return value, true
		}
	}

	// Tier D: the caller's default. Not cached: a default is not a
	// resolved value, and the store should be retried next call.
	s.auditRead(key, envCode, def, classify.Classify(key), start)
	return def, false
}

// GetInt resolves key and parses it as an integer; unparseable values are
// logged and the default returned.
func (s *Service) GetInt(ctx context.Context, key string, def int) int {
	raw, found := s.resolve(ctx, key, "")
	if !found {
		return def
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.addCounter(ctx, s.parseFailures)
		s.logger.Error("configuration value is not an integer",
			slog.String("key", key),
			slog.String("value", classify.MaskByKey(key, raw)),
			slog.Int("default", def))
		return def
	}
	return value
}

// boolean token vocabularies for GetBool.
var (
	trueTokens  = []string{"true", "yes", "1", "on", "enabled"}
	falseTokens = []string{"false", "no", "0", "off", "disabled"}
)

// GetBool resolves key and parses it against a fixed vocabulary;
// unrecognized tokens are logged and the default returned.
func (s *Service) GetBool(ctx context.Context, key string, def bool) bool {
	raw, found := s.resolve(ctx, key, "")
	if !found {
		return def
	}

	token := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range trueTokens {
		if token == t {
			return true
		}
	}
	for _, t := range falseTokens {
		if token == t {
			return false
		}
	}

	s.addCounter(ctx, s.parseFailures)
	s.logger.Warn("configuration value is not a recognized boolean token",
		slog.String("key", key),
		slog.String("value", classify.MaskByKey(key, raw)),
		slog.Bool("default", def))
	return def
}

// GetSection returns all active entries whose key starts with prefix,
// keyed by the remainder after the prefix. Environment-specific entries
// win over global ones on collision. Any failure yields an empty map.
func (s *Service) GetSection(ctx context.Context, prefix string) map[string]string {
	start := time.Now()
	section := make(map[string]string)

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		s.logger.Warn("section prefix is empty, returning empty section")
		return section
	}

	envCode := s.currentEnvironment(ctx)

	globals, err := s.store.ListActiveEntriesByPrefix(ctx, prefix, nil)
	if err != nil {
		s.logger.Warn("store unavailable listing global section entries",
			slog.String("prefix", prefix),
			slog.Any("error", err))
		return section
	}
	for _, entry := range globals {
		section[strings.TrimPrefix(entry.Key, prefix)] = entry.Value
	}

	if envID, ok := s.environmentID(ctx, envCode); ok {
		scoped, err := s.store.ListActiveEntriesByPrefix(ctx, prefix, &envID)
		if err != nil {
			s.logger.Warn("store unavailable listing environment section entries",
				slog.String("prefix", prefix),
				slog.String("environment", envCode),
				slog.Any("error", err))
			return map[string]string{}
		}
		for _, entry := range scoped {
			section[strings.TrimPrefix(entry.Key, prefix)] = entry.Value
		}
	}

	s.record(audit.Event{
		Type:            audit.EventRead,
		Key:             prefix,
		EnvironmentCode: envCode,
		Classification:  classify.Public.String(),
		Duration:        time.Since(start),
	})
	return section
}

// ClearCache drops every cached value. Safe to call concurrently with
// resolution.
func (s *Service) ClearCache(ctx context.Context) {
	s.manageCache(ctx, audit.EventCacheClear)
}

// RefreshCache is the operator-facing alias for ClearCache; the next
// resolution of each key re-fetches from the store.
func (s *Service) RefreshCache(ctx context.Context) {
	s.manageCache(ctx, audit.EventCacheRefresh)
}

func (s *Service) manageCache(ctx context.Context, eventType audit.EventType) {
	s.cache.Clear()
	s.record(audit.Event{
		Type:            eventType,
		EnvironmentCode: s.currentEnvironment(ctx),
	})
}

// CacheStats reports current cache size and hit/miss counts.
func (s *Service) CacheStats() configcache.Stats {
	return s.cache.Stats()
}

// EvictExpiredCacheEntries proactively reclaims memory from entries past
// their TTL.
func (s *Service) EvictExpiredCacheEntries() {
	s.cache.EvictExpired()
}

// currentEnvironment resolves the environment code and audits non-cached
// resolutions that had to consult the store or fall back.
func (s *Service) currentEnvironment(ctx context.Context) string {
	res := s.env.Resolve(ctx)
	if !res.Cached && res.Source != envid.SourceOverride && res.Source != envid.SourceEnvVar {
		s.record(audit.Event{
			Type:            audit.EventEnvResolve,
			EnvironmentCode: res.Code,
			MaskedValue:     string(res.Source),
		})
	}
	return res.Code
}

// environmentID translates the code to its store identity, degrading
// gracefully: an unresolvable identity disables the environment-specific
// tier but never aborts resolution.
func (s *Service) environmentID(ctx context.Context, envCode string) (int32, bool) {
	envID, err := s.env.EnvironmentID(ctx, envCode)
	if err != nil {
		s.logger.Error("cannot resolve environment id, skipping environment-specific tier",
			slog.String("environment", envCode),
			slog.Any("error", err))
		return 0, false
	}
	return envID, true
}

// lookupTier consults the store for one tier and collapses the tagged
// result into found / not-found, logging unavailability with tier
// context.
func (s *Service) lookupTier(ctx context.Context, key string, envID *int32, tier string) (string, classify.Classification, bool) {
	lookup := s.store.GetActiveEntry(ctx, key, envID)
	switch lookup.Status {
	case configdb.LookupFound:
		return lookup.Entry.Value, classify.ForEntry(lookup.Entry.Classification, key), true
	case configdb.LookupUnavailable:
		s.addCounter(ctx, s.storeFallbacks)
		s.logger.Warn("store unavailable, tier produced nothing",
			slog.String("key", key),
			slog.String("tier", tier),
			slog.Any("error", lookup.Err))
		return "", classify.Public, false
	default:
		return "", classify.Public, false
	}
}

func (s *Service) isLocalEnvironment(envCode string) bool {
	_, ok := s.localEnvs[strings.ToUpper(envCode)]
	return ok
}

func (s *Service) auditRead(key, envCode, value string, class classify.Classification, start time.Time) {
	s.record(audit.Event{
		Type:            audit.EventRead,
		Key:             key,
		EnvironmentCode: envCode,
		Classification:  class.String(),
		MaskedValue:     classify.Mask(value, class),
		Duration:        time.Since(start),
	})
}

func (s *Service) record(event audit.Event) {
	if s.recorder != nil {
		s.recorder.Record(event)
	}
}

func (s *Service) addCounter(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}

// lookupProcessEnv derives the environment variable name from the key
// (upper-cased, dots to underscores) and reads it.
func lookupProcessEnv(key string) (string, bool) {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return os.LookupEnv(name)
}
