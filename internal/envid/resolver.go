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

// Package envid determines which environment the current process belongs
// to. Resolution is layered: explicit override, environment variable,
// store-backed base URL match, hostname pattern fallback, and a fail-safe
// default. It always produces a code; downstream correctness depends on
// some deterministic environment identity existing.
package envid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/runtimeconfig/configdb"
	"github.com/cardinalhq/runtimeconfig/internal/urlnorm"
)

// EnvVarOverride is the process environment variable that forces an
// environment code, second in precedence after the launch flag.
const EnvVarOverride = "RUNTIMECONFIG_ENVIRONMENT"

// DefaultCode is the fail-safe identity used when nothing else matches.
// Defaulting to production is deliberate: production is the environment
// where taking ambient values or relaxed behavior would do the most harm.
const DefaultCode = "PROD"

// ErrUnknownEnvironment indicates a code that has no row in the
// environments table. Callers that need an integer id must treat this as
// a hard failure; guessing an id would attribute data to the wrong
// environment.
var ErrUnknownEnvironment = errors.New("unknown environment code")

// staticCodes validates overrides when the store cannot be consulted.
var staticCodes = []string{"DEV", "UAT", "PROD"}

// uatMarkers are hostname substrings that indicate a pre-production
// deployment when the store is unreachable.
var uatMarkers = []string{"uat", "staging", "stage", "preprod"}

// Source is the tier that produced an environment code.
type Source string

const (
	SourceOverride Source = "override"
	SourceEnvVar   Source = "envvar"
	SourceStore    Source = "store"
	SourcePattern  Source = "pattern"
	SourceDefault  Source = "default"
)

// Resolution is the outcome of one identity resolution.
type Resolution struct {
	Code   string
	Source Source
	// Cached reports that the store/pattern/default outcome was served
	// from the resolver's cache. Override tiers are re-read every call
	// and never cached.
	Cached bool
}

// EnvironmentStore is the slice of the store this resolver needs.
type EnvironmentStore interface {
	ListEnvironments(ctx context.Context) ([]configdb.Environment, error)
	GetEnvironmentByCode(ctx context.Context, code string) (configdb.Environment, bool, error)
}

// Resolver resolves the current environment code and its store identity.
type Resolver struct {
	store        EnvironmentStore
	logger       *slog.Logger
	flagOverride string
	baseURL      string

	codeCache *ttlcache.Cache[string, Resolution]
	idCache   *ttlcache.Cache[string, int32]
	envsCache *ttlcache.Cache[string, envListResult]
}

// envListResult caches the environment table including a fetch failure,
// so a down store is not re-queried on every resolution within the TTL.
type envListResult struct {
	envs []configdb.Environment
	err  error
}

const (
	currentCodeKey  = "current"
	environmentsKey = "environments"
)

// New creates a Resolver. flagOverride is the launch-time override (empty
// for none); baseURL is the externally configured base URL of this
// process, matched against environments.base_url during resolution.
func New(store EnvironmentStore, flagOverride, baseURL string, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		store:        store,
		logger:       logger,
		flagOverride: flagOverride,
		baseURL:      baseURL,
		codeCache: ttlcache.New(
			ttlcache.WithTTL[string, Resolution](ttl),
			ttlcache.WithDisableTouchOnHit[string, Resolution](),
		),
		idCache: ttlcache.New(
			ttlcache.WithTTL[string, int32](ttl),
			ttlcache.WithDisableTouchOnHit[string, int32](),
		),
		envsCache: ttlcache.New(
			ttlcache.WithTTL[string, envListResult](ttl),
			ttlcache.WithDisableTouchOnHit[string, envListResult](),
		),
	}
}

// CurrentCode resolves the environment code for this process.
func (r *Resolver) CurrentCode(ctx context.Context) string {
	return r.Resolve(ctx).Code
}

// Resolve runs the tiered strategy and reports which tier answered.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	// Overrides are cheap local reads and always win; they are checked on
	// every call so an operator restart is never needed to clear them.
	if code, ok := r.validateOverride(ctx, r.flagOverride, "launch flag"); ok {
		return Resolution{Code: code, Source: SourceOverride}
	}
	if code, ok := r.validateOverride(ctx, os.Getenv(EnvVarOverride), EnvVarOverride); ok {
		return Resolution{Code: code, Source: SourceEnvVar}
	}

	if item := r.codeCache.Get(currentCodeKey); item != nil {
		res := item.Value()
		res.Cached = true
		return res
	}

	res := r.resolveUncached(ctx)
	r.codeCache.Set(currentCodeKey, res, ttlcache.DefaultTTL)
	return res
}

func (r *Resolver) resolveUncached(ctx context.Context) Resolution {
	if code, ok := r.matchStoreURL(ctx); ok {
		return Resolution{Code: code, Source: SourceStore}
	}
	if code, ok := r.matchHostnamePattern(); ok {
		return Resolution{Code: code, Source: SourcePattern}
	}
	r.logger.Warn("environment could not be determined, assuming fail-safe default",
		slog.String("default", DefaultCode))
	return Resolution{Code: DefaultCode, Source: SourceDefault}
}

// validateOverride checks an override value against the known environment
// set. Invalid values are logged and treated as absent, never silently
// accepted.
func (r *Resolver) validateOverride(ctx context.Context, value, origin string) (string, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}
	for _, code := range r.knownCodes(ctx) {
		if value == code {
			return value, true
		}
	}
	r.logger.Error("ignoring invalid environment override",
		slog.String("origin", origin),
		slog.String("value", value))
	return "", false
}

// listEnvironments reads the environment table through the resolver's
// cache. Failures are cached too; overrides are validated on every
// Resolve call, so an uncached failure would hammer a down store once
// per resolution.
func (r *Resolver) listEnvironments(ctx context.Context) ([]configdb.Environment, error) {
	if item := r.envsCache.Get(environmentsKey); item != nil {
		cached := item.Value()
		return cached.envs, cached.err
	}
	envs, err := r.store.ListEnvironments(ctx)
	r.envsCache.Set(environmentsKey, envListResult{envs: envs, err: err}, ttlcache.DefaultTTL)
	return envs, err
}

// knownCodes lists valid environment codes, preferring the store and
// falling back to the static set when it is unreachable.
func (r *Resolver) knownCodes(ctx context.Context) []string {
	envs, err := r.listEnvironments(ctx)
	if err != nil || len(envs) == 0 {
		return staticCodes
	}
	codes := make([]string, 0, len(envs))
	for _, env := range envs {
		codes = append(codes, strings.ToUpper(env.Code))
	}
	return codes
}

// matchStoreURL compares this process's normalized base URL against every
// environment row. Store unavailability is not an error here; the pattern
// tier exists precisely so identity survives a store outage.
func (r *Resolver) matchStoreURL(ctx context.Context) (string, bool) {
	if r.baseURL == "" {
		return "", false
	}

	envs, err := r.listEnvironments(ctx)
	if err != nil {
		r.logger.Warn("environment store unreachable, engaging hostname fallback",
			slog.Any("error", err))
		return "", false
	}

	normalized := urlnorm.Normalize(r.baseURL)
	for _, env := range envs {
		if env.BaseURL != "" && urlnorm.Normalize(env.BaseURL) == normalized {
			return strings.ToUpper(env.Code), true
		}
	}
	return "", false
}

// matchHostnamePattern applies ordered substring rules against the
// current hostname.
func (r *Resolver) matchHostnamePattern() (string, bool) {
	host := r.hostname()
	if host == "" {
		return "", false
	}
	host = strings.ToLower(host)

	if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
		return "DEV", true
	}
	for _, marker := range uatMarkers {
		if strings.Contains(host, marker) {
			return "UAT", true
		}
	}
	if strings.Contains(host, "prod") {
		return "PROD", true
	}
	return "", false
}

func (r *Resolver) hostname() string {
	if r.baseURL != "" {
		if u, err := url.Parse(r.baseURL); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		return r.baseURL
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// EnvironmentID resolves a code to the integer identifier required by
// foreign keys, through its own short-lived cache. A code with no row
// returns ErrUnknownEnvironment; this is never papered over with a
// sentinel because proceeding with a guessed identity would corrupt
// environment-scoped lookups.
func (r *Resolver) EnvironmentID(ctx context.Context, code string) (int32, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, fmt.Errorf("%w: empty code", ErrUnknownEnvironment)
	}

	if item := r.idCache.Get(code); item != nil {
		return item.Value(), nil
	}

	env, found, err := r.store.GetEnvironmentByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("resolve environment id for %q: %w", code, err)
	}
	if !found {
		return 0, fmt.Errorf("%w: %q has no row in the environments table; insert one before using environment-scoped configuration", ErrUnknownEnvironment, code)
	}

	r.idCache.Set(code, env.ID, ttlcache.DefaultTTL)
	return env.ID, nil
}

// InvalidateCache drops the cached identity and id mappings, forcing the
// next resolution to consult the store.
func (r *Resolver) InvalidateCache() {
	r.codeCache.DeleteAll()
	r.idCache.DeleteAll()
	r.envsCache.DeleteAll()
}
