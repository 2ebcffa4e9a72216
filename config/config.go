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

// Package config holds the service's own settings: knobs for the cache,
// the audit recorder, and environment identity. These are distinct from
// the configuration values the service resolves for its consumers.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates settings for the process.
type Config struct {
	Environment EnvironmentConfig `mapstructure:"environment"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

// EnvironmentConfig controls environment identity resolution.
type EnvironmentConfig struct {
	// Override forces an environment code, equivalent to the launch
	// flag. Validated against the known environment set at resolve time.
	Override string `mapstructure:"override"`
	// BaseURL is this process's externally configured base URL, matched
	// against the environments table during identity resolution.
	BaseURL string `mapstructure:"base_url"`
	// Local lists the environment codes allowed to take configuration
	// from process environment variables.
	Local []string `mapstructure:"local"`
}

// CacheConfig controls the resolved-value cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// AuditConfig controls the audit recorder's queue and worker pool.
type AuditConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Local: []string{"DEV"},
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Audit: AuditConfig{
			QueueSize: 1024,
			Workers:   2,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "RUNTIMECONFIG" and the dot
// character in keys is replaced by an underscore. For example,
// "cache.ttl" becomes "RUNTIMECONFIG_CACHE_TTL".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("RUNTIMECONFIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if local := v.GetString("environment.local"); local != "" {
		cfg.Environment.Local = strings.Split(local, ",")
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
