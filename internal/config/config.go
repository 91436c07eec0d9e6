/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres" | "remote"
	DSN    string `yaml:"dsn"`    // postgres connection string
	Path   string `yaml:"path"`   // sqlite database file
}

type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	ListenAddr string `yaml:"listen_addr"`
}

type CacheConfig struct {
	RedisAddr  string `yaml:"redis_addr"` // empty disables the cache
	RedisDB    int    `yaml:"redis_db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type EditorConfig struct {
	FlushIntervalMs int `yaml:"flush_interval_ms"` // <0 persists gestures on release only
	CanvasWidth     int `yaml:"canvas_width"`
	CanvasHeight    int `yaml:"canvas_height"`
	UndoDepth       int `yaml:"undo_depth"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Cache         CacheConfig   `yaml:"cache"`
	Editor        EditorConfig  `yaml:"editor"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Storage:       StorageConfig{Driver: "sqlite", Path: "tripbook.db"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, ListenAddr: ":8080"},
		Cache:         CacheConfig{RedisDB: 0, TTLSeconds: 300},
		Editor:        EditorConfig{FlushIntervalMs: 100, CanvasWidth: 1200, CanvasHeight: 800, UndoDepth: 100},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "TB_CONFIG"
	EnvStorageDriver    = "TB_STORAGE_DRIVER"
	EnvStorageDSN       = "TB_STORAGE_DSN"
	EnvStoragePath      = "TB_STORAGE_PATH"
	EnvBackendURL       = "TB_BACKEND_URL"
	EnvBackendTimeoutMs = "TB_BACKEND_TIMEOUT_MS"
	EnvListenAddr       = "TB_LISTEN_ADDR"
	EnvRedisAddr        = "TB_REDIS_ADDR"
	EnvRedisDB          = "TB_REDIS_DB"
	EnvCacheTTL         = "TB_CACHE_TTL_SECONDS"
	EnvFlushIntervalMs  = "TB_FLUSH_INTERVAL_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "TB_LOG_LEVEL"
	EnvLogFormat = "TB_LOG_FORMAT"
	EnvLogSource = "TB_LOG_SOURCE"
	EnvLogFile   = "TB_LOG_FILE"
)

// ConfigPath returns the per-user config file path. TB_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Tripbook")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Tripbook")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "tripbook")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// A malformed file is reported but the defaults plus env overrides are still returned.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			parseErr = err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, parseErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); v != "" {
		dst.Storage.Driver = v
	}
	if v := strings.TrimSpace(src.Storage.DSN); v != "" {
		dst.Storage.DSN = v
	}
	if v := strings.TrimSpace(src.Storage.Path); v != "" {
		dst.Storage.Path = v
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.ListenAddr != "" {
		dst.Backend.ListenAddr = src.Backend.ListenAddr
	}
	// cache
	if src.Cache.RedisAddr != "" {
		dst.Cache.RedisAddr = src.Cache.RedisAddr
	}
	dst.Cache.RedisDB = src.Cache.RedisDB
	if src.Cache.TTLSeconds != 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	// editor: a negative flush interval disables in-gesture flushes
	if src.Editor.FlushIntervalMs != 0 {
		dst.Editor.FlushIntervalMs = src.Editor.FlushIntervalMs
	}
	if src.Editor.CanvasWidth > 0 {
		dst.Editor.CanvasWidth = src.Editor.CanvasWidth
	}
	if src.Editor.CanvasHeight > 0 {
		dst.Editor.CanvasHeight = src.Editor.CanvasHeight
	}
	if src.Editor.UndoDepth > 0 {
		dst.Editor.UndoDepth = src.Editor.UndoDepth
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.Backend.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisDB)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.RedisDB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheTTL)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFlushIntervalMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Editor.FlushIntervalMs = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"storage.driver":           EnvStorageDriver,
	"storage.dsn":              EnvStorageDSN,
	"storage.path":             EnvStoragePath,
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.listen_addr":      EnvListenAddr,
	"cache.redis_addr":         EnvRedisAddr,
	"cache.redis_db":           EnvRedisDB,
	"cache.ttl_seconds":        EnvCacheTTL,
	"editor.flush_interval_ms": EnvFlushIntervalMs,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the backend client timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// FlushInterval returns the in-gesture persist throttle.
func (e EditorConfig) FlushInterval() time.Duration {
	if e.FlushIntervalMs <= 0 {
		return 0
	}
	return time.Duration(e.FlushIntervalMs) * time.Millisecond
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return time.Duration(Defaults().Cache.TTLSeconds) * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}
