package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/sential/pkg/publish"
)

// configDir and configFile locate the project config inside the target.
const (
	configDir  = ".sential"
	configFile = "config.yaml"
)

// ProjectConfig holds the contents of .sential/config.yaml.
type ProjectConfig struct {
	Language       string         `yaml:"language"`
	Scopes         []string       `yaml:"scopes"`
	Output         string         `yaml:"output"`
	Ctags          string         `yaml:"ctags"`
	Lister         string         `yaml:"lister"` // "git", "walk" or empty for auto
	Exclude        []string       `yaml:"exclude"`
	SymbolKinds    []string       `yaml:"symbol_kinds"`
	SymbolGrouping string         `yaml:"symbol_grouping"`
	Compact        bool           `yaml:"compact"`
	ScratchDir     string         `yaml:"scratch_dir"`
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"`
	MCPLog         string         `yaml:"mcp_log"`
	Publish        publish.Config `yaml:"publish"`
	Watch          WatchConfig    `yaml:"watch"`
}

// WatchConfig configures `sential watch`.
type WatchConfig struct {
	DebounceMs int      `yaml:"debounce_ms"`
	Ignore     []string `yaml:"ignore"`
}

// loadProjectConfig reads .sential/config.yaml under dir.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, configDir, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// envLookup resolves SENTIAL_* variables.
type envLookup func(key string) (string, bool)

// envPrefix marks the variables sential reads.
const envPrefix = "SENTIAL_"

// processEnv looks in the process environment first and then in the
// SENTIAL_* values read from dir/.env, so exported variables win over the
// file. The .env belongs to the target repository, so a file sential cannot
// parse is reported as a warning and otherwise ignored.
func processEnv(dir string) (envLookup, []string) {
	var warnings []string
	path := filepath.Join(dir, ".env")
	dotenv, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			warnings = append(warnings, fmt.Sprintf("ignoring %s: %v", path, err))
		}
		dotenv = nil
	}
	for key := range dotenv {
		if !strings.HasPrefix(key, envPrefix) {
			delete(dotenv, key)
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, warnings
}

// loadConfig builds the effective config for dir: YAML first, then
// environment overrides. Flags are applied by the caller. Problems that do
// not stop the load come back as warnings for the caller to log.
func loadConfig(dir string) (*ProjectConfig, []string, error) {
	cfg, err := loadProjectConfig(dir)
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		cfg = &ProjectConfig{}
	}
	env, warnings := processEnv(dir)
	if err := applyEnv(cfg, env); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

func applyEnv(cfg *ProjectConfig, env envLookup) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := env(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("SENTIAL_LANGUAGE", &cfg.Language)
	list("SENTIAL_SCOPES", &cfg.Scopes)
	str("SENTIAL_OUTPUT", &cfg.Output)
	str("SENTIAL_CTAGS", &cfg.Ctags)
	str("SENTIAL_LISTER", &cfg.Lister)
	list("SENTIAL_EXCLUDE", &cfg.Exclude)
	list("SENTIAL_SYMBOL_KINDS", &cfg.SymbolKinds)
	str("SENTIAL_SYMBOL_GROUPING", &cfg.SymbolGrouping)
	str("SENTIAL_SCRATCH_DIR", &cfg.ScratchDir)
	str("SENTIAL_LOG_LEVEL", &cfg.LogLevel)
	str("SENTIAL_LOG_FORMAT", &cfg.LogFormat)
	str("SENTIAL_MCP_LOG", &cfg.MCPLog)
	if err := boolean("SENTIAL_COMPACT", &cfg.Compact); err != nil {
		return err
	}

	str("SENTIAL_S3_ENDPOINT", &cfg.Publish.Endpoint)
	str("SENTIAL_S3_REGION", &cfg.Publish.Region)
	str("SENTIAL_S3_BUCKET", &cfg.Publish.Bucket)
	str("SENTIAL_S3_ACCESS_KEY", &cfg.Publish.AccessKey)
	str("SENTIAL_S3_SECRET_KEY", &cfg.Publish.SecretKey)
	str("SENTIAL_S3_PREFIX", &cfg.Publish.Prefix)
	if err := boolean("SENTIAL_S3_USE_SSL", &cfg.Publish.UseSSL); err != nil {
		return err
	}

	if v, ok := env("SENTIAL_WATCH_DEBOUNCE_MS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return fmt.Errorf("SENTIAL_WATCH_DEBOUNCE_MS: invalid value %q", v)
		}
		cfg.Watch.DebounceMs = n
	}
	return nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
