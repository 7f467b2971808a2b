package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, configDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configDir, configFile), []byte(body), 0644))
}

func mapEnv(m map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadProjectConfig_Missing(t *testing.T) {
	cfg, err := loadProjectConfig(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
language: python
scopes: [services/api, libs/core]
output: out/bridge.jsonl
exclude: ["**/*_pb2.py"]
symbol_kinds: [class, function]
symbol_grouping: keyed
compact: true
publish:
  endpoint: localhost:9000
  bucket: bridges
  use_ssl: true
watch:
  debounce_ms: 250
  ignore: ["docs/**"]
`)

	cfg, err := loadProjectConfig(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "python", cfg.Language)
	assert.Equal(t, []string{"services/api", "libs/core"}, cfg.Scopes)
	assert.Equal(t, "out/bridge.jsonl", cfg.Output)
	assert.Equal(t, []string{"**/*_pb2.py"}, cfg.Exclude)
	assert.Equal(t, []string{"class", "function"}, cfg.SymbolKinds)
	assert.Equal(t, "keyed", cfg.SymbolGrouping)
	assert.True(t, cfg.Compact)
	assert.Equal(t, "localhost:9000", cfg.Publish.Endpoint)
	assert.Equal(t, "bridges", cfg.Publish.Bucket)
	assert.True(t, cfg.Publish.UseSSL)
	assert.Equal(t, 250, cfg.Watch.DebounceMs)
	assert.Equal(t, []string{"docs/**"}, cfg.Watch.Ignore)
}

func TestLoadProjectConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "language: [unterminated")

	_, err := loadProjectConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestApplyEnv_OverridesYAML(t *testing.T) {
	cfg := &ProjectConfig{Language: "python", Scopes: []string{"a"}, Compact: true}
	err := applyEnv(cfg, mapEnv(map[string]string{
		"SENTIAL_LANGUAGE":          "go",
		"SENTIAL_SCOPES":            "svc/a, svc/b,,",
		"SENTIAL_COMPACT":           "false",
		"SENTIAL_S3_BUCKET":         "bridges",
		"SENTIAL_S3_USE_SSL":        "1",
		"SENTIAL_WATCH_DEBOUNCE_MS": "100",
		"SENTIAL_OUTPUT":            "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "go", cfg.Language)
	assert.Equal(t, []string{"svc/a", "svc/b"}, cfg.Scopes)
	assert.False(t, cfg.Compact)
	assert.Equal(t, "bridges", cfg.Publish.Bucket)
	assert.True(t, cfg.Publish.UseSSL)
	assert.Equal(t, 100, cfg.Watch.DebounceMs)
	assert.Empty(t, cfg.Output, "blank values do not override")
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"SENTIAL_COMPACT":           "maybe",
		"SENTIAL_S3_USE_SSL":        "sometimes",
		"SENTIAL_WATCH_DEBOUNCE_MS": "-5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := applyEnv(&ProjectConfig{}, mapEnv(map[string]string{key: value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "language: python\nlister: git\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SENTIAL_LANGUAGE=java\nSENTIAL_LISTER=walk\n"), 0644))
	t.Setenv("SENTIAL_LISTER", "auto")

	cfg, warnings, err := loadConfig(dir)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "java", cfg.Language, ".env overrides YAML")
	assert.Equal(t, "auto", cfg.Lister, "process environment overrides .env")
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, warnings, err := loadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.Language)
}

func TestLoadConfig_MalformedDotEnvIsAWarning(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "language: python\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SENTIAL_LANGUAGE=go\nAPP_SECRET=\"unterminated\n"), 0644))

	cfg, warnings, err := loadConfig(dir)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], ".env")
	assert.Equal(t, "python", cfg.Language, "an unparsable .env contributes nothing")
}

func TestProcessEnv_OnlySentialKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SENTIAL_CTAGS=/opt/ctags\nBRIDGE_TEST_DATABASE_URL=postgres://db\n"), 0644))

	env, warnings := processEnv(dir)
	assert.Empty(t, warnings)

	v, ok := env("SENTIAL_CTAGS")
	assert.True(t, ok)
	assert.Equal(t, "/opt/ctags", v)

	_, ok = env("BRIDGE_TEST_DATABASE_URL")
	assert.False(t, ok, "non-SENTIAL .env keys are dropped")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, splitList(" a ,, b c ,"))
	assert.Nil(t, splitList(" , "))
}
