package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.geckoterminal.com/api/v2", cfg.APIBase)
	assert.Equal(t, "sui-network", cfg.Network)
	assert.Equal(t, []int{1, 2}, cfg.Pages)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.BatchInterval)
	assert.Equal(t, "recompute", cfg.CursorPolicy)
	assert.Equal(t, 50, cfg.CuriosityMinBuys)
	assert.Equal(t, 300, cfg.CuriosityMaxBuys)
	assert.Equal(t, 4*time.Second, cfg.NotifySuccess)
	assert.Equal(t, 10*time.Second, cfg.NotifyError)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "stormdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch-size: 8\nnetwork: eth\npages: [3, 4]\n"), 0o644))
	t.Setenv("STORMDEX_BATCH_SIZE", "9")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("network", "", "")
	flags.String("cursor-policy", "", "")
	require.NoError(t, flags.Parse([]string{"--network=sui-network", "--cursor-policy=sticky"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.BatchSize)
	assert.Equal(t, "sui-network", cfg.Network)
	assert.Equal(t, "sticky", cfg.CursorPolicy)
	assert.Equal(t, []int{3, 4}, cfg.Pages)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORMDEX_LISTEN=:9999\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STORMDEX_LISTEN") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
}

func TestLoadValidation(t *testing.T) {
	chdir(t, t.TempDir())

	cases := map[string]map[string]string{
		"bad pages":          {"STORMDEX_PAGES": "1,x"},
		"zero batch":         {"STORMDEX_BATCH_SIZE": "0"},
		"zero http timeout":  {"STORMDEX_HTTP_TIMEOUT": "0s"},
		"inverted band":      {"STORMDEX_CURIOSITY_MIN_BUYS": "300", "STORMDEX_CURIOSITY_MAX_BUYS": "50"},
		"key without dest":   {"STORMDEX_WALLET_KEY": "abc"},
		"wallet without rpc": {"STORMDEX_WALLET_KEY": "abc", "STORMDEX_DEPOSIT_ADDRESS": "0x1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadSnapshot(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORMDEX_OUT", "/tmp/pools.jsonl")
	t.Setenv("STORMDEX_API_BASE", "http://localhost:1234/")

	cfg, err := LoadSnapshot("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pools.jsonl", cfg.Out)
	assert.Equal(t, "http://localhost:1234", cfg.APIBase)
	assert.Equal(t, []int{1, 2}, cfg.Pages)
}
