package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.ChainID)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60, cfg.CleanupIntervalMin)
	assert.NotEmpty(t, cfg.HTTPRPCURLs)
	assert.NotEmpty(t, cfg.UniversalRouters)

	// Canonical routers default to the first allow-list entries.
	assert.Equal(t, cfg.V2Routers[0], cfg.CanonicalV2Router)
	assert.Equal(t, cfg.V3Routers[0], cfg.CanonicalV3Router)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "8453")
	t.Setenv("HTTP_RPC_URL", "https://a.example, https://b.example")
	t.Setenv("V2_ROUTER", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	t.Setenv("CLEANUP_INTERVAL_MIN", "15")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(8453), cfg.ChainID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTPRPCURLs)
	assert.Equal(t, 15, cfg.CleanupIntervalMin)
	// Overrides are lowercased on load.
	assert.Equal(t, []string{"0x7a250d5630b4cf539739df2c5dacb4c659f2488d"}, cfg.V2Routers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CHAIN_ID", "mainnet")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveCleanupInterval(t *testing.T) {
	t.Setenv("CLEANUP_INTERVAL_MIN", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedRouter(t *testing.T) {
	t.Setenv("V3_ROUTER", "not-an-address")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRoutersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routers.yaml")
	body := `
universal:
  - "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
v2:
  - "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
v3:
  - "0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC"
quoter: "0xDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("ROUTERS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, cfg.UniversalRouters)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", cfg.CanonicalV2Router)
	assert.Equal(t, "0xdddddddddddddddddddddddddddddddddddddddd", cfg.QuoterAddress)
}

func TestRouterAllowListChecks(t *testing.T) {
	cfg := &Config{
		UniversalRouters: []string{"0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad"},
		V2Routers:        []string{"0x7a250d5630b4cf539739df2c5dacb4c659f2488d"},
		V3Routers:        []string{"0xe592427a0aece92de3edee1f18e0157c05861564"},
	}
	// Mixed case matches.
	assert.True(t, cfg.IsUniversalRouter("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"))
	assert.True(t, cfg.IsV2Router("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"))
	assert.True(t, cfg.IsV3Router("0xE592427A0AEce92De3Edee1F18E0157C05861564"))
	assert.False(t, cfg.IsV2Router("0xe592427a0aece92de3edee1f18e0157c05861564"))
}

func TestAddressHelpers(t *testing.T) {
	assert.Equal(t, "0xabcdef0000000000000000000000000000000000",
		NormalizeAddress("  0xABCDEF0000000000000000000000000000000000 "))

	assert.True(t, SameAddress("0xABCDEF0000000000000000000000000000000000", "0xabcdef0000000000000000000000000000000000"))
	assert.False(t, SameAddress("0xabcdef0000000000000000000000000000000000", "0xabcdef0000000000000000000000000000000001"))

	assert.True(t, IsAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"))
	assert.False(t, IsAddress("0x123"))
	assert.False(t, IsAddress(""))

	assert.True(t, IsZeroAddress(ZeroAddress))
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"))
}
