package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNamespacesDirsByNetwork(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.SwapDir = dir
	cfg.Network = "testnet"

	require.NoError(t, Validate(&cfg))

	require.Equal(t, filepath.Join(dir, "testnet"), cfg.DataDir)
	require.Equal(t, filepath.Join(dir, "logs", "testnet"), cfg.LogDir)

	require.DirExists(t, cfg.DataDir)
	require.DirExists(t, cfg.LogDir)
}

func TestValidateRejectsSwapDirAndDataDirBothSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SwapDir = t.TempDir()
	cfg.DataDir = t.TempDir()

	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsSwapDirAndLogDirBothSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SwapDir = t.TempDir()
	cfg.LogDir = t.TempDir()

	require.Error(t, Validate(&cfg))
}

func TestValidateRejectsZeroMinNativeConfs(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.SwapDir = dir
	cfg.MinNativeConfs = 0

	require.Error(t, Validate(&cfg))
}
