package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.TraceFile)
	require.False(t, cfg.Check)
	require.Equal(t, defaultOutputDir, cfg.OutputDir)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv(envTrace, "/tmp/qce-trace.log")
	t.Setenv(envCheck, "1")
	t.Setenv(envOutputDir, "/tmp/qce-out")
	t.Setenv(envBlobSizeMax, "8192")
	t.Setenv(envMaxSolves, "50")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/qce-trace.log", cfg.TraceFile)
	require.True(t, cfg.Check)
	require.Equal(t, "/tmp/qce-out", cfg.OutputDir)
	require.EqualValues(t, 8192, cfg.BlobSizeMax)
	require.Equal(t, 50, cfg.MaxSolves)
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv(envBlobSizeMax, "not-a-number")
	_, err := Load()
	require.Error(t, err)
}
