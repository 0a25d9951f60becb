package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPathEnvOverride(t *testing.T) {
	t.Setenv("CARDBRIDGE_CONFIG", "/tmp/custom/config.yaml")
	require.Equal(t, "/tmp/custom/config.yaml", DefaultConfigPath())
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("CARDBRIDGE_CONFIG", "")
	require.True(t, strings.HasSuffix(DefaultConfigPath(), "config.yaml"))
	require.True(t, strings.HasSuffix(DefaultCredentialPath(), "credentials.json"))
	require.True(t, strings.HasSuffix(DefaultRegistryPath(), "cards.yaml"))
	require.Contains(t, DefaultRegistryPath(), "cardbridge")
}
