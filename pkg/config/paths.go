package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName  = "cardbridge"
	defaultConfigFile     = "config.yaml"
	defaultCredentialFile = "credentials.json"
	defaultRegistryFile   = "cards.yaml"
)

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultConfigDirName)
}

func DefaultConfigPath() string {
	if env := os.Getenv("CARDBRIDGE_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

// DefaultCredentialPath is where the file-backed credential store lives
// when the keychain is unavailable or disabled.
func DefaultCredentialPath() string {
	return filepath.Join(configDir(), defaultCredentialFile)
}

func DefaultRegistryPath() string {
	return filepath.Join(configDir(), defaultRegistryFile)
}
