package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	RPCURL       string
	Commitment   string
	Network      string
	RelayBaseURL string
	RelayVersion int
	PrivateKey   string
	DeviceType   string
	Environment  string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".sol-relay")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("commitment", "confirmed")
	viper.SetDefault("network", "mainnet-beta")
	viper.SetDefault("relay_base_url", "https://fee-relayer.solana.p2p.org")
	viper.SetDefault("relay_version", 1)
	viper.SetDefault("device_type", "Web")
	viper.SetDefault("environment", "release")

	// Read from environment variables
	viper.SetEnvPrefix("SOL_RELAY")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	// Create config struct
	cfg := &Config{
		RPCURL:       viper.GetString("rpc_url"),
		Commitment:   viper.GetString("commitment"),
		Network:      viper.GetString("network"),
		RelayBaseURL: viper.GetString("relay_base_url"),
		RelayVersion: viper.GetInt("relay_version"),
		PrivateKey:   viper.GetString("private_key"),
		DeviceType:   viper.GetString("device_type"),
		Environment:  viper.GetString("environment"),
	}

	globalConfig = cfg
	return cfg, nil
}

// RequireKey validates that a signing key is configured
func (c *Config) RequireKey() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set SOL_RELAY_PRIVATE_KEY environment variable or add private_key to a .sol-relay.yaml config file")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
