package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the service configuration loaded from TOML. Missing files are
// created with defaults so a fresh checkout runs without ceremony.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	GatewayAddress string `toml:"GatewayAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Env            string `toml:"Env"`
	LogFilePath    string `toml:"LogFilePath"`

	// PeriodSeconds is the length of one settlement period in seconds.
	PeriodSeconds uint64 `toml:"PeriodSeconds"`

	// FeeNumerator is the protocol fee over a fixed denominator of 1e6,
	// seeded into state on first boot only.
	FeeNumerator uint64 `toml:"FeeNumerator"`
	// FeeBeneficiary is the 0x-hex address collecting settlement fees.
	FeeBeneficiary string `toml:"FeeBeneficiary"`
	// Authority is the 0x-hex address allowed to change engine parameters.
	Authority string `toml:"Authority"`
	// VenueAddress is the 0x-hex ledger account delivering bought assets at
	// settlement. It must hold inventory of every buy asset.
	VenueAddress string `toml:"VenueAddress"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.GatewayAddress) == "" {
		cfg.GatewayAddress = ":8081"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./dripswap-data"
	}
	if cfg.PeriodSeconds == 0 {
		cfg.PeriodSeconds = 86400
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
