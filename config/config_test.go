package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected RPC address: %q", cfg.RPCAddress)
	}
	if cfg.PeriodSeconds != 86400 {
		t.Fatalf("unexpected period length: %d", cfg.PeriodSeconds)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	// Loading the written default again round-trips.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = ":8080"
DataDir = "./data"
PeriodSeconds = 60
FeeNumerator = 100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error: fee without beneficiary")
	}

	content += "FeeBeneficiary = \"0x00000000000000000000000000000000000000bb\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	params, err := cfg.EngineParams()
	if err != nil {
		t.Fatalf("engine params: %v", err)
	}
	if params.FeeNumerator != 100 {
		t.Fatalf("fee numerator mismatch: %d", params.FeeNumerator)
	}
	if params.Beneficiary[19] != 0xbb {
		t.Fatalf("beneficiary mismatch: %x", params.Beneficiary)
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = ":8080"
DataDir = "./data"
PeriodSeconds = 60
Authority = "not-an-address"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed authority")
	}
}
