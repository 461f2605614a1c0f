package config

import (
	"fmt"
	"strings"

	"dripswap/core/types"
	"dripswap/native/dca"
)

// Validate checks field bounds and address formats before the service boots.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.PeriodSeconds == 0 {
		return fmt.Errorf("config: PeriodSeconds must be positive")
	}
	if c.FeeNumerator > dca.MaxFeeNumerator {
		return fmt.Errorf("config: FeeNumerator %d exceeds maximum %d", c.FeeNumerator, dca.MaxFeeNumerator)
	}
	if c.FeeNumerator > 0 && strings.TrimSpace(c.FeeBeneficiary) == "" {
		return fmt.Errorf("config: FeeBeneficiary required when FeeNumerator is set")
	}
	if strings.TrimSpace(c.FeeBeneficiary) != "" {
		if _, err := types.ParseAddress(c.FeeBeneficiary); err != nil {
			return fmt.Errorf("config: FeeBeneficiary: %w", err)
		}
	}
	if strings.TrimSpace(c.Authority) != "" {
		if _, err := types.ParseAddress(c.Authority); err != nil {
			return fmt.Errorf("config: Authority: %w", err)
		}
	}
	if strings.TrimSpace(c.VenueAddress) != "" {
		if _, err := types.ParseAddress(c.VenueAddress); err != nil {
			return fmt.Errorf("config: VenueAddress: %w", err)
		}
	}
	return nil
}

// EngineParams converts the configured fee and admin addresses into the
// parameter set seeded into state on first boot.
func (c *Config) EngineParams() (*dca.Params, error) {
	params := &dca.Params{FeeNumerator: c.FeeNumerator}
	if strings.TrimSpace(c.FeeBeneficiary) != "" {
		beneficiary, err := types.ParseAddress(c.FeeBeneficiary)
		if err != nil {
			return nil, err
		}
		params.Beneficiary = beneficiary
	}
	if strings.TrimSpace(c.Authority) != "" {
		authority, err := types.ParseAddress(c.Authority)
		if err != nil {
			return nil, err
		}
		params.Authority = authority
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}
