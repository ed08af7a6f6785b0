package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier is a subscription tier name, matching the Organization.tier domain.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierCaps is the advisory cap pair the Limit Guard checks against.
type TierCaps struct {
	MaxAccounts         int `yaml:"max_accounts"`
	MaxMessagesPerMonth int `yaml:"max_messages_per_month"`
}

// TierConfig is the parsed contents of config.yaml: default caps per tier,
// overridable per-organization by the values stored on the Organization
// record itself (those always win when non-zero).
type TierConfig struct {
	Tiers map[Tier]TierCaps `yaml:"tiers"`
}

var defaultTierConfig = TierConfig{
	Tiers: map[Tier]TierCaps{
		TierFree:       {MaxAccounts: 1, MaxMessagesPerMonth: 200},
		TierStarter:    {MaxAccounts: 3, MaxMessagesPerMonth: 2000},
		TierPro:        {MaxAccounts: 10, MaxMessagesPerMonth: 20000},
		TierEnterprise: {MaxAccounts: 100, MaxMessagesPerMonth: 500000},
	},
}

// LoadTierConfig reads the tier-caps YAML file at path. A missing file
// falls back to defaultTierConfig rather than failing startup, since tier
// caps are advisory (spec §4.I).
func LoadTierConfig(path string) (TierConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultTierConfig, nil
		}
		return TierConfig{}, fmt.Errorf("tier config: read %s: %w", path, err)
	}
	var cfg TierConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TierConfig{}, fmt.Errorf("tier config: parse %s: %w", path, err)
	}
	if len(cfg.Tiers) == 0 {
		return defaultTierConfig, nil
	}
	return cfg, nil
}

// Caps returns the configured caps for tier, or the free tier's caps if
// tier is unrecognized.
func (c TierConfig) Caps(tier Tier) TierCaps {
	if caps, ok := c.Tiers[tier]; ok {
		return caps
	}
	return c.Tiers[TierFree]
}
