package config

import (
	"fmt"
	"strings"
)

// ValidateConfig checks node settings and that the selected network is known.
// Sale terms are checked when they are resolved into a deployment plan.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if c.RPCRequestsPerMinute < 0 {
		return fmt.Errorf("RPCRequestsPerMinute must not be negative")
	}
	if _, ok := c.Networks[c.NetworkName]; !ok {
		return fmt.Errorf("unknown network %q", c.NetworkName)
	}
	if strings.TrimSpace(c.Sale.SpotUSD) != "" && strings.TrimSpace(c.Sale.UsdEth) != "" {
		return fmt.Errorf("sale: set either SpotUSD or UsdEth, not both")
	}
	if c.Telemetry.OTLPEndpoint != "" && strings.Contains(c.Telemetry.OTLPEndpoint, "://") {
		return fmt.Errorf("telemetry: OTLPEndpoint takes host:port without a scheme")
	}
	return nil
}
