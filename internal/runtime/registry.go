package runtime

import (
	"fmt"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/capability"
)

// LoadCapabilities returns the capability schema. With a signing secret set
// the schema signature must match or startup fails.
func LoadCapabilities(cfg config.CapabilityConfig) (*capability.Registry, error) {
	if cfg.SigningSecret == "" {
		return capability.Default(), nil
	}
	reg, err := capability.NewRegistry(capability.DefaultContracts(), cfg.SigningSecret, cfg.Signature)
	if err != nil {
		return nil, fmt.Errorf("capability schema: %w", err)
	}
	return reg, nil
}
