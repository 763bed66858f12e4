package config

import (
	"github.com/percoguru/kvstore/internal/infra/confloader"
)

// Load reads the configuration from the loader's sources on top of the
// defaults and verifies it.
func Load(loader *confloader.Loader) (*Config, error) {
	cfg := Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
