// Package config decodes the HCL file that drives one flash session: which
// interface to listen on, where images live, and the logging/metrics knobs.
// Unlike the teacher's internal/config, this is decode-then-validate only —
// the supervisor is a one-shot CLI invocation (§6.1), so there is no
// round-trip hclwrite editing or hot-reload machinery to carry over.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the top-level HCL schema for an apflash invocation.
type Config struct {
	Interface string `hcl:"interface"`
	ImageDir  string `hcl:"image_dir"`

	LogLevel     string `hcl:"log_level,optional"`
	MetricsListen string `hcl:"metrics_listen,optional"`

	ImageOverride []ImageOverride `hcl:"image_override,block"`
}

// ImageOverride points one profile's image lookup key at a specific file,
// overriding the image registry's directory-convention default. Class is
// matched case-insensitively against a profile's LookupDesc() (its
// ImageDesc if set, else its Desc) by image.Registry.ResolvePayload.
type ImageOverride struct {
	Class string `hcl:"class,label"`
	Path  string `hcl:"path"`
}

// Load decodes and validates the HCL file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the supervisor cannot run without.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("config: interface is required")
	}
	if c.ImageDir == "" {
		return fmt.Errorf("config: image_dir is required")
	}
	return nil
}
