package cmd

import (
	"fmt"

	"apflash.dev/apflash/internal/flashd/config"
	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/profile"
)

// RunCheck validates a config file, its referenced image directory, and the
// built-in profile table, without opening a raw socket.
func RunCheck(configFile string) error {
	if configFile == "" {
		return fmt.Errorf("usage: %s check --config <file>", binaryName)
	}

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("profile table invalid: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	images := image.NewRegistry()
	if err := images.Load(cfg.ImageDir); err != nil {
		return fmt.Errorf("image directory invalid: %w", err)
	}
	if err := images.ApplyOverrides(toImageOverrides(cfg.ImageOverride)); err != nil {
		return fmt.Errorf("image override invalid: %w", err)
	}

	fmt.Printf("Configuration valid!\n")
	fmt.Printf("Interface: %s\n", cfg.Interface)
	fmt.Printf("Image dir: %s\n", cfg.ImageDir)
	if cfg.MetricsListen != "" {
		fmt.Printf("Metrics listen: %s\n", cfg.MetricsListen)
	}
	for _, o := range cfg.ImageOverride {
		fmt.Printf("Image override: %s -> %s\n", o.Class, o.Path)
	}
	fmt.Printf("Profile table entries: %d\n", len(profile.Table))

	return nil
}

// toImageOverrides adapts the config package's HCL-decoded override blocks
// to the image package's plain Override type, keeping the two packages
// decoupled from each other's tags/schema.
func toImageOverrides(cfgOverrides []config.ImageOverride) []image.Override {
	overrides := make([]image.Override, len(cfgOverrides))
	for i, o := range cfgOverrides {
		overrides[i] = image.Override{Class: o.Class, Path: o.Path}
	}
	return overrides
}
