// Package brand provides apflash's fixed identity constants (used by the
// CLI) and its default directory paths. Unlike a white-labelable product,
// apflash has one name and one set of default paths, so these live as plain
// constants instead of being loaded from an external brand file.
package brand

import (
	"os"
	"path/filepath"
)

const (
	Name            = "apflash"
	LowerName       = "apflash"
	Vendor          = "apflash project"
	Description     = "Link-layer firmware flashing orchestrator for RedBoot/TFTP-client access points"
	ConfigEnvPrefix = "APFLASH"

	DefaultConfigDir = "/etc/apflash"
	DefaultStateDir  = "/var/lib/apflash"
	DefaultLogDir    = "/var/log/apflash"
	DefaultRunDir    = "/var/run/apflash"

	ConfigFileName = "apflash.hcl"
	BinaryName     = "apflash"
)

// Version, BuildTime and friends are set at build time via -ldflags.
var (
	Version      = "dev"
	BuildTime    = "unknown"
	BuildArch    = "unknown"
	GitCommit    = "unknown"
	GitBranch    = "unknown"
	GitMergeBase = "unknown"
)

// Brand mirrors the identity constants as a struct for callers that want to
// pass the whole set around (e.g. version command output).
type Brand struct {
	Name        string
	Vendor      string
	Description string
}

// Get returns the fixed Brand value.
func Get() Brand {
	return Brand{Name: Name, Vendor: Vendor, Description: Description}
}

// UserAgent returns a User-Agent string for HTTP requests.
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: APFLASH_CONFIG_DIR > APFLASH_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: APFLASH_STATE_DIR > APFLASH_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "state")
	}
	return DefaultStateDir
}

// GetLogDir returns the log directory, checking env vars first.
// Priority: APFLASH_LOG_DIR > APFLASH_PREFIX/log > DefaultLogDir
func GetLogDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return DefaultLogDir
}

// GetRunDir returns the runtime directory, checking env vars first.
// Priority: APFLASH_RUN_DIR > APFLASH_PREFIX/run > DefaultRunDir
func GetRunDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	return DefaultRunDir
}
