package cmd

import (
	"fmt"

	"apflash.dev/apflash/internal/brand"
)

const binaryName = brand.BinaryName

// RunVersion prints build identity.
func RunVersion() {
	fmt.Printf("%s version %s\n", brand.Name, brand.Version)
	fmt.Printf("Build: %s (%s)\n", brand.BuildTime, brand.BuildArch)
	fmt.Printf("Commit: %s\n", brand.GitCommit)
}
