package main

import (
	"flag"
	"fmt"
	"os"

	"apflash.dev/apflash/cmd"
	"apflash.dev/apflash/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "flash":
		flashFlags := flag.NewFlagSet("flash", flag.ExitOnError)
		iface := flashFlags.String("iface", "", "Network interface to listen on")
		configFile := flashFlags.String("config", "", "Configuration file (optional)")
		imageDir := flashFlags.String("images", "", "Image directory (overrides config)")
		metricsListen := flashFlags.String("metrics-listen", "", "Address to serve Prometheus metrics on (overrides config)")
		flashFlags.Parse(os.Args[2:])

		opts := cmd.FlashOptions{
			ConfigFile:    *configFile,
			Interface:     *iface,
			ImageDir:      *imageDir,
			MetricsListen: *metricsListen,
		}
		if err := cmd.RunFlash(opts); err != nil {
			fmt.Fprintf(os.Stderr, "flash failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := checkFlags.String("config", "", "Configuration file")
		checkFlags.Parse(os.Args[2:])

		if err := cmd.RunCheck(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		cmd.RunVersion()

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  flash     Run the flash supervisor loop on an interface
            Options: --iface <name>, --config <path>, --images <dir>, --metrics-listen <addr>
  check     Validate a config file and its image directory, no socket opened
            Options: --config <path>
  version   Print version information

Examples:
  %s flash --iface eth0 --images /var/lib/apflash/images
  %s check --config /etc/apflash/apflash.hcl
`,
		brand.Name, brand.Description,
		brand.LowerName,
		brand.LowerName, brand.LowerName)
}
