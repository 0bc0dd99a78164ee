package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apflash.dev/apflash/internal/brand"
	"apflash.dev/apflash/internal/clock"
	"apflash.dev/apflash/internal/flashd/config"
	"apflash.dev/apflash/internal/flashd/delivery"
	"apflash.dev/apflash/internal/flashd/dispatch"
	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/profile"
	"apflash.dev/apflash/internal/flashd/supervisor"
	"apflash.dev/apflash/internal/flashd/transport"
	"apflash.dev/apflash/internal/logging"
)

// FlashOptions holds the resolved settings for one `apflash flash` run.
type FlashOptions struct {
	ConfigFile    string
	Interface     string
	ImageDir      string
	MetricsListen string
}

// RunFlash opens the raw socket on the configured interface and runs the
// supervisor loop until the process receives SIGINT/SIGTERM.
func RunFlash(opts FlashOptions) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("profile table: %w", err)
	}

	iface := opts.Interface
	imageDir := opts.ImageDir
	metricsListen := opts.MetricsListen
	var overrides []config.ImageOverride

	if opts.ConfigFile != "" {
		cfg, err := config.Load(opts.ConfigFile)
		if err != nil {
			return err
		}
		if iface == "" {
			iface = cfg.Interface
		}
		if imageDir == "" {
			imageDir = cfg.ImageDir
		}
		if metricsListen == "" {
			metricsListen = cfg.MetricsListen
		}
		overrides = cfg.ImageOverride
		if cfg.LogLevel != "" {
			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
				return fmt.Errorf("flash: log_level: %w", err)
			}
			logging.Default().SetLevel(level)
		}
	}

	if iface == "" {
		return fmt.Errorf("flash: --iface is required (or set interface in --config)")
	}
	if imageDir == "" {
		return fmt.Errorf("flash: --images is required (or set image_dir in --config)")
	}

	log := logging.WithComponent("flash")

	images := image.NewRegistry()
	if err := images.Load(imageDir); err != nil {
		return fmt.Errorf("flash: loading images: %w", err)
	}
	if err := images.ApplyOverrides(toImageOverrides(overrides)); err != nil {
		return fmt.Errorf("flash: applying image overrides: %w", err)
	}

	conn, err := transport.Open(iface)
	if err != nil {
		return fmt.Errorf("flash: opening %s: %w", iface, err)
	}
	defer conn.Close()

	registry := node.NewRegistry()
	macs := node.NewMACAllocator()
	dispatcher := dispatch.New(images, macs)
	driver := delivery.New(images, &clock.RealClock{})
	loop := supervisor.New(conn, registry, dispatcher, driver, &clock.RealClock{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsListen != "" {
		srv := &http.Server{Addr: metricsListen, Handler: promhttp.Handler()}
		go func() {
			log.Info("metrics listening", "addr", metricsListen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	log.Info("flash session starting", "interface", iface, "image_dir", imageDir, "binary", brand.BinaryName, "version", brand.Version)
	return loop.Run(ctx)
}
