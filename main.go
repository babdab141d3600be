package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/pcileds/cmd"
	"github.com/smazurov/pcileds/internal/api"
	"github.com/smazurov/pcileds/internal/config"
	"github.com/smazurov/pcileds/internal/events"
	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/led"
	"github.com/smazurov/pcileds/internal/logging"
	"github.com/smazurov/pcileds/internal/monitoring"
	"github.com/smazurov/pcileds/internal/npem"
	"github.com/smazurov/pcileds/internal/pci"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// PCI settings
	SysfsPath string `help:"PCI devices directory" default:"/sys/bus/pci/devices" toml:"pci.sysfs_path" env:"PCI_SYSFS_PATH"`
	Watch     bool   `help:"Follow device hotplug instead of a one-time scan" default:"true" toml:"pci.watch" env:"PCI_WATCH"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingNPEM    string `help:"Indication engine logging level" default:"info" toml:"logging.npem" env:"LOGGING_NPEM"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingMonitor string `help:"Bus watcher logging level" default:"info" toml:"logging.monitor" env:"LOGGING_MONITOR"`
}

// managerHandler feeds bus watcher callbacks into the indication
// manager.
type managerHandler struct {
	manager *npem.Manager
	logger  *slog.Logger
}

func (h *managerHandler) DeviceAdded(ctx context.Context, dev pci.Device) {
	if _, err := h.manager.Attach(ctx, dev); err != nil {
		h.logger.Warn("Device probe failed", "address", dev.Addr().String(), "error", err)
	}
}

func (h *managerHandler) DeviceRemoved(addr pci.Addr) {
	h.manager.Detach(addr)
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"npem":    opts.LoggingNPEM,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
				"monitor": opts.LoggingMonitor,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		registry := led.NewRegistry(eventBus, logging.GetLogger("npem"))
		manager := npem.NewManager(firmware.Unavailable(), registry, eventBus, logging.GetLogger("npem"))

		watcher := monitoring.NewBusWatcher(opts.SysfsPath, &managerHandler{
			manager: manager,
			logger:  logging.GetLogger("monitor"),
		}, logging.GetLogger("monitor"))

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Manager:           manager,
			Registry:          registry,
			Bus:               eventBus,
			PrometheusHandler: promhttp.Handler(),
		})

		hooks.OnStart(func() {
			if opts.Watch {
				if startErr := watcher.Start(); startErr != nil {
					logger.Error("Failed to start bus watcher", "error", startErr)
					os.Exit(1)
				}
			} else {
				if scanErr := scanOnce(manager, opts.SysfsPath, logger); scanErr != nil {
					logger.Error("Bus scan failed", "error", scanErr)
					os.Exit(1)
				}
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("systemd notify failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyStopping); notifyErr != nil {
				logger.Debug("systemd notify failed", "error", notifyErr)
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if opts.Watch {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Error("Error stopping bus watcher", "error", stopErr)
				}
			}
			manager.Close()
		})
	})

	cli.Root().AddCommand(cmd.CreateListCmd())
	cli.Root().AddCommand(cmd.CreateSetCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}

// scanOnce attaches every device currently on the bus, without
// following hotplug.
func scanOnce(manager *npem.Manager, sysfsPath string, logger *slog.Logger) error {
	addrs, err := pci.ScanBus(sysfsPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, addr := range addrs {
		dev, err := pci.Open(sysfsPath, addr)
		if err != nil {
			continue
		}
		if _, err := manager.Attach(ctx, dev); err != nil {
			logger.Warn("Device probe failed", "address", addr.String(), "error", err)
		}
	}
	return nil
}
