// Package cmd holds the one-shot subcommands: inspecting and driving
// indications without the long-running service.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/pcileds/internal/events"
	"github.com/smazurov/pcileds/internal/firmware"
	"github.com/smazurov/pcileds/internal/led"
	"github.com/smazurov/pcileds/internal/logging"
	"github.com/smazurov/pcileds/internal/npem"
	"github.com/smazurov/pcileds/internal/pci"
)

// newOneShotManager builds the probe/attach machinery for one-shot
// commands: no event bus, quiet logging.
func newOneShotManager(level string) *npem.Manager {
	logging.Initialize(logging.Config{Level: level, Format: "text"})
	logger := logging.GetLogger("cli")
	registry := led.NewRegistry(events.New(), logger)
	return npem.NewManager(firmware.Unavailable(), registry, nil, logger)
}

// attachAll scans the bus and attaches every device with indication
// support.
func attachAll(ctx context.Context, manager *npem.Manager, sysfsPath string) error {
	addrs, err := pci.ScanBus(sysfsPath)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		dev, err := pci.Open(sysfsPath, addr)
		if err != nil {
			continue
		}
		if _, err := manager.Attach(ctx, dev); err != nil {
			fmt.Fprintf(os.Stderr, "warning: probe %s: %v\n", addr, err)
		}
	}
	return nil
}

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	var sysfsPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices with indication support",
		Long: `Scans the PCI bus and prints every device that exposes enclosure ` +
			`indication control, its backend, and its indication states.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			manager := newOneShotManager(level)
			defer manager.Close()

			ctx := context.Background()
			if err := attachAll(ctx, manager, sysfsPath); err != nil {
				return err
			}

			engines := manager.Engines()
			if len(engines) == 0 {
				fmt.Println("no devices with indication support found")
				return nil
			}

			for _, engine := range engines {
				active, err := engine.Active(ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", engine.Addr(), err)
				}

				var asserted []string
				for _, ind := range engine.Supported() {
					if active&ind.Bit != 0 {
						asserted = append(asserted, ind.Name)
					}
				}
				fmt.Printf("%s  backend=%s  supported=%s  active=%s\n",
					engine.Addr(),
					engine.Backend(),
					joinNames(engine.Supported()),
					strings.Join(asserted, ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sysfsPath, "sysfs", pci.DefaultSysfsPath, "PCI devices directory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func joinNames(inds []npem.Indication) string {
	names := make([]string, len(inds))
	for i, ind := range inds {
		names[i] = ind.Name
	}
	return strings.Join(names, ",")
}
