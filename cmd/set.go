package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/pcileds/internal/pci"
)

// CreateSetCmd creates the set command.
func CreateSetCmd() *cobra.Command {
	var sysfsPath string

	cmd := &cobra.Command{
		Use:   "set <address> <indication> <on|off>",
		Short: "Assert or deassert one indication",
		Long: `Sets a single indication on one device, for example ` +
			`"set 0000:03:00.0 locate on". Other indications are left as they are.`,
		Args: cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			addr, err := pci.ParseAddr(args[0])
			if err != nil {
				return err
			}

			var active bool
			switch args[2] {
			case "on":
				active = true
			case "off":
				active = false
			default:
				return fmt.Errorf("state must be on or off, got %q", args[2])
			}

			manager := newOneShotManager("warn")
			defer manager.Close()
			ctx := context.Background()

			dev, err := pci.Open(sysfsPath, addr)
			if err != nil {
				return err
			}
			engine, err := manager.Attach(ctx, dev)
			if err != nil {
				return err
			}
			if engine == nil {
				return fmt.Errorf("device %s has no indication support", addr)
			}

			name := args[1]
			for _, ind := range engine.Supported() {
				if ind.Name == name {
					if err := engine.Write(ctx, ind.Bit, active); err != nil {
						return err
					}
					state, err := engine.Read(ctx, ind.Bit)
					if err != nil {
						return err
					}
					fmt.Printf("%s %s: %s\n", addr, name, onOff(state))
					return nil
				}
			}
			return fmt.Errorf("device %s does not support indication %q (supported: %s)",
				addr, name, joinNames(engine.Supported()))
		},
	}

	cmd.Flags().StringVar(&sysfsPath, "sysfs", pci.DefaultSysfsPath, "PCI devices directory")
	return cmd
}

func onOff(active bool) string {
	if active {
		return "on"
	}
	return "off"
}
