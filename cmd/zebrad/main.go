// Command zebrad is the process entrypoint: flag/subcommand parsing via
// cobra (SPEC_FULL.md §6), capability check, and wiring of the core
// subsystems onto the message bus, in the tradition of the FRR/Quagga
// zebra daemon this repo's name echoes (SPEC_FULL.md §2).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "zebrad",
		Short: "Multi-protocol routing daemon control plane",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print zebrad's version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("zebrad", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
