package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/link"
	"github.com/zebra-rs/zebra-rs/internal/rib"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// newShowCmd implements the `show` CLI surface SPEC_FULL.md §6 names
// (`show ip[v6] route`, `show interface`, `show isis ...`, `show ip bgp
// ...`) against freshly constructed, empty components. A real deployment
// would route these through the excluded gRPC/CLI-helper bridge to a
// running daemon's instances (spec.md §1's "interactive shell, gRPC/CLI
// helpers" are out of scope); this stand-in exercises the same Show()
// contracts and demonstrates spec.md §7's rule that show commands never
// error, just return empty sets, when nothing is configured yet.
func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Query routing/interface state (stand-in for the out-of-scope CLI bridge)",
	}
	cmd.AddCommand(newShowRouteCmd())
	cmd.AddCommand(newShowInterfaceCmd())
	return cmd
}

func newShowRouteCmd() *cobra.Command {
	var v6 bool
	cmd := &cobra.Command{
		Use:   "route",
		Short: "show ip route / show ipv6 route",
		Run: func(cmd *cobra.Command, args []string) {
			b := bus.New()
			r := rib.New(b.FIBOut, zap.NewNop().Sugar())
			family := types.FamilyIPv4
			if v6 {
				family = types.FamilyIPv6
			}
			entries := r.Show(family)
			if len(entries) == 0 {
				fmt.Println("(no routes)")
				return
			}
			for _, e := range entries {
				fmt.Printf("%s %v\n", e.Prefix, e.Selected)
			}
		},
	}
	cmd.Flags().BoolVar(&v6, "ipv6", false, "show the IPv6 table instead of IPv4")
	return cmd
}

func newShowInterfaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interface",
		Short: "show interface [brief|detail]",
		Run: func(cmd *cobra.Command, args []string) {
			b := bus.New()
			t := link.New(b.RIBIn)
			links := t.Show()
			if len(links) == 0 {
				fmt.Println("(no interfaces)")
				return
			}
			for _, l := range links {
				fmt.Printf("%-16s ifindex %d mtu %d up=%v\n", l.Name, l.Ifindex, l.MTU, l.Up)
			}
		},
	}
}
