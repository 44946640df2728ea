package main

import (
	"context"
	"fmt"
	"net/netip"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zebra-rs/zebra-rs/internal/bgp"
	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/config"
	"github.com/zebra-rs/zebra-rs/internal/fib"
	"github.com/zebra-rs/zebra-rs/internal/isis"
	"github.com/zebra-rs/zebra-rs/internal/isisproto"
	"github.com/zebra-rs/zebra-rs/internal/link"
	"github.com/zebra-rs/zebra-rs/internal/metrics"
	"github.com/zebra-rs/zebra-rs/internal/rib"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// daemon holds every long-running subsystem this process supervises,
// the goroutine-per-task shape SPEC_FULL.md §5 (and cmd/zebrad's
// errgroup.WithContext, per the teacher's cmd/cmd.go "configure then
// start" split) calls for.
type daemon struct {
	log *zap.SugaredLogger
	bus *bus.Bus

	links *link.Table
	rib   *rib.RIB
	fib   *fib.Fib

	isisInst *isis.Instance
	bgpSpk   *bgp.Speaker

	cfgPath      string
	metricsAddr  string
	sharedGroups bool
}

func newDaemon(log *zap.SugaredLogger, cfgPath, metricsAddr string, sharedGroups bool) *daemon {
	b := bus.New()
	links := link.New(b.RIBIn)
	r := rib.New(b.FIBOut, log.Named("rib"))

	var platform fib.Platform
	if runtime.GOOS == "linux" {
		platform = fib.NewLinux(sharedGroups)
	} else {
		platform = fib.NewUnsupported()
	}
	f := fib.New(platform, b, log.Named("fib"))

	return &daemon{
		log:          log,
		bus:          b,
		links:        links,
		rib:          r,
		fib:          f,
		cfgPath:      cfgPath,
		metricsAddr:  metricsAddr,
		sharedGroups: sharedGroups,
	}
}

// configureFromFile performs the one-time initial provisioning pass:
// load the TOML running configuration, apply its static routes,
// instantiate the IS-IS instance and its circuits, and instantiate the
// BGP speaker and its neighbors. This mirrors the excluded commit engine
// enough to drive the core end-to-end (SPEC_FULL.md §6) without
// implementing hot-add of new circuits/peers after Run starts — a
// config change to an already-running IS-IS interface or BGP neighbor
// is logged and requires a restart, a conscious scope cut for this
// minimal stand-in.
func (d *daemon) configureFromFile() error {
	cfg, err := config.Load(d.cfgPath)
	if err != nil {
		return err
	}

	for _, sr := range cfg.Static.Routes {
		if err := d.applyStaticRoute(sr); err != nil {
			d.log.Warnw("rejecting static route", "prefix", sr.Prefix, "error", err)
		}
	}

	if cfg.ISIS.NET != "" {
		if err := d.configureISIS(cfg.ISIS); err != nil {
			d.log.Warnw("isis configuration rejected", "error", err)
		}
	}

	if cfg.BGP.AS != 0 {
		d.configureBGP(cfg.BGP)
	}

	return nil
}

func (d *daemon) applyStaticRoute(sr config.StaticRoute) error {
	prefix, err := netip.ParsePrefix(sr.Prefix)
	if err != nil {
		return fmt.Errorf("invalid prefix %q: %w", sr.Prefix, err)
	}
	p, err := types.NewPrefix(prefix.Addr(), prefix.Bits())
	if err != nil {
		return err
	}
	nh, err := config.ParseNexthopAddr(sr.Nexthop)
	if err != nil {
		return fmt.Errorf("invalid nexthop %q: %w", sr.Nexthop, err)
	}
	weight := sr.Weight
	if weight == 0 {
		weight = 1
	}
	d.bus.RIBIn.Send("config", bus.RouteDelta{Route: types.Route{
		Prefix:   p,
		Source:   types.SourceStatic,
		Distance: types.SourceStatic.DefaultDistance(),
		Metric:   sr.Metric,
		Nexthops: []types.Nexthop{{Kind: types.NexthopRecursive, Addr: nh, Weight: weight}},
	}})
	return nil
}

func (d *daemon) configureISIS(cfg config.ISIS) error {
	_, sysID, err := isisproto.ParseNET(cfg.NET)
	if err != nil {
		return err
	}
	distance := cfg.Distance
	if distance == 0 {
		distance = types.SourceISIS.DefaultDistance()
	}
	hostname := cfg.Hostname
	d.isisInst = isis.NewInstance(sysID, hostname, [][]byte{[]byte(cfg.NET)}, distance, d.bus.RIBIn, d.log.Named("isis"))

	for _, ifcfg := range cfg.Interfaces {
		l, ok := d.links.ByName(ifcfg.Name)
		if !ok {
			d.log.Warnw("isis interface configured on unknown link, skipping", "interface", ifcfg.Name)
			continue
		}
		ct := parseCircuitType(ifcfg.CircuitType)
		lt := parseLinkType(ifcfg.LinkType)
		priority := byte(ifcfg.Priority)
		var snpa [6]byte
		copy(snpa[:], l.HWAddr)

		circuit := isis.NewCircuit(ifcfg.Name, l.Ifindex, ct, lt, ifcfg.Metric, priority, snpa)
		transport, err := isis.NewTransport(l.Ifindex, snpa)
		if err != nil {
			d.log.Warnw("isis raw-socket transport unavailable, circuit stays administratively down", "interface", ifcfg.Name, "error", err)
		} else {
			circuit.Attach(transport)
		}
		d.isisInst.AddCircuit(circuit)
	}
	return nil
}

func parseCircuitType(s string) isis.CircuitType {
	switch strings.ToLower(s) {
	case "level-1", "l1":
		return isis.CircuitL1
	case "level-2", "l2":
		return isis.CircuitL2
	default:
		return isis.CircuitL1L2
	}
}

func parseLinkType(s string) isis.LinkType {
	if strings.EqualFold(s, "point-to-point") || strings.EqualFold(s, "p2p") {
		return isis.LinkPointToPoint
	}
	return isis.LinkBroadcast
}

func (d *daemon) configureBGP(cfg config.BGP) {
	id, err := config.ParseNexthopAddr(cfg.Identifier)
	var idU32 uint32
	if err == nil && id.Is4() {
		b := id.As4()
		idU32 = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	d.bgpSpk = bgp.NewSpeaker(cfg.AS, idU32, d.bus.RIBIn, d.log.Named("bgp"))
	d.bgpSpk.SetMultipath(cfg.Multipath)
	for _, n := range cfg.Neighbors {
		d.bgpSpk.AddPeer(bgp.Config{RemoteAS: n.PeerAS, RemoteAddr: n.Address})
	}
}

// run starts every subsystem task under one errgroup, so a Fatal-class
// failure in any of them (SPEC_FULL.md §7) cancels the whole group and
// the process exits non-zero for its supervisor to restart (spec.md
// §5's x/sync/errgroup-style supervision, named explicitly in
// SPEC_FULL.md §5).
func (d *daemon) run(ctx context.Context) error {
	checkCapabilities(d.log)

	if err := d.configureFromFile(); err != nil {
		d.log.Warnw("initial configuration load failed, starting with an empty config", "error", err)
	}

	watcher := config.NewWatcher(d.cfgPath, d.bus, d.log.Named("config"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.rib.Run(ctx, d.bus) })
	g.Go(func() error { return d.links.Run(ctx, d.bus) })
	g.Go(func() error { return d.fib.Run(ctx) })
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return d.consumeConfigDeltas(ctx) })
	if d.metricsAddr != "" {
		g.Go(func() error { return metrics.Serve(ctx, d.metricsAddr) })
	}
	if d.isisInst != nil {
		g.Go(func() error { return d.isisInst.Run(ctx) })
	}
	if d.bgpSpk != nil {
		g.Go(func() error { return d.bgpSpk.Run(ctx) })
		g.Go(func() error { return d.bgpSpk.Listen(ctx, ":179") })
	}
	g.Go(func() error { return d.reportMetrics(ctx) })

	err := g.Wait()
	d.bus.Shutdown()
	return err
}

// consumeConfigDeltas applies deltas the watcher can hot-apply without a
// restart: static-route add/withdraw only (spec.md §7 "Configuration
// rejection... no partial application within a single delta" — a
// reject here just drops that one delta with a logged reason).
func (d *daemon) consumeConfigDeltas(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-d.bus.Config.C:
			if !ok {
				return nil
			}
			switch env.Body.Kind {
			case "static-route":
				sr, _ := env.Body.Value.(config.StaticRoute)
				if err := d.applyStaticRoute(sr); err != nil {
					d.log.Warnw("rejecting static route", "prefix", sr.Prefix, "error", err)
				}
			case "static-route-withdraw":
				sr, _ := env.Body.Value.(config.StaticRoute)
				d.withdrawStaticRoute(sr)
			default:
				d.log.Infow("configuration change requires restart to take effect", "kind", env.Body.Kind, "path", env.Body.Path)
			}
		}
	}
}

func (d *daemon) withdrawStaticRoute(sr config.StaticRoute) {
	prefix, err := netip.ParsePrefix(sr.Prefix)
	if err != nil {
		return
	}
	p, err := types.NewPrefix(prefix.Addr(), prefix.Bits())
	if err != nil {
		return
	}
	nh, err := config.ParseNexthopAddr(sr.Nexthop)
	if err != nil {
		return
	}
	d.bus.RIBIn.Send("config", bus.RouteDelta{Route: types.Route{
		Prefix:   p,
		Source:   types.SourceStatic,
		Nexthops: []types.Nexthop{{Kind: types.NexthopRecursive, Addr: nh}},
		Withdraw: true,
	}})
}
