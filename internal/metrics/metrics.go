// Package metrics exposes the daemon's ambient observability surface:
// RIB size, FIB install failures, IS-IS adjacency count, BGP
// established-peer count (SPEC_FULL.md §6), via
// github.com/prometheus/client_golang — the same promauto-registered
// gauge/counter shape purelb/purelb and pobradovic08/route-beacon-ri use,
// scoped down to the handful of series this core actually produces
// rather than junos_exporter's full custom-Collector-per-subsystem style
// (there is no external device to poll here; these are in-process
// counters updated directly by the owning task).
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zebrad"

var (
	RIBRoutes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rib",
		Name:      "routes",
		Help:      "Number of routes currently selected in the RIB, by address family.",
	}, []string{"family"})

	FIBInstallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fib",
		Name:      "install_failures_total",
		Help:      "Number of FIB install/replace operations the kernel rejected.",
	}, []string{"family"})

	NexthopGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rib",
		Name:      "nexthop_groups",
		Help:      "Number of distinct nexthop groups currently referenced.",
	})

	ISISAdjacencies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "isis",
		Name:      "adjacencies_up",
		Help:      "Number of IS-IS neighbor adjacencies in the Up state, by level.",
	}, []string{"level"})

	ISISLSPCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "isis",
		Name:      "lsdb_entries",
		Help:      "Number of LSPs currently stored in the LSDB, by level.",
	}, []string{"level"})

	BGPEstablishedPeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bgp",
		Name:      "established_peers",
		Help:      "Number of BGP peers currently in the Established state.",
	})

	BGPNotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bgp",
		Name:      "notifications_sent_total",
		Help:      "Number of BGP NOTIFICATION messages sent, by code.",
	}, []string{"code"})
)

// Serve starts the /metrics HTTP endpoint and blocks until ctx is
// cancelled, matching the "init-once singleton set up before any
// protocol task starts" treatment spec.md §9 calls for process-wide log
// sinks.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
