package main

import (
	"context"
	"time"

	"github.com/zebra-rs/zebra-rs/internal/metrics"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// reportMetrics periodically samples the RIB/IS-IS/BGP subsystems into
// the gauges internal/metrics registers, since none of them push their
// own metrics inline (keeping the hot paths free of Prometheus calls).
func (d *daemon) reportMetrics(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.sampleMetrics()
		}
	}
}

func (d *daemon) sampleMetrics() {
	metrics.RIBRoutes.WithLabelValues("ipv4").Set(float64(len(d.rib.Show(types.FamilyIPv4))))
	metrics.RIBRoutes.WithLabelValues("ipv6").Set(float64(len(d.rib.Show(types.FamilyIPv6))))
	metrics.NexthopGroups.Set(float64(len(d.rib.ShowNexthops())))

	if d.isisInst != nil {
		metrics.ISISAdjacencies.WithLabelValues("1").Set(float64(d.isisInst.AdjacencyCount(1)))
		metrics.ISISAdjacencies.WithLabelValues("2").Set(float64(d.isisInst.AdjacencyCount(2)))
		metrics.ISISLSPCount.WithLabelValues("1").Set(float64(d.isisInst.LSDBSize(1)))
		metrics.ISISLSPCount.WithLabelValues("2").Set(float64(d.isisInst.LSDBSize(2)))
	}

	if d.bgpSpk != nil {
		established := 0
		for _, p := range d.bgpSpk.Peers() {
			if p.State().String() == "Established" {
				established++
			}
		}
		metrics.BGPEstablishedPeers.Set(float64(established))
	}
}
