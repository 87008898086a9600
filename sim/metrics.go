package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/newhook/ssdsim/workload"
)

const metricsNamespace = "ssdsim"

// collector exposes the live FTL state on scrape rather than sampling
// it on a timer; the simulator is the single source of truth.
type collector struct {
	runner *workload.Runner

	freeLines     *prometheus.Desc
	victimLines   *prometheus.Desc
	fullLines     *prometheus.Desc
	writeCredits  *prometheus.Desc
	gcCount       *prometheus.Desc
	gcCopiedPages *prometheus.Desc
	bufRemaining  *prometheus.Desc
	hostOps       *prometheus.Desc
	hostRetries   *prometheus.Desc
	victimsHot    *prometheus.Desc
	victimsCold   *prometheus.Desc
	simTime       *prometheus.Desc
}

func newCollector(runner *workload.Runner) *collector {
	part := []string{"partition"}
	return &collector{
		runner: runner,
		freeLines: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "lines", "free"),
			"Free lines per partition", part, nil),
		victimLines: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "lines", "victim"),
			"Victim-candidate lines per partition", part, nil),
		fullLines: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "lines", "full"),
			"Full lines per partition", part, nil),
		writeCredits: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "flow", "write_credits"),
			"Write-flow credits per partition", part, nil),
		gcCount: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "gc", "count_total"),
			"Garbage collections per partition", part, nil),
		gcCopiedPages: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "gc", "copied_pages_total"),
			"Valid pages relocated by GC per partition", part, nil),
		bufRemaining: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "write_buffer", "remaining_bytes"),
			"Free bytes in the shared write buffer", nil, nil),
		hostOps: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "host", "ops_total"),
			"Host commands completed", []string{"op"}, nil),
		hostRetries: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "host", "retries_total"),
			"Host writes bounced on buffer pressure", nil, nil),
		victimsHot: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "gc", "hot_victims_total"),
			"GC victims classified hot", nil, nil),
		victimsCold: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "gc", "cold_victims_total"),
			"GC victims classified cold", nil, nil),
		simTime: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "sim", "time_ns"),
			"Simulated clock", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.freeLines
	ch <- c.victimLines
	ch <- c.fullLines
	ch <- c.writeCredits
	ch <- c.gcCount
	ch <- c.gcCopiedPages
	ch <- c.bufRemaining
	ch <- c.hostOps
	ch <- c.hostRetries
	ch <- c.victimsHot
	ch <- c.victimsCold
	ch <- c.simTime
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ns := c.runner.NS
	for i, f := range ns.Partitions() {
		label := strconv.Itoa(i)
		ch <- prometheus.MustNewConstMetric(c.freeLines, prometheus.GaugeValue, float64(f.FreeLines()), label)
		ch <- prometheus.MustNewConstMetric(c.victimLines, prometheus.GaugeValue, float64(f.VictimLines()), label)
		ch <- prometheus.MustNewConstMetric(c.fullLines, prometheus.GaugeValue, float64(f.FullLines()), label)
		ch <- prometheus.MustNewConstMetric(c.writeCredits, prometheus.GaugeValue, float64(f.WriteCredits()), label)
		ch <- prometheus.MustNewConstMetric(c.gcCount, prometheus.CounterValue, float64(f.GCCount()), label)
		ch <- prometheus.MustNewConstMetric(c.gcCopiedPages, prometheus.CounterValue, float64(f.GCCopiedPages()), label)
	}

	ch <- prometheus.MustNewConstMetric(c.bufRemaining, prometheus.GaugeValue, float64(ns.WriteBuffer().Remaining()))
	ch <- prometheus.MustNewConstMetric(c.hostOps, prometheus.CounterValue, float64(c.runner.Reads), "read")
	ch <- prometheus.MustNewConstMetric(c.hostOps, prometheus.CounterValue, float64(c.runner.Writes), "write")
	ch <- prometheus.MustNewConstMetric(c.hostOps, prometheus.CounterValue, float64(c.runner.Flushes), "flush")
	ch <- prometheus.MustNewConstMetric(c.hostRetries, prometheus.CounterValue, float64(c.runner.Retries))
	ch <- prometheus.MustNewConstMetric(c.victimsHot, prometheus.CounterValue, float64(ns.Stats.HotGCCnt.Load()))
	ch <- prometheus.MustNewConstMetric(c.victimsCold, prometheus.CounterValue, float64(ns.Stats.ColdGCCnt.Load()))
	ch <- prometheus.MustNewConstMetric(c.simTime, prometheus.GaugeValue, float64(c.runner.SimTime))
}
