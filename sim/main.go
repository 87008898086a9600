package main

import (
	"math/rand"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/povilasv/prommod"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/log"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/newhook/ssdsim/ftl"
	"github.com/newhook/ssdsim/ssd"
	"github.com/newhook/ssdsim/workload"
)

var (
	capacityMB = kingpin.Flag("capacity", "Physical capacity in MiB.").Default("1024").Uint64()
	partitions = kingpin.Flag("partitions", "Parallel FTL instances.").Default("4").Int()
	gcMode     = kingpin.Flag("gc-mode", "Victim policy: 0 greedy, 1 cost-benefit, 2 random.").Default("0").Int()
	debugMode  = kingpin.Flag("debug", "Enable hot/cold victim statistics.").Default("0").Int()
	pattern    = kingpin.Flag("pattern", "Workload pattern: seq, rand, overwrite, mixed.").Default("mixed").String()
	ops        = kingpin.Flag("ops", "Host commands to issue.").Default("200000").Uint64()
	ioSizeKB   = kingpin.Flag("io-size", "IO size in KiB.").Default("4").Uint64()
	seed       = kingpin.Flag("seed", "Workload RNG seed.").Default("1").Int64()
	listenAddr = kingpin.Flag("web.listen-address", "Address to expose /metrics on; empty disables serving.").Default(":9557").String()
)

func run() error {
	disp := &workload.Dispatcher{}
	cfg := &ftl.CoreConfig{
		GCMode:    *gcMode,
		DebugMode: *debugMode,
		Rand:      rand.New(rand.NewSource(*seed)),
	}

	ns, err := ftl.NewNamespace(1, ssd.Samsung970Pro, *capacityMB*ssd.MB, *partitions, cfg, disp)
	if err != nil {
		return errors.Wrap(err, "creating namespace")
	}

	runner := workload.NewRunner(ns, disp)
	gen := workload.NewGenerator(ns, *pattern, *ioSizeKB*ssd.KB, rand.New(rand.NewSource(*seed)))

	log.Infof("running %d %s ops of %d KiB over %d MiB logical space",
		*ops, *pattern, *ioSizeKB, ns.Size/ssd.MB)

	for i := uint64(0); i < *ops; i++ {
		runner.Submit(gen.Next())
	}
	runner.Submit(&workload.FlushCommand)

	var gcTotal, copiedTotal uint64
	for _, f := range ns.Partitions() {
		gcTotal += f.GCCount()
		copiedTotal += f.GCCopiedPages()
	}
	log.Infof("done: sim-time=%dms writes=%d reads=%d retries=%d gc=%d copied=%d",
		runner.SimTime/1_000_000, runner.Writes, runner.Reads, runner.Retries,
		gcTotal, copiedTotal)
	if runner.Writes > 0 {
		log.Infof("avg write latency: %dns", runner.WriteNsecs/runner.Writes)
	}
	if runner.Reads > 0 {
		log.Infof("avg read latency: %dns", runner.ReadNsecs/runner.Reads)
	}

	if *listenAddr == "" {
		return nil
	}

	prometheus.MustRegister(prommod.NewCollector("ssdsim"))
	prometheus.MustRegister(newCollector(runner))
	http.Handle("/metrics", promhttp.Handler())
	log.Infof("serving metrics on %s", *listenAddr)
	return errors.Wrap(http.ListenAndServe(*listenAddr, nil), "serving metrics")
}

func main() {
	kingpin.Parse()
	if err := run(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
