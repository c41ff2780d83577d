package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"github.com/orivej/e"
	"github.com/orivej/ukern/config"
	"github.com/orivej/ukern/fd"
	"github.com/orivej/ukern/metrics"
	"github.com/orivej/ukern/proc"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	log = logging.MustGetLogger("ukern")
)

func main() {
	flConfig := flag.String("c", "", "config file (default: "+defaultConfig+" beside the executable, if present)")
	flDir := flag.String("d", "", "program directory (overrides programs.dir)")
	flOut := flag.String("o", "", "write accounting records to this file instead of stdout")
	flScripts := flag.String("s", "", "write a replay script per process to this directory")
	flMetrics := flag.Bool("metrics", false, "dump kernel metrics to stderr on exit")
	flVerbose := flag.Bool("v", false, "log at INFO level or above")
	flDebug := ModuleSetFlag("debug", "log these modules at DEBUG level (repeatable, comma separated)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] program [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfgPath := *flConfig
	if cfgPath == "" {
		cfgPath = findConfig()
	}
	cfg, err := config.Load(cfgPath)
	e.Exit(err)
	if *flDir != "" {
		cfg.Programs.Dir = *flDir
	}
	setupLogging(cfg.Log.Level, *flVerbose, flDebug)

	store, closeStore, err := openStorage(cfg.Storage)
	e.Exit(err)
	loader, err := newLoader(cfg.Programs.Dir)
	e.Exit(err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rec := &recorder{}
	k, err := proc.Boot(proc.Config{
		MaxProcs:    cfg.Kernel.MaxProcs,
		MaxPID:      cfg.Kernel.MaxPID,
		FDTableSize: cfg.Kernel.FDTableSize,
		Layout:      cfg.Memory,
		Loader:      loader,
		Files:       fd.NewFiles(store, m),
		Console:     fd.Console{In: os.Stdin, Out: os.Stdout},
		Metrics:     m,
		OnExit:      rec.add,
	})
	e.Exit(err)

	_, err = k.Start(args[0], args[1:])
	e.Exit(err)
	report := k.Wait()
	closeStore()

	records := rec.sorted()
	err = writeRecords(*flOut, report, records)
	e.Print(err)
	if *flScripts != "" {
		for _, r := range records {
			writeScript(*flScripts, cfgPath, cfg.Programs.Dir, r)
		}
	}
	printSummary(os.Stderr, report, records)
	if *flMetrics {
		err = dumpMetrics(os.Stderr, reg)
		e.Print(err)
	}
	os.Exit(report.Root.Status)
}
