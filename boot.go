package main

import (
	"os"
	"path/filepath"

	"github.com/kardianos/osext"
	"github.com/op/go-logging"
	"github.com/orivej/e"
	"github.com/orivej/ukern/config"
	"github.com/orivej/ukern/loader"
	"github.com/orivej/ukern/proc"
	"github.com/orivej/ukern/storage"
)

const defaultConfig = "ukern.yaml"

// findConfig returns the default config file beside the executable, or
// "" if there is none.
func findConfig() string {
	dir, err := osext.ExecutableFolder()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, defaultConfig)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func setupLogging(level string, verbose bool, debug *ModuleSet) {
	formatter := logging.MustStringFormatter("%{color}%{module} %{level:.1s} > %{message} %{color:reset}")
	logging.SetFormatter(formatter)
	logging.SetBackend(logging.NewLogBackend(os.Stderr, "", 0))

	lvl, err := logging.LogLevel(level)
	e.Exit(err)
	if verbose && lvl < logging.INFO {
		lvl = logging.INFO
	}
	logging.SetLevel(lvl, "")
	for _, module := range debug.Slice {
		logging.SetLevel(logging.DEBUG, module)
	}
}

func openStorage(cfg config.StorageConfig) (storage.Backend, func(), error) {
	switch cfg.Driver {
	case config.DriverBolt:
		db, err := storage.OpenBolt(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("files persisted in %s", cfg.Path)
		return db, func() { e.CloseOrPrint(db) }, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}

// newLoader resolves built-in programs first, then scripts in dir.
func newLoader(dir string) (proc.Loader, error) {
	d, err := loader.NewDir(dir)
	if err != nil {
		return nil, err
	}
	log.Infof("programs from %s", d.Path)
	return loader.Chain{builtins(), d}, nil
}
