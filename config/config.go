// Package config loads the machine configuration.
package config

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"github.com/orivej/ukern/machine"
	"github.com/orivej/ukern/proc"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration.
type Config struct {
	Kernel   KernelConfig   `yaml:"kernel"`
	Memory   machine.Layout `yaml:"memory"`
	Storage  StorageConfig  `yaml:"storage"`
	Programs ProgramsConfig `yaml:"programs"`
	Log      LogConfig      `yaml:"log"`
}

type KernelConfig struct {
	MaxProcs    int `yaml:"max_procs"`
	MaxPID      int `yaml:"max_pid"`
	FDTableSize int `yaml:"fd_table_size"` // console descriptors included
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // memory, bolt
	Path   string `yaml:"path"`
}

type ProgramsConfig struct {
	Dir string `yaml:"dir"` // empty: beside the executable
}

type LogConfig struct {
	Level string `yaml:"level"` // go-logging level name
}

const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
)

// Default is the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads configuration from a YAML file, expanding environment
// variables in it. An empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.UnmarshalStrict([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Kernel.MaxProcs == 0 {
		c.Kernel.MaxProcs = proc.DefaultMaxProcs
	}
	if c.Kernel.MaxPID == 0 {
		c.Kernel.MaxPID = proc.DefaultMaxPID
	}
	if c.Kernel.FDTableSize == 0 {
		c.Kernel.FDTableSize = proc.DefaultFDTableSize
	}

	def := machine.DefaultLayout()
	if c.Memory.Size == 0 {
		c.Memory.Size = def.Size
	}
	if c.Memory.WordSize == 0 {
		c.Memory.WordSize = def.WordSize
	}
	if c.Memory.Regions == nil {
		c.Memory.Regions = def.Regions
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Log.Level == "" {
		c.Log.Level = "WARNING"
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var err error
	if c.Kernel.MaxProcs < 1 {
		err = multierr.Append(err, fmt.Errorf("kernel.max_procs must be positive, got %d", c.Kernel.MaxProcs))
	}
	if c.Kernel.MaxPID < c.Kernel.MaxProcs {
		err = multierr.Append(err, fmt.Errorf("kernel.max_pid %d is below kernel.max_procs %d", c.Kernel.MaxPID, c.Kernel.MaxProcs))
	}
	if c.Kernel.FDTableSize < 3 {
		err = multierr.Append(err, fmt.Errorf("kernel.fd_table_size must leave room beside the console, got %d", c.Kernel.FDTableSize))
	}
	err = multierr.Append(err, c.Memory.Validate())
	if _, ok := c.Memory.Scratch(); !ok {
		err = multierr.Append(err, fmt.Errorf("memory has no writable region"))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverBolt:
		if c.Storage.Path == "" {
			err = multierr.Append(err, fmt.Errorf("storage.path is required by the bolt driver"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if _, lerr := logging.LogLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %v", lerr))
	}
	return err
}
