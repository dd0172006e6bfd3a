package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"logger"`
	Driver struct {
		Device       string `yaml:"device"`
		LibraryPath  string `yaml:"libraryPath"`
		CompilerPath string `yaml:"compilerPath"`
	} `yaml:"driver"`
	Engine struct {
		MemoryLimit   uint64 `yaml:"memoryLimit"`
		RandomSamples uint64 `yaml:"randomSamples"`
		Seed          uint64 `yaml:"seed"`
		FailFast      bool   `yaml:"failFast"`
	} `yaml:"engine"`
	Runner struct {
		Filter     string `yaml:"filter"`
		ShardIndex int    `yaml:"shardIndex"`
		ShardCount int    `yaml:"shardCount"`
	} `yaml:"runner"`
	PTX struct {
		Version string `yaml:"version"`
		Target  string `yaml:"target"`
	} `yaml:"ptx"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Logger.Verbosity = "info"
	c.Logger.Encoding = "console"
	c.Driver.Device = "cuda"
	c.Engine.MemoryLimit = 1 << 29
	c.Engine.RandomSamples = 1 << 32
	c.Engine.Seed = 0x761194f3027874ef
	c.Runner.ShardCount = 1
	c.PTX.Version = "7.8"
	c.PTX.Target = "sm_89"
	return &c
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return config, nil
}

// Validate rejects settings the engine or the runner cannot honour.
func (c *Config) Validate() error {
	var errs []error
	switch c.Logger.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logger.encoding: unknown encoding %q", c.Logger.Encoding))
	}
	switch c.Driver.Device {
	case "cuda", "host":
	default:
		errs = append(errs, fmt.Errorf("driver.device: unknown device %q", c.Driver.Device))
	}
	if c.Engine.MemoryLimit == 0 {
		errs = append(errs, errors.New("engine.memoryLimit: must be positive"))
	}
	if c.Engine.RandomSamples == 0 || c.Engine.RandomSamples%128 != 0 {
		errs = append(errs, fmt.Errorf("engine.randomSamples: %d is not a positive multiple of 128", c.Engine.RandomSamples))
	}
	if c.Runner.ShardCount < 1 {
		errs = append(errs, fmt.Errorf("runner.shardCount: %d must be at least 1", c.Runner.ShardCount))
	} else if c.Runner.ShardIndex < 0 || c.Runner.ShardIndex >= c.Runner.ShardCount {
		errs = append(errs, fmt.Errorf("runner.shardIndex: %d out of range for %d shards", c.Runner.ShardIndex, c.Runner.ShardCount))
	}
	if c.PTX.Version == "" || c.PTX.Target == "" {
		errs = append(errs, errors.New("ptx: version and target are required"))
	}
	return errors.Join(errs...)
}
