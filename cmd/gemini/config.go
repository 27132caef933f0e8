package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/tuneinsight/gemini-rlwe/matvec"
)

// Config is the configuration of a run of the distributed matrix-vector triple generation.
type Config struct {
	LogN        int    `yaml:"logn"`
	LogQ        []int  `yaml:"logq"`
	BitWidth    int    `yaml:"bitwidth"`
	Rows        int    `yaml:"rows"`
	Cols        int    `yaml:"cols"`
	Transposed  bool   `yaml:"transposed"`
	Runs        int    `yaml:"runs"`
	Seed        string `yaml:"seed"`
	MetricsFile string `yaml:"metrics-file"`
}

// DefaultConfig returns the configuration used when no file and no flag is given.
func DefaultConfig() Config {
	return Config{
		LogN:     12,
		LogQ:     []int{59, 59, 50, 30},
		BitWidth: 64,
		Rows:     8,
		Cols:     128,
		Runs:     3,
	}
}

// LoadConfig reads a YAML configuration from path on top of [DefaultConfig].
func LoadConfig(path string) (cfg Config, err error) {

	cfg = DefaultConfig()

	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "cannot read config file %s", path)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "cannot parse config file %s", path)
	}

	return
}

// ApplyFlags overrides cfg with the flags explicitly set on the command line.
func (cfg *Config) ApplyFlags(c *cli.Context) {
	if c.IsSet(logNFlag) {
		cfg.LogN = c.Int(logNFlag)
	}
	if c.IsSet(logQFlag) {
		cfg.LogQ = c.IntSlice(logQFlag)
	}
	if c.IsSet(bitWidthFlag) {
		cfg.BitWidth = c.Int(bitWidthFlag)
	}
	if c.IsSet(rowsFlag) {
		cfg.Rows = c.Int(rowsFlag)
	}
	if c.IsSet(colsFlag) {
		cfg.Cols = c.Int(colsFlag)
	}
	if c.IsSet(transposedFlag) {
		cfg.Transposed = c.Bool(transposedFlag)
	}
	if c.IsSet(runsFlag) {
		cfg.Runs = c.Int(runsFlag)
	}
	if c.IsSet(seedFlag) {
		cfg.Seed = c.String(seedFlag)
	}
	if c.IsSet(metricsFileFlag) {
		cfg.MetricsFile = c.String(metricsFileFlag)
	}
}

// Validate returns an error if the configuration cannot be run.
func (cfg Config) Validate() error {

	if cfg.BitWidth < 1 || cfg.BitWidth > 128 {
		return errors.Errorf("bitwidth=%d is not in [1, 128]", cfg.BitWidth)
	}

	if cfg.Runs < 1 {
		return errors.Errorf("runs=%d must be positive", cfg.Runs)
	}

	return errors.Wrap(cfg.Meta().Validate(), "invalid matrix shape")
}

// Meta returns the shape of the matrices.
func (cfg Config) Meta() matvec.Meta {
	return matvec.Meta{
		Transposed: cfg.Transposed,
		NumRows:    cfg.Rows,
		NumCols:    cfg.Cols,
	}
}

// Parameters returns the RLWE parameters of the configuration.
func (cfg Config) Parameters() (rlwe.Parameters, error) {
	params, err := rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN: cfg.LogN,
		LogQ: cfg.LogQ,
	})
	return params, errors.Wrap(err, "invalid parameters")
}
