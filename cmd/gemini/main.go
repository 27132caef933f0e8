// Package main implements gemini, a command running the two-party generation of
// matrix-vector multiplication triples over Z_{2^k} with the RLWE share conversion
// and tiled matrix-vector protocols, and reporting their timings.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"lukechampine.com/uint128"

	"github.com/tuneinsight/gemini-rlwe/utils/sampling"
)

const (
	configFlag      = "config"
	logLevelFlag    = "loglevel"
	logNFlag        = "logn"
	logQFlag        = "logq"
	bitWidthFlag    = "bitwidth"
	rowsFlag        = "rows"
	colsFlag        = "cols"
	transposedFlag  = "transposed"
	runsFlag        = "runs"
	seedFlag        = "seed"
	metricsFileFlag = "metrics-file"
)

var (
	Version   = "DEV"
	BuildTime = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gemini: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := &cli.App{}
	app.Name = "gemini"
	app.Usage = "two-party matrix-vector triple generation over Z_2^k"
	app.Version = fmt.Sprintf("%s (built %s)", Version, BuildTime)
	app.Flags = flags()
	app.Action = action
	return app
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  configFlag,
			Usage: "YAML configuration file, overridden by the flags set on the command line",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Usage: "application logging level {debug, info, warn, error}",
			Value: "info",
		},
		&cli.IntFlag{
			Name:  logNFlag,
			Usage: "log2 of the ring degree",
		},
		&cli.IntSliceFlag{
			Name:  logQFlag,
			Usage: "bit-sizes of the RNS moduli",
		},
		&cli.IntFlag{
			Name:  bitWidthFlag,
			Usage: "bit-width k of the plaintext ring Z_2^k",
		},
		&cli.IntFlag{
			Name:  rowsFlag,
			Usage: "number of rows of the matrices",
		},
		&cli.IntFlag{
			Name:  colsFlag,
			Usage: "number of columns of the matrices",
		},
		&cli.BoolFlag{
			Name:  transposedFlag,
			Usage: "multiply by the transpose of the matrices",
		},
		&cli.IntFlag{
			Name:  runsFlag,
			Usage: "number of triples to generate",
		},
		&cli.StringFlag{
			Name:  seedFlag,
			Usage: "seed of the parties' randomness, random if empty",
		},
		&cli.StringFlag{
			Name:  metricsFileFlag,
			Usage: "file to which the Prometheus metrics are written in the text format",
		},
	}
}

func action(c *cli.Context) (err error) {

	logger, err := createLogger(c.String(logLevelFlag))
	if err != nil {
		return
	}

	cfg, err := LoadConfig(c.String(configFlag))
	if err != nil {
		return
	}

	cfg.ApplyFlags(c)

	if err = cfg.Validate(); err != nil {
		return
	}

	seed := []byte(cfg.Seed)
	if len(seed) == 0 {
		var prng *sampling.KeyedPRNG
		if prng, err = sampling.NewPRNG(); err != nil {
			return errors.Wrap(err, "cannot generate seed")
		}
		seed = prng.Key()
	}

	m := newMetrics()

	var durations []time.Duration
	switch {
	case cfg.BitWidth <= 32:
		durations, err = runTriples[uint32](c.Context, cfg, seed, m, logger)
	case cfg.BitWidth <= 64:
		durations, err = runTriples[uint64](c.Context, cfg, seed, m, logger)
	default:
		durations, err = runTriples[uint128.Uint128](c.Context, cfg, seed, m, logger)
	}

	if err != nil {
		return
	}

	data := make(stats.Float64Data, len(durations))
	for i, d := range durations {
		data[i] = d.Seconds()
	}

	mean, _ := data.Mean()
	median, _ := data.Median()
	p95, _ := data.Percentile(95)

	logger.Info().
		Int("runs", len(durations)).
		Float64("mean_seconds", mean).
		Float64("median_seconds", median).
		Float64("p95_seconds", p95).
		Msg("triples generated")

	if cfg.MetricsFile != "" {
		if err = m.WriteToFile(cfg.MetricsFile); err != nil {
			return
		}
		logger.Info().Str("file", cfg.MetricsFile).Msg("metrics written")
	}

	return
}
