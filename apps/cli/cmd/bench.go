package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hammx/packages/bench"
	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench [METHOD] URL",
	Short: "Load test an endpoint",
	Long: `Send a request repeatedly and report throughput and latency percentiles.

Examples:
  # Constant rate
  hammx bench GET https://api.example.com/users --duration 1m --rate 100

  # Virtual users with think time
  hammx bench https://api.example.com --path users --vus 20 --think-time 500ms

  # Several weighted targets on one base URL
  hammx bench https://api.example.com --target "GET users 3" --target "POST users 1" -d '{"name":"ada"}'

  # Thresholds for CI
  hammx bench GET https://api.example.com/health --duration 30s --threshold "p95<200ms,errors<1%"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(0, 2)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	},
	RunE: benchCommand,
}

var (
	benchDurationFlag   string
	benchRateFlag       float64
	benchVUsFlag        int
	benchMaxVUsFlag     int
	benchThinkTimeFlag  string
	benchRampUpFlag     string
	benchThresholdFlag  string
	benchNoProgressFlag bool
	benchJSONFlag       bool
	benchVerboseFlag    bool
	benchPathFlag       string
	benchQueryFlags     []string
	benchHeaderFlags    []string
	benchDataFlag       string
	benchTargetFlags    []string
)

func init() {
	f := benchCmd.Flags()
	f.StringVar(&benchDurationFlag, "duration", getEnvString("HAMMX_BENCH_DURATION", "10s"), "Test duration, e.g. 30s, 5m (env: HAMMX_BENCH_DURATION)")
	f.Float64VarP(&benchRateFlag, "rate", "r", getEnvFloat("HAMMX_BENCH_RATE", 10), "Target requests per second (env: HAMMX_BENCH_RATE)")
	f.IntVarP(&benchVUsFlag, "vus", "u", getEnvInt("HAMMX_BENCH_VUS", 0), "Number of virtual users, instead of a rate (env: HAMMX_BENCH_VUS)")
	f.IntVar(&benchMaxVUsFlag, "max-vus", getEnvInt("HAMMX_BENCH_MAX_VUS", 100), "Maximum concurrent requests (env: HAMMX_BENCH_MAX_VUS)")
	f.StringVarP(&benchThinkTimeFlag, "think-time", "t", "0s", "Pause between requests of one virtual user")
	f.StringVar(&benchRampUpFlag, "ramp-up", "0s", "Time to reach the target rate or VU count")
	f.StringVar(&benchThresholdFlag, "threshold", getEnvString("HAMMX_BENCH_THRESHOLD", ""), "Pass/fail thresholds, e.g. \"p95<200ms,errors<1%\" (env: HAMMX_BENCH_THRESHOLD)")
	f.BoolVar(&benchNoProgressFlag, "no-progress", false, "Disable the live progress line")
	f.BoolVar(&benchJSONFlag, "json", false, "Print the results as JSON")
	f.BoolVar(&benchVerboseFlag, "breakdown", false, "Show per-target results")

	f.StringVarP(&benchPathFlag, "path", "p", "", "Path to append to the URL")
	f.StringArrayVarP(&benchQueryFlags, "params", "q", nil, "Query parameter as key=value (repeatable)")
	f.StringArrayVarP(&benchHeaderFlags, "headers", "H", nil, "Header as key=value (repeatable)")
	f.StringVarP(&benchDataFlag, "data", "d", "", "JSON body, or @file")
	f.StringArrayVar(&benchTargetFlags, "target", nil, "Extra target as \"METHOD PATH [WEIGHT]\" (repeatable)")
}

func benchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	benchCfg, err := buildBenchConfig()
	if err != nil {
		return usageError(err)
	}

	method, rawURL, err := splitArgs(args)
	if err != nil {
		return err
	}
	base, err := resolveBase(rawURL, cfg)
	if err != nil {
		return err
	}

	// Per-request logging would flood the terminal.
	clientCfg := *cfg
	clientCfg.Verbose = config.BoolPtr(false)
	client, cleanup, err := newClient(base, &clientCfg, log.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	targets, err := buildTargets(client, method, requestSpec{
		Path:    benchPathFlag,
		Query:   benchQueryFlags,
		Headers: benchHeaderFlags,
		Data:    benchDataFlag,
	}, benchTargetFlags)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if benchJSONFlag {
		out = io.Discard
	}
	reporter := bench.NewReporter(
		bench.WithWriter(out),
		bench.WithNoColor(cfg.GetNoColor()),
		bench.WithNoProgress(benchNoProgressFlag || benchJSONFlag),
		bench.WithVerbose(benchVerboseFlag),
	)

	runner, err := bench.NewRunner(benchCfg, targets, bench.WithReporter(reporter))
	if err != nil {
		return usageError(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if benchJSONFlag {
		if err := bench.NewReporter(bench.WithWriter(cmd.OutOrStdout())).JSON(result); err != nil {
			return err
		}
	} else {
		reporter.Summary(result)
	}

	if result.HasThresholdFailures() {
		return &ExitError{Code: ExitThresholdFailure, Err: fmt.Errorf("thresholds not met"), Quiet: true}
	}
	return nil
}

func buildBenchConfig() (*bench.Config, error) {
	cfg := bench.DefaultConfig()

	var err error
	if cfg.Duration, err = time.ParseDuration(benchDurationFlag); err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	if cfg.ThinkTime, err = time.ParseDuration(benchThinkTimeFlag); err != nil {
		return nil, fmt.Errorf("invalid think time: %w", err)
	}
	if cfg.RampUp, err = time.ParseDuration(benchRampUpFlag); err != nil {
		return nil, fmt.Errorf("invalid ramp-up: %w", err)
	}

	cfg.Rate = benchRateFlag
	cfg.MaxVUs = benchMaxVUsFlag
	if benchVUsFlag > 0 {
		cfg.VUs = benchVUsFlag
		cfg.Mode = bench.VUMode
	}

	if benchThresholdFlag != "" {
		t, err := bench.ParseThresholds(benchThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}
	return cfg, nil
}

// buildTargets returns the main target and one per --target value. Extra
// targets share the query, headers and body of the main one.
func buildTargets(client *hammx.Client, method string, spec requestSpec, extra []string) ([]bench.Target, error) {
	if method == "" {
		method = "GET"
	}

	opts, err := requestOptions(requestSpec{Query: spec.Query, Headers: spec.Headers, Data: spec.Data})
	if err != nil {
		return nil, err
	}

	targets := []bench.Target{{
		Method:   method,
		Resource: client.Path(splitPath(spec.Path)...),
		Options:  opts,
	}}

	for _, t := range extra {
		fields := strings.Fields(t)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, usageError(fmt.Errorf("invalid target %q (use \"METHOD PATH [WEIGHT]\")", t))
		}
		weight := 1
		if len(fields) == 3 {
			w, err := strconv.Atoi(fields[2])
			if err != nil || w < 1 {
				return nil, usageError(fmt.Errorf("invalid weight in target %q", t))
			}
			weight = w
		}
		targets = append(targets, bench.Target{
			Method:   strings.ToUpper(fields[0]),
			Resource: client.Path(splitPath(fields[1])...),
			Options:  opts,
			Weight:   weight,
		})
	}
	return targets, nil
}
