// Command apidiff runs regression tests against a JSON decisioning API:
// it dispatches generated requests through a resilient concurrent
// pipeline and compares the responses against a recorded baseline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"apidiff/internal/admit"
	"apidiff/internal/breaker"
	"apidiff/internal/compare"
	"apidiff/internal/config"
	"apidiff/internal/dispatch"
	"apidiff/internal/generate"
	"apidiff/internal/logging"
	"apidiff/internal/retry"
	"apidiff/internal/run"
)

const (
	ExitSuccess         = 0
	ExitThresholdFailed = 1
	ExitError           = 2
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (required)")
	mode := flag.String("mode", "record", "run mode: record, verify, compare")
	count := flag.Int("count", 0, "number of requests to generate (record mode)")
	baseline := flag.String("baseline", "", "baseline outcome file (verify and compare modes)")
	candidate := flag.String("candidate", "", "second outcome file (compare mode)")
	out := flag.String("out", "", "path to write this run's outcomes")
	output := flag.String("output", "text", "report format: text, json")
	quiet := flag.Bool("quiet", false, "suppress progress output during the run")
	verbose := flag.Bool("verbose", false, "enable debug output (request/response logging)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "error: --config is required")
		flag.Usage()
		os.Exit(ExitError)
	}

	if *output != "text" && *output != "json" {
		fmt.Fprintf(os.Stderr, "error: --output must be 'text' or 'json', got %q\n", *output)
		os.Exit(ExitError)
	}

	runMode, err := run.ParseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	opts := run.Options{
		Mode:          runMode,
		Count:         *count,
		BaselinePath:  *baseline,
		CandidatePath: *candidate,
		OutPath:       *out,
	}
	if err := validateOptions(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	logger, err := logging.New(*logLevel, *verbose, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	var debugLogger *dispatch.DebugLogger
	if *verbose {
		debugLogger = dispatch.NewDebugLogger(os.Stderr)
	}

	transport := dispatch.NewHTTPTransport(cfg.API.InsecureSkipTLS, debugLogger)
	br := breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown, nil)
	throttler := admit.New(cfg.Execution.Parallel, cfg.Execution.RPS)
	policy := retry.Policy{
		MaxRetries: cfg.API.MaxRetries,
		BaseDelay:  cfg.API.RetryDelay,
		MaxDelay:   cfg.API.MaxRetryDelay,
	}
	dispatcher := dispatch.New(cfg.API, transport, br, throttler, policy, logger)

	comparator := compare.New(compare.Options{
		IgnoreKeys:       cfg.Compare.IgnoreKeys,
		NumericTolerance: cfg.Compare.NumericTolerance,
		CaseSensitive:    cfg.Compare.IsCaseSensitive(),
	})

	// Relative template and data source paths resolve against the
	// config file's directory.
	generator, err := generate.New(cfg.Data, filepath.Dir(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	runner := run.New(*cfg, dispatcher, generator, comparator, logger, *quiet)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		if !*quiet {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		}
		cancel()
	}()

	report, err := runner.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	if err := report.Write(os.Stdout, *output); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	if !report.Passed() {
		if *output == "text" {
			fmt.Fprintln(os.Stderr, "\nThreshold check failed!")
		}
		os.Exit(ExitThresholdFailed)
	}

	os.Exit(ExitSuccess)
}

func validateOptions(opts run.Options) error {
	switch opts.Mode {
	case run.ModeRecord:
		if opts.Count < 1 {
			return fmt.Errorf("record mode requires --count >= 1")
		}
	case run.ModeVerify:
		if opts.BaselinePath == "" {
			return fmt.Errorf("verify mode requires --baseline")
		}
	case run.ModeCompare:
		if opts.BaselinePath == "" || opts.CandidatePath == "" {
			return fmt.Errorf("compare mode requires --baseline and --candidate")
		}
	}
	return nil
}
