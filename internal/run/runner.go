// Package run orchestrates a full regression run: request generation,
// health check, batch dispatch, collection and baseline comparison.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"apidiff/internal/collector"
	"apidiff/internal/compare"
	"apidiff/internal/config"
	"apidiff/internal/core"
	"apidiff/internal/dispatch"
	"apidiff/internal/generate"
	"apidiff/internal/logging"
	"apidiff/internal/progress"
)

// Mode selects what a run does with its outcomes.
type Mode string

const (
	// ModeRecord dispatches requests and writes the outcomes as a
	// baseline file.
	ModeRecord Mode = "record"
	// ModeVerify dispatches requests and compares the outcomes against
	// a previously recorded baseline, pairwise by request index.
	ModeVerify Mode = "verify"
	// ModeCompare diffs two previously recorded outcome files without
	// touching the network.
	ModeCompare Mode = "compare"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRecord, ModeVerify, ModeCompare:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want record, verify or compare)", s)
}

// ErrHealthCheck indicates the target failed its pre-run probe.
var ErrHealthCheck = errors.New("target failed health check")

// Options selects the behavior of one run.
type Options struct {
	Mode  Mode
	Count int // requests to generate in record mode

	// BaselinePath is the baseline read in verify and compare modes.
	BaselinePath string
	// CandidatePath is the second outcome file in compare mode.
	CandidatePath string
	// OutPath, when set, is where record and verify write their
	// outcomes.
	OutPath string
}

// Runner executes runs. Safe to reuse sequentially, not concurrently.
type Runner struct {
	cfg        config.Config
	dispatcher *dispatch.Dispatcher
	generator  *generate.Generator
	comparator *compare.Comparator
	logger     *slog.Logger
	quiet      bool
}

// New wires a Runner from its collaborators.
func New(cfg config.Config, d *dispatch.Dispatcher, g *generate.Generator, c *compare.Comparator, logger *slog.Logger, quiet bool) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		cfg:        cfg,
		dispatcher: d,
		generator:  g,
		comparator: c,
		logger:     logger,
		quiet:      quiet,
	}
}

// Run executes one run and returns its report. The report is non-nil
// only when the run itself completed; threshold violations are reported
// via Report.Passed, not as errors.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	switch opts.Mode {
	case ModeRecord:
		return r.record(ctx, opts)
	case ModeVerify:
		return r.verify(ctx, opts)
	case ModeCompare:
		return r.compareFiles(opts)
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

func (r *Runner) record(ctx context.Context, opts Options) (*Report, error) {
	outcomes, metrics, err := r.execute(ctx, opts.Count)
	if err != nil {
		return nil, err
	}

	if opts.OutPath != "" {
		if err := WriteBaseline(opts.OutPath, outcomes); err != nil {
			return nil, fmt.Errorf("writing baseline: %w", err)
		}
		r.logger.Info("baseline recorded", "path", opts.OutPath, "outcomes", len(outcomes))
	}

	return &Report{
		Mode:       ModeRecord,
		Metrics:    metrics,
		Outcomes:   outcomes,
		Thresholds: collector.CheckThresholds(r.cfg.Report.Thresholds, metrics, nil),
	}, nil
}

func (r *Runner) verify(ctx context.Context, opts Options) (*Report, error) {
	baseline, err := LoadBaseline(opts.BaselinePath)
	if err != nil {
		return nil, fmt.Errorf("loading baseline: %w", err)
	}
	if len(baseline) == 0 {
		return nil, fmt.Errorf("baseline %s is empty", opts.BaselinePath)
	}

	outcomes, metrics, err := r.execute(ctx, len(baseline))
	if err != nil {
		return nil, err
	}

	if opts.OutPath != "" {
		if err := WriteBaseline(opts.OutPath, outcomes); err != nil {
			return nil, fmt.Errorf("writing outcomes: %w", err)
		}
	}

	results, summary := r.comparePairs(baseline, outcomes)

	return &Report{
		Mode:       ModeVerify,
		Metrics:    metrics,
		Outcomes:   outcomes,
		Results:    results,
		Comparison: summary,
		Thresholds: collector.CheckThresholds(r.cfg.Report.Thresholds, metrics, summary),
	}, nil
}

func (r *Runner) compareFiles(opts Options) (*Report, error) {
	baseline, err := LoadBaseline(opts.BaselinePath)
	if err != nil {
		return nil, fmt.Errorf("loading baseline: %w", err)
	}
	candidate, err := LoadBaseline(opts.CandidatePath)
	if err != nil {
		return nil, fmt.Errorf("loading candidate: %w", err)
	}
	if len(baseline) != len(candidate) {
		return nil, fmt.Errorf("outcome count mismatch: baseline has %d, candidate has %d", len(baseline), len(candidate))
	}

	results, summary := r.comparePairs(baseline, candidate)
	metrics := collector.ComputeMetrics(candidate, 0, r.cfg.Report.DecisionPath, r.cfg.Report.Extract)

	return &Report{
		Mode:       ModeCompare,
		Metrics:    metrics,
		Outcomes:   candidate,
		Results:    results,
		Comparison: summary,
		Thresholds: collector.CheckThresholds(r.cfg.Report.Thresholds, metrics, summary),
	}, nil
}

// execute generates count requests and dispatches them, returning the
// ordered outcomes and computed metrics.
func (r *Runner) execute(ctx context.Context, count int) ([]core.Outcome, *collector.Metrics, error) {
	requests, err := r.generator.Generate(count)
	if err != nil {
		return nil, nil, fmt.Errorf("generating requests: %w", err)
	}

	if !r.dispatcher.HealthCheck(ctx) {
		return nil, nil, fmt.Errorf("%w: %s", ErrHealthCheck, r.cfg.API.URL)
	}
	r.logger.Info("health check passed", "url", r.cfg.API.URL)

	col := collector.NewCollector()
	prog := progress.NewProgress(col, len(requests), r.quiet)
	prog.Start()
	defer prog.Stop()

	r.dispatcher.SetObserver(col.Report)
	defer r.dispatcher.SetObserver(nil)

	outcomes := r.dispatcher.SendBatch(ctx, requests, r.cfg.Execution.BatchSize)
	col.Close()

	metrics := collector.ComputeMetrics(outcomes, col.Duration(), r.cfg.Report.DecisionPath, r.cfg.Report.Extract)
	r.logger.Info("run complete",
		"requests", metrics.TotalRequests,
		"succeeded", metrics.SuccessCount,
		"failed", metrics.FailureCount,
		"duration", metrics.RunDuration,
	)
	return outcomes, metrics, nil
}

// comparePairs diffs two equal-length outcome sequences pairwise by
// index. Results holds only the pairs that differ; counts and the
// similarity floor cover every pair.
func (r *Runner) comparePairs(baseline, current []core.Outcome) ([]*compare.Result, *collector.ComparisonSummary) {
	summary := &collector.ComparisonSummary{
		Pairs:         len(baseline),
		MinSimilarity: 100,
	}
	results := make([]*compare.Result, 0)

	for i := range baseline {
		res := r.comparator.CompareOutcomes(baseline[i], current[i])

		// Pairing is positional; an id mismatch means the two runs
		// were generated differently and the pair diff is suspect.
		if baseline[i].RequestID != current[i].RequestID {
			res.Differences = append([]compare.Difference{{
				Path:     "request_id",
				Kind:     compare.KindValueChanged,
				Old:      baseline[i].RequestID,
				New:      current[i].RequestID,
				Severity: compare.SeverityError,
			}}, res.Differences...)
			res.AreEqual = false
		}

		summary.CriticalCount += res.CountSeverity(compare.SeverityCritical)
		summary.ErrorCount += res.CountSeverity(compare.SeverityError)
		summary.WarningCount += res.CountSeverity(compare.SeverityWarning)
		summary.InfoCount += res.CountSeverity(compare.SeverityInfo)

		if sim := res.Similarity(); sim < summary.MinSimilarity {
			summary.MinSimilarity = sim
		}

		if res.AreEqual {
			summary.EqualPairs++
		} else {
			results = append(results, res)
		}
	}

	return results, summary
}
