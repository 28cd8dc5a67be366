package batch

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hadronmedia/recompress/internal/config"
	"github.com/hadronmedia/recompress/internal/ledger"
	"github.com/hadronmedia/recompress/internal/logging"
	"github.com/hadronmedia/recompress/internal/metrics"
	"github.com/hadronmedia/recompress/internal/reporter"
	"github.com/hadronmedia/recompress/internal/router"
	"github.com/hadronmedia/recompress/internal/safety"
	"github.com/hadronmedia/recompress/internal/util"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Summary aggregates one batch run's outcomes (§4.7's completion report).
type Summary struct {
	TotalFiles      int
	Succeeded       int
	Failed          int
	Skipped         int
	TotalInputBytes int64
	TotalOutputBytes int64
	Duration        time.Duration
	Failures        []FailedFile
	MetricsText     string
}

// FailedFile names one input that errored during the pipeline, and why.
type FailedFile struct {
	InputPath string
	Err       error
}

// Driver owns everything one batch run needs: configuration, logging, the
// de-duplication ledger, progress reporting, and the isolated metrics
// registry C7 updates as files complete.
type Driver struct {
	cfg      *config.Config
	log      *logging.Logger
	rep      reporter.Reporter
	led      *ledger.Ledger
	registry *prom.Registry
}

// NewDriver builds a Driver. rep may be reporter.NullReporter{} to discard
// progress updates. If cfg.LedgerPath is set the ledger is disk-backed
// (§4.8); otherwise it's in-memory only for the lifetime of this run.
func NewDriver(cfg *config.Config, log *logging.Logger, rep reporter.Reporter) (*Driver, error) {
	var led *ledger.Ledger
	var err error
	if cfg.LedgerPath != "" {
		led, err = ledger.Open(cfg.LedgerPath)
	} else {
		led = ledger.New()
	}
	if err != nil {
		return nil, err
	}
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	return &Driver{cfg: cfg, log: log, rep: rep, led: led, registry: metrics.Registry()}, nil
}

// Close releases the ledger's disk backing, if any.
func (d *Driver) Close() error {
	return d.led.Close()
}

// detectEncoders probes `ffmpeg -encoders` for libsvtav1/libx265 support,
// populating the router.Flags the batch's routing decisions depend on.
func detectEncoders(ctx context.Context) (av1, hevc bool) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return false, false
	}
	text := string(out)
	return strings.Contains(text, "libsvtav1"), strings.Contains(text, "libx265")
}

// Run discovers every supported input under cfg.InputDir, processes it
// through the full pipeline with cfg.Workers tasks in flight, and returns
// the aggregated Summary.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if d.cfg.DeleteOriginal || d.cfg.InPlace {
		if err := safety.CheckDangerousRoot(d.cfg.InputDir); err != nil {
			return nil, err
		}
	}

	av1, hevc := detectEncoders(ctx)
	flags := router.Flags{
		AppleCompat:   d.cfg.AppleCompat,
		MatchQuality:  d.cfg.MatchQuality,
		Lossless:      d.cfg.Lossless,
		AV1Available:  av1,
		HEVCAvailable: hevc,
		OutputDirSet:  d.cfg.OutputDir != "" && !d.cfg.InPlace,
	}

	files, err := Discover(d.cfg.InputDir)
	if err != nil {
		return nil, err
	}

	var snaps []dirSnapshot
	if !d.cfg.InPlace {
		snaps, _ = snapshotDirs(d.cfg.InputDir)
	}

	hostname, _ := os.Hostname()
	d.rep.Hardware(reporter.HardwareSummary{
		Hostname:      hostname,
		LogicalCores:  util.LogicalCores(),
		PhysicalCores: util.PhysicalCores(),
		Workers:       d.cfg.Workers,
	})

	d.rep.BatchStarted(reporter.BatchStartInfo{TotalFiles: len(files), FileList: files, OutputDir: d.cfg.OutputDir})
	metrics.FilesTotal.Add(float64(len(files)))

	summary := &Summary{TotalFiles: len(files)}
	var mu sync.Mutex
	var processed int64

	sem := semaphore.NewWeighted(int64(d.cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range files {
		f := f
		idx := i
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()

			fileStart := time.Now()
			outcome, procErr := ProcessFile(gctx, d.cfg, d.log, d.rep, d.led, flags, f)
			metrics.EncodeDuration.Observe(time.Since(fileStart).Seconds())

			n := atomic.AddInt64(&processed, 1)
			d.rep.FileProgress(reporter.FileProgressContext{CurrentFile: int(n), TotalFiles: len(files)})

			mu.Lock()
			defer mu.Unlock()
			d.recordOutcome(summary, f, idx, outcome, procErr)
			return nil
		})
	}
	_ = g.Wait()

	if !d.cfg.InPlace {
		if err := copyUnsupported(d.cfg); err != nil {
			d.log.Warn("unsupported-file copy-through pass failed: %v", err)
		}
		if len(snaps) > 0 {
			restoreDirs(snaps, d.cfg.InputDir, d.cfg.OutputDir)
		}
	}

	summary.Duration = time.Since(start)
	if text, err := metrics.Render(d.registry); err == nil {
		summary.MetricsText = text
	}

	d.rep.BatchComplete(reporter.BatchSummary{
		SuccessfulCount:   summary.Succeeded,
		TotalFiles:        summary.TotalFiles,
		TotalOriginalSize: uint64(summary.TotalInputBytes),
		TotalEncodedSize:  uint64(summary.TotalOutputBytes),
		TotalDuration:     summary.Duration,
	})

	return summary, nil
}

// recordOutcome folds one ProcessFile result into summary and updates the
// Prometheus counters. Callers must hold summary's mutex.
func (d *Driver) recordOutcome(summary *Summary, path string, idx int, outcome *FileOutcome, procErr error) {
	if procErr != nil {
		summary.Failed++
		summary.Failures = append(summary.Failures, FailedFile{InputPath: path, Err: procErr})
		metrics.FilesFailed.Inc()
		d.rep.Error(reporter.ReporterError{Title: "encode failed", Message: procErr.Error(), Context: path})
		return
	}

	if outcome.Skipped {
		summary.Skipped++
		metrics.FilesSkipped.WithLabelValues(outcome.SkipReason).Inc()
		return
	}

	summary.Succeeded++
	summary.TotalInputBytes += outcome.InputBytes
	summary.TotalOutputBytes += outcome.OutputBytes
	metrics.FilesSucceeded.Inc()
	metrics.InputBytesTotal.Add(float64(outcome.InputBytes))
	metrics.OutputBytesTotal.Add(float64(outcome.OutputBytes))
}

// copyUnsupported mirrors every non-media file under cfg.InputDir into
// cfg.OutputDir untouched, so a batch's output tree is a complete mirror
// of its input tree rather than only the recompressed subset (§4.7).
func copyUnsupported(cfg *config.Config) error {
	files, err := DiscoverUnsupported(cfg.InputDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		dst, err := resolveOutputPath(cfg, f, "")
		if err != nil {
			continue
		}
		_ = copyThrough(f, dst)
	}
	return nil
}
