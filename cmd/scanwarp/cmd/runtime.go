package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanwarp/internal/config"
	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/job"
	"github.com/MeKo-Tech/scanwarp/internal/source"
	"github.com/MeKo-Tech/scanwarp/internal/vision"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

// newPool builds a worker pool whose workers each own a dispatcher and a
// vision capability for the configured backend.
func newPool(cfg *config.Config, onFinish func(job.Job, job.Result, time.Duration)) (*worker.Pool, error) {
	load, err := cfg.VisionLoader()
	if err != nil {
		return nil, err
	}
	fetcher := source.New(cfg.ToSourceConfig(), nil)
	opts := job.Options{
		Fetcher:     fetcher,
		Detector:    cfg.ToDetectorConfig(),
		Cleanup:     cfg.ToCleanupConfig(),
		SkipCleanup: !cfg.Cleanup.Enabled,
		MaxPixels:   cfg.Source.MaxPixels,
		OnTransition: func(id job.ID, from, to job.State) {
			slog.Debug("Job state", "job_id", id.String(), "from", from.String(), "to", to.String())
		},
		OnFinish: onFinish,
	}
	return worker.New(cfg.ToWorkerConfig(), func(int) worker.Handler {
		o := opts
		o.Vision = vision.NewCapability(load)
		return job.NewDispatcher(o)
	}), nil
}

// logFinish is the OnFinish hook of the one-shot commands.
func logFinish(j job.Job, r job.Result, elapsed time.Duration) {
	slog.Info("Image processed",
		"job_id", j.ID.String(),
		"operation", j.Operation.String(),
		"tag", string(r.Tag()),
		"duration_ms", elapsed.Milliseconds())
}

// runOne executes a single job on a one-worker pool.
func runOne(ctx context.Context, cfg *config.Config, j job.Job) (job.Result, error) {
	cfg.Workers.Count = 1
	pool, err := newPool(cfg, logFinish)
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	return pool.Do(ctx, j)
}

// writeResult stores or prints r. Images go to output, or to a name derived
// from the source when output is empty.
func writeResult(w io.Writer, r job.Result, j job.Job, output string) error {
	switch v := r.(type) {
	case job.DoneImage:
		if output == "" {
			output = defaultOutput(j)
		}
		if err := os.WriteFile(output, v.Blob, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		_, _ = fmt.Fprintf(w, "Wrote %s\n", output)
	case job.Detected:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(job.NewResponse(v))
	case job.Done:
		_, _ = fmt.Fprintf(w, "Image left unchanged: %s\n", v.SourceRef)
	case job.Failure:
		return errors.New(v.Reason)
	}
	return nil
}

// defaultOutput names the output after the source with the operation appended.
func defaultOutput(j job.Job) string {
	base := filepath.Base(j.SourceRef)
	if strings.HasPrefix(j.SourceRef, "data:") || base == "." || base == "/" {
		base = "image"
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + j.Operation.String() + ".png"
}

// parsePoints reads warp points either as a JSON array of {x,y} objects or
// as "x,y" pairs separated by semicolons or spaces.
func parsePoints(s string) ([]geometry.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "[") {
		var pts []geometry.Point
		if err := json.Unmarshal([]byte(s), &pts); err != nil {
			return nil, fmt.Errorf("invalid points JSON: %w", err)
		}
		return pts, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ' ' })
	pts := make([]geometry.Point, 0, len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q: expected x,y", f)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", f, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", f, err)
		}
		pts = append(pts, geometry.Pt(x, y))
	}
	return pts, nil
}

// cliJob builds a job for a command line source.
func cliJob(src string, op job.Operation) job.Job {
	return job.Job{
		ID:        job.StringID("cli"),
		SourceRef: src,
		Name:      strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		Operation: op,
	}
}
