package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/MeKo-Tech/scanwarp/internal/job"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

// Pool is the part of *worker.Pool a Runner needs.
type Pool interface {
	Run(ctx context.Context, jobs []job.Job, progress worker.ProgressCallback, emit func(job.Result))
}

// Options configures a Runner.
type Options struct {
	OutputDir       string
	ContinueOnError bool
	Progress        worker.ProgressCallback
}

// Runner executes a batch and stores every output under OutputDir.
type Runner struct {
	pool Pool
	opts Options
}

// NewRunner returns a Runner over pool.
func NewRunner(pool Pool, opts Options) *Runner {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Runner{pool: pool, opts: opts}
}

// Outcome is the record of one job.
type Outcome struct {
	ID     job.ID  `json:"id"`
	Tag    job.Tag `json:"tag"`
	Output string  `json:"output,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Summary collects the outcomes of a batch in submission order.
type Summary struct {
	Total     int       `json:"total"`
	Images    int       `json:"images"`
	Detected  int       `json:"detected"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// ImageOutputs returns the written image paths in submission order.
func (s *Summary) ImageOutputs() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Tag == job.TagDoneBlob && o.Output != "" {
			out = append(out, o.Output)
		}
	}
	return out
}

// WriteReport saves the summary as indented JSON.
func (s *Summary) WriteReport(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Run executes jobs. Without ContinueOnError the first failure cancels the
// jobs that have not started; they still get a Failure outcome.
func (r *Runner) Run(ctx context.Context, jobs []job.Job) (*Summary, error) {
	if err := os.MkdirAll(r.opts.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	index := make(map[string]int, len(jobs))
	for i, j := range jobs {
		index[j.ID.String()] = i
	}
	summary := &Summary{Total: len(jobs), Outcomes: make([]Outcome, len(jobs))}

	r.pool.Run(ctx, jobs, r.opts.Progress, func(res job.Result) {
		o := r.store(res)
		switch o.Tag {
		case job.TagDoneBlob:
			summary.Images++
		case job.TagDetected:
			summary.Detected++
		case job.TagDone:
			summary.Unchanged++
		case job.TagError:
			summary.Failed++
			if !r.opts.ContinueOnError {
				cancel()
			}
		}
		if i, ok := index[res.JobID().String()]; ok {
			summary.Outcomes[i] = o
		}
	})

	if summary.Failed > 0 && !r.opts.ContinueOnError {
		return summary, fmt.Errorf("%d of %d jobs failed", summary.Failed, summary.Total)
	}
	return summary, nil
}

// store writes the output of res and returns its outcome.
func (r *Runner) store(res job.Result) Outcome {
	o := Outcome{ID: res.JobID(), Tag: res.Tag()}
	var (
		path string
		data []byte
	)
	switch v := res.(type) {
	case job.DoneImage:
		path = filepath.Join(r.opts.OutputDir, fileStem(v.ID, v.Name)+".png")
		data = v.Blob
	case job.Detected:
		path = filepath.Join(r.opts.OutputDir, fileStem(v.ID, "")+".json")
		var err error
		if data, err = json.MarshalIndent(job.NewResponse(v), "", "  "); err != nil {
			return Outcome{ID: o.ID, Tag: job.TagError, Reason: err.Error()}
		}
	case job.Failure:
		o.Reason = v.Reason
		slog.Warn("Batch job failed", "job_id", v.ID.String(), "reason", v.Reason)
		return o
	default:
		return o
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Outcome{ID: o.ID, Tag: job.TagError, Reason: fmt.Sprintf("write output: %v", err)}
	}
	o.Output = path
	return o
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// fileStem names output files after the job name, or the id when unnamed.
func fileStem(id job.ID, name string) string {
	stem := name
	if stem == "" {
		stem = id.String()
	}
	stem = unsafeChars.ReplaceAllString(stem, "_")
	if stem == "" || stem == "." || stem == ".." {
		stem = "job"
	}
	return stem
}
