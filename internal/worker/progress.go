package worker

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressCallback receives progress of a Run.
type ProgressCallback interface {
	// OnStart is called once with the number of jobs.
	OnStart(total int)
	// OnProgress is called after every completed job.
	OnProgress(current, total int)
	// OnComplete is called when every job has a result.
	OnComplete()
	// OnError is called for every job that ended in a Failure.
	OnError(current int, err error)
}

// NoOpProgressCallback ignores all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// BarProgress draws a terminal progress bar.
type BarProgress struct {
	mu          sync.Mutex
	writer      io.Writer
	description string
	bar         *progressbar.ProgressBar
	failures    int
}

// NewBarProgress returns a bar writing to w, or stderr when w is nil.
func NewBarProgress(w io.Writer, description string) *BarProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgress{writer: w, description: description}
}

func (b *BarProgress) OnStart(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionSetWriter(b.writer),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (b *BarProgress) OnProgress(current, _ int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Set(current)
	}
}

func (b *BarProgress) OnComplete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
	}
	if b.failures > 0 {
		slog.Warn("Batch finished with failures", "failures", b.failures)
	}
}

func (b *BarProgress) OnError(current int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	slog.Debug("Job failed", "index", current, "error", err)
}

// Failures returns the number of failed jobs seen since OnStart.
func (b *BarProgress) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
