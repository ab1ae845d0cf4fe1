package job

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/scanwarp/internal/cleanup"
	"github.com/MeKo-Tech/scanwarp/internal/codec"
	"github.com/MeKo-Tech/scanwarp/internal/detector"
	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/remap"
	"github.com/MeKo-Tech/scanwarp/internal/vision"
)

// Fetcher resolves a source reference to encoded image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Vision is the capability handle of the owning worker context. Nil
	// behaves like a capability that never loads.
	Vision  *vision.Capability
	Fetcher Fetcher

	// Zero values select detector.DefaultConfig and cleanup.DefaultConfig.
	Detector detector.Config
	Cleanup  cleanup.Config
	// SkipCleanup disables background whitening after warp_auto.
	SkipCleanup bool
	// MaxPixels bounds both decoded sources and rectified outputs.
	// Zero selects codec.DefaultMaxPixels.
	MaxPixels int64

	// OnTransition, when set, observes every state change.
	OnTransition func(id ID, from, to State)
	// OnFinish, when set, observes every result with its duration.
	OnFinish func(j Job, r Result, elapsed time.Duration)
}

// Dispatcher executes jobs one at a time for a single worker context.
// It keeps no state between jobs other than the capability handle.
type Dispatcher struct {
	opts     Options
	detector *detector.Detector
}

// NewDispatcher returns a Dispatcher for opts.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Vision == nil {
		opts.Vision = vision.NewCapability(vision.Disabled("no capability configured"))
	}
	if opts.Detector == (detector.Config{}) {
		opts.Detector = detector.DefaultConfig()
	}
	if opts.Cleanup == (cleanup.Config{}) {
		opts.Cleanup = cleanup.DefaultConfig()
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = codec.DefaultMaxPixels
	}
	return &Dispatcher{opts: opts, detector: detector.New(opts.Detector)}
}

// Handle runs j and returns its single Result. It never panics.
func (d *Dispatcher) Handle(ctx context.Context, j Job) (res Result) {
	r := &run{d: d, job: j, state: StateReceived}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = r.fail(fmt.Errorf("panic: %v", p))
		}
		if d.opts.OnFinish != nil {
			d.opts.OnFinish(j, res, time.Since(start))
		}
		slog.Debug("Job finished",
			"job_id", j.ID.String(),
			"operation", j.Operation.String(),
			"tag", string(res.Tag()),
			"duration", time.Since(start))
	}()

	r.enter(StateRouted)
	switch j.Operation {
	case OpGrayscale:
		return r.grayscale(ctx)
	case OpWarp:
		return r.warp(ctx)
	case OpWarpAuto:
		return r.warpAuto(ctx)
	case OpDetectCorners:
		return r.detectCorners(ctx)
	default:
		return r.done()
	}
}

// run carries one job through the state machine.
type run struct {
	d     *Dispatcher
	job   Job
	state State
}

func (r *run) enter(s State) {
	prev := r.state
	r.state = s
	slog.Debug("Job state",
		"job_id", r.job.ID.String(),
		"operation", r.job.Operation.String(),
		"from", prev.String(),
		"to", s.String())
	if r.d.opts.OnTransition != nil {
		r.d.opts.OnTransition(r.job.ID, prev, s)
	}
}

func (r *run) done() Result {
	r.enter(StateCompleted)
	return Done{ID: r.job.ID, SourceRef: r.job.SourceRef, Name: r.job.Name}
}

func (r *run) fail(err error) Result {
	failedIn := r.state
	r.enter(StateFailed)
	slog.Warn("Job failed",
		"job_id", r.job.ID.String(),
		"operation", r.job.Operation.String(),
		"state", failedIn.String(),
		"error", err)
	return Failure{ID: r.job.ID, Reason: err.Error()}
}

// backend acquires the vision capability. ok=false means the job should
// degrade to Done; any other acquisition error is returned.
func (r *run) backend(ctx context.Context) (vision.Backend, bool, error) {
	b, err := r.d.opts.Vision.Acquire(ctx)
	if errors.Is(err, vision.ErrUnavailable) {
		slog.Info("Vision capability unavailable, returning source unchanged",
			"job_id", r.job.ID.String(), "error", err)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// load fetches and decodes the source image.
func (r *run) load(ctx context.Context) (image.Image, error) {
	r.enter(StateFetching)
	data := r.job.Data
	if len(data) == 0 {
		if r.d.opts.Fetcher == nil {
			return nil, errors.New("no fetcher configured")
		}
		var err error
		data, err = r.d.opts.Fetcher.Fetch(ctx, r.job.SourceRef)
		if err != nil {
			return nil, fmt.Errorf("fetch source: %w", err)
		}
	}
	img, _, err := codec.DecodeLimited(data, r.d.opts.MaxPixels)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (r *run) encode(img image.Image) Result {
	r.enter(StateEncoding)
	blob, mime, err := codec.EncodePNG(img)
	if err != nil {
		return r.fail(err)
	}
	r.enter(StateCompleted)
	return DoneImage{ID: r.job.ID, Name: r.job.Name, MIME: mime, Blob: blob}
}

func (r *run) grayscale(ctx context.Context) Result {
	b, ok, err := r.backend(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		return r.done()
	}
	img, err := r.load(ctx)
	if err != nil {
		return r.fail(err)
	}
	r.enter(StateDesaturating)
	gray, err := b.Desaturate(img)
	if err != nil {
		return r.fail(fmt.Errorf("desaturate: %w", err))
	}
	return r.encode(gray)
}

func (r *run) warp(ctx context.Context) Result {
	edges, err := geometry.EdgesFromPoints(r.job.Points)
	if err != nil {
		slog.Info("Warp without a usable edge description, returning source unchanged",
			"job_id", r.job.ID.String(), "points", len(r.job.Points))
		return r.done()
	}
	b, ok, err := r.backend(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		return r.done()
	}
	img, err := r.load(ctx)
	if err != nil {
		return r.fail(err)
	}
	out, err := r.rectify(b, img, edges)
	if err != nil {
		return r.fail(err)
	}
	return r.encode(out)
}

func (r *run) warpAuto(ctx context.Context) Result {
	b, ok, err := r.backend(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		return r.done()
	}
	img, err := r.load(ctx)
	if err != nil {
		return r.fail(err)
	}

	r.enter(StateDetecting)
	det := r.d.detector.Detect(b, img)
	if !det.Found {
		slog.Debug("No document outline found, rectifying full frame",
			"job_id", r.job.ID.String(), "reason", det.Reason)
	}

	out, err := r.rectify(b, img, det.Edges)
	if err != nil {
		return r.fail(err)
	}

	if !r.d.opts.SkipCleanup {
		r.enter(StateCleaningUp)
		cleaned, cerr := cleanup.Whiten(b, out, r.d.opts.Cleanup)
		if cerr != nil {
			slog.Debug("Background cleanup skipped", "job_id", r.job.ID.String(), "reason", cerr)
		} else {
			out = cleaned
		}
	}
	return r.encode(out)
}

func (r *run) detectCorners(ctx context.Context) Result {
	b, ok, err := r.backend(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		return r.done()
	}
	img, err := r.load(ctx)
	if err != nil {
		return r.fail(err)
	}
	r.enter(StateDetecting)
	det := r.d.detector.Detect(b, img)
	r.enter(StateCompleted)
	return Detected{ID: r.job.ID, Points: det.Edges.Points(), Width: det.Width, Height: det.Height}
}

// rectify maps the region described by edges onto an axis-aligned image.
func (r *run) rectify(b vision.Backend, img image.Image, edges geometry.EdgeDescription) (*image.NRGBA, error) {
	r.enter(StateRemapping)
	if _, _, err := remap.CheckTargetSize(edges, r.d.opts.MaxPixels); err != nil {
		return nil, err
	}
	field := remap.Build(edges)
	defer field.Release()

	r.enter(StateResampling)
	out, err := b.Remap(img, field)
	if err != nil {
		return nil, fmt.Errorf("remap: %w", err)
	}
	return out, nil
}
