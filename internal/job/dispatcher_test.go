package job

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/remap"
	"github.com/MeKo-Tech/scanwarp/internal/testutil"
	"github.com/MeKo-Tech/scanwarp/internal/vision"
)

// memoryFetcher serves encoded images from a map.
type memoryFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	calls int
}

func newMemoryFetcher() *memoryFetcher {
	return &memoryFetcher{files: map[string][]byte{}}
}

func (m *memoryFetcher) put(ref string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[ref] = data
}

func (m *memoryFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	data, ok := m.files[ref]
	if !ok {
		return nil, errors.New("not found: " + ref)
	}
	return data, nil
}

// panickyBackend panics while desaturating.
type panickyBackend struct {
	*vision.Native
}

func (panickyBackend) Desaturate(image.Image) (*image.NRGBA, error) {
	panic("desaturate exploded")
}

func newTestDispatcher(t *testing.T, fetcher Fetcher) *Dispatcher {
	t.Helper()
	return NewDispatcher(Options{
		Vision:  vision.NewCapability(vision.Static(vision.NewNative())),
		Fetcher: fetcher,
	})
}

func decodeBlob(t *testing.T, r Result) image.Image {
	t.Helper()
	img, ok := r.(DoneImage)
	require.True(t, ok, "expected DoneImage, got %T (%+v)", r, r)
	assert.Equal(t, "image/png", img.MIME)
	return testutil.DecodePNG(t, img.Blob)
}

func TestHandle_PassthroughAndUnknown(t *testing.T) {
	fetcher := newMemoryFetcher()
	d := newTestDispatcher(t, fetcher)

	res := d.Handle(context.Background(), Job{ID: StringID("a"), SourceRef: "x.png", Name: "x", Operation: OpPassthrough})
	assert.Equal(t, Done{ID: StringID("a"), SourceRef: "x.png", Name: "x"}, res)

	j, err := DecodeRequest([]byte(`{"id":9,"sourceRef":"y.png","operation":"sharpen"}`))
	require.NoError(t, err)
	res = d.Handle(context.Background(), j)
	assert.Equal(t, TagDone, res.Tag())
	assert.Equal(t, "9", res.JobID().String())

	assert.Zero(t, fetcher.calls, "passthrough must not fetch")
}

func TestHandle_Grayscale(t *testing.T) {
	fetcher := newMemoryFetcher()
	src := testutil.GenerateDocument(testutil.DefaultDocument())
	fetcher.put("doc.png", testutil.EncodePNG(t, src))
	d := newTestDispatcher(t, fetcher)

	res := d.Handle(context.Background(), Job{ID: NumberID(1), SourceRef: "doc.png", Name: "doc", Operation: OpGrayscale})
	out := decodeBlob(t, res)
	assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())
	assert.Equal(t, "doc", res.(DoneImage).Name)

	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 37 {
		for x := b.Min.X; x < b.Max.X; x += 41 {
			c := color.NRGBAModel.Convert(out.At(x, y)).(color.NRGBA)
			require.Equal(t, c.R, c.G, "pixel %d,%d", x, y)
			require.Equal(t, c.G, c.B, "pixel %d,%d", x, y)
		}
	}
}

func TestHandle_CapabilityUnavailableDegradesToDone(t *testing.T) {
	fetcher := newMemoryFetcher()
	fetcher.put("doc.png", testutil.EncodePNG(t, testutil.Solid(20, 10, color.NRGBA{A: 255})))
	d := NewDispatcher(Options{
		Vision:  vision.NewCapability(vision.Disabled("test")),
		Fetcher: fetcher,
	})

	pts := geometry.FullFrame(20, 10).Points()
	for _, op := range []Operation{OpGrayscale, OpWarp, OpWarpAuto, OpDetectCorners} {
		t.Run(op.String(), func(t *testing.T) {
			res := d.Handle(context.Background(), Job{ID: StringID(op.String()), SourceRef: "doc.png", Operation: op, Points: pts})
			assert.Equal(t, Done{ID: StringID(op.String()), SourceRef: "doc.png"}, res)
		})
	}
	assert.Zero(t, fetcher.calls)
}

func TestHandle_NilCapabilityDegradesToDone(t *testing.T) {
	d := NewDispatcher(Options{})
	res := d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpGrayscale})
	assert.Equal(t, TagDone, res.Tag())
}

func TestHandle_WarpWithBadPointCount(t *testing.T) {
	fetcher := newMemoryFetcher()
	d := newTestDispatcher(t, fetcher)

	pts := geometry.FullFrame(20, 10).Points()[:7]
	res := d.Handle(context.Background(), Job{ID: NumberID(4), SourceRef: "doc.png", Operation: OpWarp, Points: pts})
	assert.Equal(t, Done{ID: NumberID(4), SourceRef: "doc.png"}, res)

	res = d.Handle(context.Background(), Job{ID: NumberID(5), SourceRef: "doc.png", Operation: OpWarp})
	assert.Equal(t, TagDone, res.Tag())
	assert.Zero(t, fetcher.calls)
}

func TestHandle_WarpProducesTargetSize(t *testing.T) {
	fetcher := newMemoryFetcher()
	src := testutil.GenerateDocument(testutil.DefaultDocument())
	fetcher.put("doc.png", testutil.EncodePNG(t, src))
	d := newTestDispatcher(t, fetcher)

	c := testutil.DefaultDocument().Corners
	edges := geometry.FlatEdges(c[0], c[1], c[2], c[3])
	res := d.Handle(context.Background(), Job{ID: StringID("w"), SourceRef: "doc.png", Operation: OpWarp, Points: edges.Points()})
	out := decodeBlob(t, res)

	w, h := remap.TargetSize(edges)
	assert.Equal(t, image.Pt(w, h), out.Bounds().Size())

	// The sheet fills the output; its lower half carries no text.
	paper := color.NRGBAModel.Convert(out.At(w/2, h*3/4)).(color.NRGBA)
	assert.Greater(t, int(paper.R), 200)
}

func TestHandle_WarpOfFullFrameKeepsSize(t *testing.T) {
	src := testutil.GenerateDocument(testutil.DefaultDocument())
	d := newTestDispatcher(t, nil)

	res := d.Handle(context.Background(), Job{
		ID:        NumberID(1),
		Operation: OpWarp,
		Points:    geometry.FullFrame(640, 480).Points(),
		Data:      testutil.EncodePNG(t, src),
	})
	out := decodeBlob(t, res)
	assert.Equal(t, image.Pt(640, 480), out.Bounds().Size())
}

func TestHandle_FetchAndDecodeFailures(t *testing.T) {
	fetcher := newMemoryFetcher()
	fetcher.put("junk.png", []byte("definitely not an image"))
	d := newTestDispatcher(t, fetcher)

	res := d.Handle(context.Background(), Job{ID: NumberID(1), SourceRef: "missing.png", Operation: OpGrayscale})
	require.IsType(t, Failure{}, res)
	assert.Contains(t, res.(Failure).Reason, "missing.png")

	res = d.Handle(context.Background(), Job{ID: NumberID(2), SourceRef: "junk.png", Operation: OpWarpAuto})
	require.IsType(t, Failure{}, res)
	assert.Equal(t, NumberID(2), res.JobID())

	noFetcher := newTestDispatcher(t, nil)
	res = noFetcher.Handle(context.Background(), Job{ID: NumberID(3), SourceRef: "a.png", Operation: OpDetectCorners})
	assert.IsType(t, Failure{}, res)
}

func TestHandle_DetectCorners(t *testing.T) {
	cfg := testutil.DefaultDocument()
	d := newTestDispatcher(t, nil)

	res := d.Handle(context.Background(), Job{
		ID:        StringID("d"),
		Operation: OpDetectCorners,
		Data:      testutil.EncodePNG(t, testutil.GenerateDocument(cfg)),
	})
	det, ok := res.(Detected)
	require.True(t, ok, "got %T", res)
	require.Len(t, det.Points, 8)
	assert.Equal(t, 640, det.Width)
	assert.Equal(t, 480, det.Height)
	for i, want := range cfg.Corners {
		assert.InDelta(t, want.X, det.Points[i].X, 4, "corner %d x", i)
		assert.InDelta(t, want.Y, det.Points[i].Y, 4, "corner %d y", i)
	}
}

func TestHandle_DetectCornersOnBlankImage(t *testing.T) {
	d := newTestDispatcher(t, nil)
	res := d.Handle(context.Background(), Job{
		ID:        NumberID(7),
		Operation: OpDetectCorners,
		Data:      testutil.EncodePNG(t, testutil.Solid(200, 100, color.NRGBA{R: 128, G: 128, B: 128, A: 255})),
	})
	assert.Equal(t, Detected{
		ID:     NumberID(7),
		Points: geometry.FullFrame(200, 100).Points(),
		Width:  200,
		Height: 100,
	}, res)
}

func TestHandle_WarpAuto(t *testing.T) {
	src := testutil.GenerateDocument(testutil.DefaultDocument())
	d := newTestDispatcher(t, nil)

	res := d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpWarpAuto, Data: testutil.EncodePNG(t, src)})
	out := decodeBlob(t, res)
	size := out.Bounds().Size()
	assert.InDelta(t, 430, size.X, 12)
	assert.InDelta(t, 323, size.Y, 12)

	// Chaining: the rectified blob is a valid input for the next job.
	res = d.Handle(context.Background(), Job{ID: NumberID(2), Operation: OpGrayscale, Data: res.(DoneImage).Blob})
	gray := decodeBlob(t, res)
	assert.Equal(t, size, gray.Bounds().Size())
}

func TestHandle_WarpAutoOnBlankImageKeepsFrame(t *testing.T) {
	d := newTestDispatcher(t, nil)
	res := d.Handle(context.Background(), Job{
		ID:        NumberID(1),
		Operation: OpWarpAuto,
		Data:      testutil.EncodePNG(t, testutil.Solid(120, 80, color.NRGBA{R: 200, G: 200, B: 200, A: 255})),
	})
	out := decodeBlob(t, res)
	assert.Equal(t, image.Pt(120, 80), out.Bounds().Size())
}

func TestHandle_SkipCleanup(t *testing.T) {
	src := testutil.GenerateDocument(testutil.DefaultDocument())
	var states []State
	d := NewDispatcher(Options{
		Vision:       vision.NewCapability(vision.Static(vision.NewNative())),
		SkipCleanup:  true,
		OnTransition: func(_ ID, _, to State) { states = append(states, to) },
	})
	res := d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpWarpAuto, Data: testutil.EncodePNG(t, src)})
	assert.Equal(t, TagDoneBlob, res.Tag())
	assert.NotContains(t, states, StateCleaningUp)
	assert.Contains(t, states, StateDetecting)
}

func TestHandle_PanicBecomesFailure(t *testing.T) {
	d := NewDispatcher(Options{
		Vision: vision.NewCapability(vision.Static(panickyBackend{vision.NewNative()})),
	})
	res := d.Handle(context.Background(), Job{
		ID:        StringID("p"),
		Operation: OpGrayscale,
		Data:      testutil.EncodePNG(t, testutil.Solid(4, 4, color.NRGBA{A: 255})),
	})
	require.IsType(t, Failure{}, res)
	assert.Contains(t, res.(Failure).Reason, "desaturate exploded")
	assert.Equal(t, StringID("p"), res.JobID())
}

func TestHandle_CapabilityRetriedAfterFailedLoad(t *testing.T) {
	calls := 0
	capability := vision.NewCapability(func(context.Context) (vision.Backend, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("library still downloading")
		}
		return vision.NewNative(), nil
	})
	d := NewDispatcher(Options{Vision: capability})
	data := testutil.EncodePNG(t, testutil.Solid(8, 8, color.NRGBA{R: 255, A: 255}))

	first := d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpGrayscale, Data: data})
	assert.Equal(t, TagDone, first.Tag())

	second := d.Handle(context.Background(), Job{ID: NumberID(2), Operation: OpGrayscale, Data: data})
	assert.Equal(t, TagDoneBlob, second.Tag())
	assert.Equal(t, 2, calls)

	third := d.Handle(context.Background(), Job{ID: NumberID(3), Operation: OpGrayscale, Data: data})
	assert.Equal(t, TagDoneBlob, third.Tag())
	assert.Equal(t, 2, calls, "a loaded capability is reused")
}

func TestHandle_Transitions(t *testing.T) {
	var got []State
	var finished []Result
	d := NewDispatcher(Options{
		Vision:       vision.NewCapability(vision.Static(vision.NewNative())),
		OnTransition: func(_ ID, _, to State) { got = append(got, to) },
		OnFinish:     func(_ Job, r Result, _ time.Duration) { finished = append(finished, r) },
	})
	data := testutil.EncodePNG(t, testutil.Solid(8, 8, color.NRGBA{G: 255, A: 255}))

	d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpGrayscale, Data: data})
	assert.Equal(t, []State{StateRouted, StateFetching, StateDesaturating, StateEncoding, StateCompleted}, got)

	got = nil
	d.Handle(context.Background(), Job{ID: NumberID(2), Operation: OpWarp, Data: data, Points: geometry.FullFrame(8, 8).Points()})
	assert.Equal(t, []State{StateRouted, StateFetching, StateRemapping, StateResampling, StateEncoding, StateCompleted}, got)

	got = nil
	d.Handle(context.Background(), Job{ID: NumberID(3), Operation: OpGrayscale, Data: []byte("junk")})
	assert.Equal(t, []State{StateRouted, StateFetching, StateFailed}, got)

	require.Len(t, finished, 3)
	assert.Equal(t, TagError, finished[2].Tag())
}

func TestHandle_WarpBeyondPixelLimitFails(t *testing.T) {
	d := newTestDispatcher(t, nil)
	src := testutil.EncodePNG(t, testutil.Solid(8, 8, color.NRGBA{A: 255}))
	edges := geometry.FlatEdges(
		geometry.Pt(0, 0), geometry.Pt(60000, 0),
		geometry.Pt(60000, 60000), geometry.Pt(0, 60000),
	)

	res := d.Handle(context.Background(), Job{ID: NumberID(9), Operation: OpWarp, Points: edges.Points(), Data: src})
	require.IsType(t, Failure{}, res)
	assert.Equal(t, NumberID(9), res.JobID())
	assert.Contains(t, res.(Failure).Reason, "pixel limit")
}

func TestHandle_SourceBeyondPixelLimitFails(t *testing.T) {
	d := NewDispatcher(Options{
		Vision:    vision.NewCapability(vision.Static(vision.NewNative())),
		MaxPixels: 100,
	})
	small := testutil.EncodePNG(t, testutil.Solid(10, 10, color.NRGBA{A: 255}))
	big := testutil.EncodePNG(t, testutil.Solid(11, 10, color.NRGBA{A: 255}))

	res := d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpGrayscale, Data: small})
	assert.IsType(t, DoneImage{}, res)

	res = d.Handle(context.Background(), Job{ID: NumberID(2), Operation: OpGrayscale, Data: big})
	require.IsType(t, Failure{}, res)
	assert.Contains(t, res.(Failure).Reason, "pixel limit")
}

func TestHandle_LargeWarp(t *testing.T) {
	if testing.Short() {
		t.Skip("large image warp skipped in short mode")
	}
	src := testutil.Solid(4000, 3000, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
	d := newTestDispatcher(t, nil)
	edges := geometry.FlatEdges(
		geometry.Pt(200, 150), geometry.Pt(3800, 100),
		geometry.Pt(3900, 2900), geometry.Pt(100, 2850),
	)
	res := d.Handle(context.Background(), Job{ID: NumberID(1), Operation: OpWarp, Points: edges.Points(), Data: testutil.EncodePNG(t, src)})
	out := decodeBlob(t, res)
	w, h := remap.TargetSize(edges)
	assert.Equal(t, image.Pt(w, h), out.Bounds().Size())
}
