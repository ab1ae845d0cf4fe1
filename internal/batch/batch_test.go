package batch

import (
	"context"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanwarp/internal/export"
	"github.com/MeKo-Tech/scanwarp/internal/job"
	"github.com/MeKo-Tech/scanwarp/internal/source"
	"github.com/MeKo-Tech/scanwarp/internal/testutil"
	"github.com/MeKo-Tech/scanwarp/internal/vision"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
output_dir: rectified
operation: warp_auto
jobs:
  - id: first
    source: a.jpg
  - source: https://example.test/scans/b.png?sig=1
    operation: detect_corners
  - source: sub/a.png
  - source: c.png
    operation: warp
    points:
      - {x: 0, y: 0}
      - {x: 10, y: 0}
      - {x: 10, y: 10}
      - {x: 0, y: 10}
      - {x: 5, y: 0}
      - {x: 10, y: 5}
      - {x: 5, y: 10}
      - {x: 0, y: 5}
`))
	require.NoError(t, err)
	assert.Equal(t, "rectified", m.OutputDir)

	jobs, err := m.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	assert.Equal(t, "first", jobs[0].ID.String())
	assert.Equal(t, job.OpWarpAuto, jobs[0].Operation)

	assert.Equal(t, "b", jobs[1].ID.String())
	assert.Equal(t, job.OpDetectCorners, jobs[1].Operation)
	assert.Equal(t, "https://example.test/scans/b.png?sig=1", jobs[1].SourceRef)

	assert.Equal(t, "a", jobs[2].ID.String())
	assert.Equal(t, "a", jobs[2].Name)

	assert.Equal(t, job.OpWarp, jobs[3].Operation)
	assert.Len(t, jobs[3].Points, 8)
}

func TestDerivedIDsAreUnique(t *testing.T) {
	m := &Manifest{Entries: []Entry{
		{Source: "x/page.png"},
		{Source: "y/page.png"},
		{ID: "page-2", Source: "z.png"},
		{Source: "data:image/png;base64,AAAA"},
	}}
	jobs, err := m.Jobs()
	require.NoError(t, err)
	ids := []string{jobs[0].ID.String(), jobs[1].ID.String(), jobs[2].ID.String(), jobs[3].ID.String()}
	assert.Equal(t, []string{"page", "page-3", "page-2", "job"}, ids)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":        "jobs: []\n",
		"no source":    "jobs:\n  - id: a\n",
		"duplicate id": "jobs:\n  - {id: a, source: x.png}\n  - {id: a, source: y.png}\n",
		"unknown key":  "jobs:\n  - {source: x.png, colour: red}\n",
		"not yaml":     "jobs: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest_ResolvesRelativeSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - source: scans/a.png\n  - source: /abs/b.png\n"), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	jobs, err := m.Jobs()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scans", "a.png"), jobs[0].SourceRef)
	assert.Equal(t, "/abs/b.png", jobs[1].SourceRef)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestManifest_PDFSourceExpandsToPages(t *testing.T) {
	dir := t.TempDir()
	var pages []string
	for i, name := range []string{"one.png", "two.png"} {
		pages = append(pages, testutil.WritePNG(t, dir, name, testutil.Solid(30+i, 20, color.NRGBA{R: 200, A: 255})))
	}
	pdf := filepath.Join(dir, "scan.pdf")
	require.NoError(t, export.WritePDF(pages, pdf))

	m := &Manifest{Operation: "grayscale", Entries: []Entry{{ID: "contract", Source: pdf}}}
	jobs, err := m.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "contract-p1", jobs[0].ID.String())
	assert.Equal(t, "contract-p2", jobs[1].ID.String())
	assert.NotEmpty(t, jobs[0].Data)
	assert.Equal(t, job.OpGrayscale, jobs[1].Operation)
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.JPG", "notes.txt", "skip.png", "doc.pdf", "nested/c.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	files, err := DiscoverFiles([]string{dir}, false, nil, []string{"skip.*"})
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.ElementsMatch(t, []string{"a.png", "b.JPG", "doc.pdf"}, names)

	files, err = DiscoverFiles([]string{dir}, true, []string{"*.png"}, nil)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = DiscoverFiles([]string{filepath.Join(dir, "nope")}, false, nil, nil)
	assert.Error(t, err)

	m := ManifestFromFiles(files, "warp_auto")
	assert.Len(t, m.Entries, 3)
	assert.Equal(t, "warp_auto", m.Operation)
}

func newPool(t *testing.T) *worker.Pool {
	t.Helper()
	fetcher := source.New(source.DefaultConfig(), nil)
	p := worker.New(worker.Config{Workers: 2}, func(int) worker.Handler {
		return job.NewDispatcher(job.Options{
			Vision:  vision.NewCapability(vision.Static(vision.NewNative())),
			Fetcher: fetcher,
		})
	})
	t.Cleanup(p.Close)
	return p
}

func TestRunner(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	doc := testutil.WritePNG(t, in, "doc.png", testutil.GenerateDocument(testutil.DefaultDocument()))

	jobs := []job.Job{
		{ID: job.StringID("warped"), Name: "warped", SourceRef: doc, Operation: job.OpWarpAuto},
		{ID: job.StringID("corners"), SourceRef: doc, Operation: job.OpDetectCorners},
		{ID: job.StringID("same"), SourceRef: doc, Operation: job.OpPassthrough},
		{ID: job.StringID("missing"), SourceRef: filepath.Join(in, "missing.png"), Operation: job.OpGrayscale},
	}

	r := NewRunner(newPool(t), Options{OutputDir: out, ContinueOnError: true})
	summary, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Images)
	assert.Equal(t, 1, summary.Detected)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Failed)

	for i, j := range jobs {
		assert.Equal(t, j.ID, summary.Outcomes[i].ID, "outcomes keep submission order")
	}
	assert.Equal(t, []string{filepath.Join(out, "warped.png")}, summary.ImageOutputs())
	assert.True(t, testutil.FileExists(filepath.Join(out, "warped.png")))

	raw, err := os.ReadFile(filepath.Join(out, "corners.json"))
	require.NoError(t, err)
	var det job.Response
	require.NoError(t, json.Unmarshal(raw, &det))
	assert.Equal(t, job.TagDetected, det.Tag)
	assert.Len(t, det.Points, 8)

	report := filepath.Join(out, "report.json")
	require.NoError(t, summary.WriteReport(report))
	assert.True(t, testutil.FileExists(report))
}

func TestRunner_StopsOnError(t *testing.T) {
	out := t.TempDir()
	jobs := []job.Job{{ID: job.StringID("bad"), SourceRef: filepath.Join(out, "missing.png"), Operation: job.OpGrayscale}}

	summary, err := NewRunner(newPool(t), Options{OutputDir: out}).Run(context.Background(), jobs)
	require.Error(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Outcomes[0].Reason, "missing.png")
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "page_1", fileStem(job.StringID("x"), "page 1"))
	assert.Equal(t, "42", fileStem(job.NumberID(42), ""))
	assert.Equal(t, "a_b", fileStem(job.StringID("a/b"), ""))
	assert.Equal(t, "job", fileStem(job.StringID(".."), ""))
}
