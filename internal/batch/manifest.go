// Package batch runs many jobs from a YAML manifest or a set of files and
// writes their outputs to a directory.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/scanwarp/internal/export"
	"github.com/MeKo-Tech/scanwarp/internal/geometry"
	"github.com/MeKo-Tech/scanwarp/internal/job"
)

// Manifest lists the jobs of one batch.
type Manifest struct {
	OutputDir string `yaml:"output_dir,omitempty"`
	// Operation applies to entries that name none.
	Operation       string  `yaml:"operation,omitempty"`
	ContinueOnError *bool   `yaml:"continue_on_error,omitempty"`
	Entries         []Entry `yaml:"jobs"`

	// baseDir resolves relative sources.
	baseDir string
}

// Entry is one manifest job. A PDF source expands to one job per
// embedded page image.
type Entry struct {
	ID        string           `yaml:"id,omitempty"`
	Source    string           `yaml:"source"`
	Name      string           `yaml:"name,omitempty"`
	Operation string           `yaml:"operation,omitempty"`
	Points    []geometry.Point `yaml:"points,omitempty"`
	Pages     string           `yaml:"pages,omitempty"`
}

// ParseManifest decodes a YAML manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads the manifest at path. Relative sources resolve
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path comes from the user
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.baseDir = filepath.Dir(path)
	return m, nil
}

// Validate reports missing sources and duplicate ids.
func (m *Manifest) Validate() error {
	if len(m.Entries) == 0 {
		return errors.New("manifest has no jobs")
	}
	seen := make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		if strings.TrimSpace(e.Source) == "" {
			return fmt.Errorf("job %d: source is required", i+1)
		}
		if e.ID == "" {
			continue
		}
		if prev, dup := seen[e.ID]; dup {
			return fmt.Errorf("job %d: id %q already used by job %d", i+1, e.ID, prev)
		}
		seen[e.ID] = i + 1
	}
	return nil
}

// Jobs expands the manifest into jobs in manifest order.
func (m *Manifest) Jobs() ([]job.Job, error) {
	ids := newIDSet(m.Entries)
	var jobs []job.Job
	for _, e := range m.Entries {
		rawOp := e.Operation
		if rawOp == "" {
			rawOp = m.Operation
		}
		op, _ := job.ParseOperation(rawOp)
		id := e.ID
		if id == "" {
			id = ids.derive(e.Source)
		}
		name := e.Name
		if name == "" {
			name = id
		}
		ref := m.resolve(e.Source)

		if isLocal(ref) && strings.EqualFold(filepath.Ext(ref), ".pdf") {
			pages, err := export.ExtractPages(ref, e.Pages)
			if err != nil {
				return nil, fmt.Errorf("job %q: %w", id, err)
			}
			for _, p := range pages {
				pageID := id + "-p" + strconv.Itoa(p.Number)
				if p.Index > 0 {
					pageID += "-" + strconv.Itoa(p.Index)
				}
				jobs = append(jobs, job.Job{
					ID:           job.StringID(pageID),
					SourceRef:    ref,
					Name:         pageID,
					Operation:    op,
					RawOperation: rawOp,
					Points:       e.Points,
					Data:         p.Data,
				})
			}
			continue
		}

		jobs = append(jobs, job.Job{
			ID:           job.StringID(id),
			SourceRef:    ref,
			Name:         name,
			Operation:    op,
			RawOperation: rawOp,
			Points:       e.Points,
		})
	}
	return jobs, nil
}

// resolve makes relative local paths relative to the manifest.
func (m *Manifest) resolve(src string) string {
	src = strings.TrimSpace(src)
	if m.baseDir == "" || !isLocal(src) || filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(m.baseDir, src)
}

// isLocal reports whether ref is a plain file path.
func isLocal(ref string) bool {
	return !strings.Contains(ref, "://") && !strings.HasPrefix(ref, "data:")
}

// idSet hands out ids derived from source names, unique within a manifest.
type idSet struct {
	used map[string]bool
}

func newIDSet(entries []Entry) *idSet {
	s := &idSet{used: map[string]bool{}}
	for _, e := range entries {
		if e.ID != "" {
			s.used[e.ID] = true
		}
	}
	return s
}

func (s *idSet) derive(src string) string {
	base := src
	if i := strings.IndexAny(base, "?#"); i >= 0 && !strings.HasPrefix(base, "data:") {
		base = base[:i]
	}
	base = filepath.Base(base)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || strings.HasPrefix(src, "data:") {
		base = "job"
	}
	id := base
	for n := 2; s.used[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	s.used[id] = true
	return id
}
