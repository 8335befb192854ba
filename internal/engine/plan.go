package engine

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/bianoble/registry-manager/internal/manifest"
	"github.com/bianoble/registry-manager/internal/sandbox"
	"github.com/bianoble/registry-manager/internal/source"
)

const (
	// VersioningGroup names the plan entry holding the manifest itself.
	VersioningGroup = "Versioning"

	// VersioningPath is where the manifest lives in both repositories.
	VersioningPath = "versioning.json"
)

// PlanEntry groups the files of one extension, or of the manifest.
// Content is transport-encoded (base64).
type PlanEntry struct {
	Group string
	Files map[string]string
}

// Plan is the ordered set of files to place into the new tree.
type Plan struct {
	Entries   []PlanEntry
	finalized bool
}

// BuildPlan returns a plan with one empty entry per changed extension, in
// the given order.
func BuildPlan(changedIDs []string) *Plan {
	p := &Plan{Entries: make([]PlanEntry, 0, len(changedIDs)+1)}
	for _, id := range changedIDs {
		p.Entries = append(p.Entries, PlanEntry{Group: id, Files: make(map[string]string)})
	}
	return p
}

// Add records a fetched file under group.
func (p *Plan) Add(group, path, content string) error {
	if p.finalized {
		return ErrPlanFinalized
	}
	if err := sandbox.CheckTreePath(path); err != nil {
		return fmt.Errorf("extension '%s': %w", group, err)
	}
	for i := range p.Entries {
		if p.Entries[i].Group == group {
			p.Entries[i].Files[path] = content
			return nil
		}
	}
	return fmt.Errorf("plan has no entry for '%s'", group)
}

// Finalize appends the Versioning entry holding the encoded manifest. It
// must be called after every extension has been populated, so that the
// manifest entry is always last. On failure the plan is left untouched.
func (p *Plan) Finalize(m *manifest.Manifest) error {
	if p.finalized {
		return ErrPlanFinalized
	}

	encoded, err := manifest.Encode(m)
	if err != nil {
		return fmt.Errorf("encoding registry manifest: %w", err)
	}

	p.Entries = append(p.Entries, PlanEntry{
		Group: VersioningGroup,
		Files: map[string]string{VersioningPath: encoded},
	})
	p.finalized = true
	return nil
}

// Finalized reports whether the manifest entry has been appended.
func (p *Plan) Finalized() bool { return p.finalized }

// Files returns the total number of files in the plan.
func (p *Plan) Files() int {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Files)
	}
	return n
}

// TreeEntries flattens the plan into tree entries, in entry order and with
// paths sorted within an entry. Content is decoded to raw bytes.
func (p *Plan) TreeEntries() ([]source.TreeEntry, error) {
	out := make([]source.TreeEntry, 0, p.Files())
	for _, e := range p.Entries {
		paths := make([]string, 0, len(e.Files))
		for path := range e.Files {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			raw, err := decodeContent(e.Files[path])
			if err != nil {
				return nil, fmt.Errorf("%w: content of %s: %w", manifest.ErrDecode, path, err)
			}
			out = append(out, source.TreeEntry{
				Path:    path,
				Mode:    source.ModeFile,
				Type:    source.TypeBlob,
				Content: raw,
			})
		}
	}
	return out, nil
}

func decodeContent(content string) ([]byte, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)
	return base64.StdEncoding.DecodeString(cleaned)
}
