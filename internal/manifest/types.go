package manifest

import "encoding/json"

// Manifest represents the versioning.json document published by a registry
// or built by an extension repository.
type Manifest struct {
	BuildTime  string         `json:"buildTime"`
	BuiltWith  BuiltWith      `json:"builtWith"`
	Repository RepositoryInfo `json:"repository"`
	Sources    []Extension    `json:"sources" validate:"dive"`
}

// BuiltWith records the toolchain the manifest was produced by.
type BuiltWith struct {
	Toolchain string `json:"toolchain"`
	Types     string `json:"types"`
}

// RepositoryInfo is descriptive metadata, copied through unmodified.
type RepositoryInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Extension is a single entry of a manifest's sources.
type Extension struct {
	ID            string       `json:"id" validate:"required"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Version       string       `json:"version"`
	Icon          string       `json:"icon"`
	Language      *string      `json:"language"`
	ContentRating string       `json:"contentRating"`
	Badges        []*Badge     `json:"badges"`
	Capabilities  Capabilities `json:"capabilities"`
	Developers    []*Developer `json:"developers"`
}

// Badge is a colored label shown next to an extension. Badge lists may
// contain nil holes, which encode as null.
type Badge struct {
	Label           string `json:"label"`
	TextColor       string `json:"textColor"`
	BackgroundColor string `json:"backgroundColor"`
}

// Developer credits an extension author.
type Developer struct {
	Name    string  `json:"name"`
	Website *string `json:"website"`
	GitHub  *string `json:"github"`
}

// MarshalJSON encodes a nil source list as an empty array.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest
	p := plain(m)
	if p.Sources == nil {
		p.Sources = []Extension{}
	}
	return json.Marshal(p)
}

// MarshalJSON encodes nil badge and developer lists as empty arrays.
func (e Extension) MarshalJSON() ([]byte, error) {
	type plain Extension
	p := plain(e)
	if p.Badges == nil {
		p.Badges = []*Badge{}
	}
	if p.Developers == nil {
		p.Developers = []*Developer{}
	}
	return json.Marshal(p)
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	out.Sources = CloneExtensions(m.Sources)
	return &out
}

// IndexOf returns the position of the first extension with the given id,
// or -1 if there is none.
func (m *Manifest) IndexOf(id string) int {
	return indexOf(m.Sources, id)
}

// CloneExtensions deep-copies an extension list.
func CloneExtensions(exts []Extension) []Extension {
	if exts == nil {
		return nil
	}
	out := make([]Extension, len(exts))
	for i, e := range exts {
		out[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of e.
func (e Extension) Clone() Extension {
	out := e
	out.Language = cloneString(e.Language)
	out.Capabilities = e.Capabilities.clone()
	if e.Badges != nil {
		out.Badges = make([]*Badge, len(e.Badges))
		for i, b := range e.Badges {
			if b != nil {
				cp := *b
				out.Badges[i] = &cp
			}
		}
	}
	if e.Developers != nil {
		out.Developers = make([]*Developer, len(e.Developers))
		for i, d := range e.Developers {
			if d != nil {
				cp := *d
				cp.Website = cloneString(d.Website)
				cp.GitHub = cloneString(d.GitHub)
				out.Developers[i] = &cp
			}
		}
	}
	return out
}

func indexOf(exts []Extension, id string) int {
	for i := range exts {
		if exts[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
