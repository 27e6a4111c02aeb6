// Package deps loads dependency manifests and decides which resolved
// dependencies belong in a license report.
package deps

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Coordinate identifies a single resolved artifact.
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
}

// ParseCoordinate parses a "group:artifact:version" triple.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want group:artifact:version", s)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty component", s)
		}
	}
	return Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}, nil
}

func (c Coordinate) String() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// Name is the group:artifact pair without the version.
func (c Coordinate) Name() string {
	return c.Group + ":" + c.Artifact
}

// Mapping renames dependencies whose artifact matches a pattern, so that a
// family of artifacts can share one license file.
type Mapping struct {
	Pattern string `yaml:"pattern"`
	Name    string `yaml:"name"`

	re *regexp.Regexp
}

// Manifest describes the resolved dependency sets of a build, as produced
// by the build tool plugins.
type Manifest struct {
	Project        string
	InternalGroups []string
	Runtime        []Coordinate
	CompileOnly    []Coordinate
	Mappings       []Mapping
}

type manifestYAML struct {
	Project        string    `yaml:"project"`
	InternalGroups []string  `yaml:"internal_groups"`
	Runtime        []string  `yaml:"runtime"`
	CompileOnly    []string  `yaml:"compile_only"`
	Mappings       []Mapping `yaml:"mappings"`
}

// ParseManifest parses manifest YAML and compiles its mapping patterns.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw manifestYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	m := &Manifest{
		Project:        raw.Project,
		InternalGroups: raw.InternalGroups,
		Mappings:       raw.Mappings,
	}
	for _, s := range raw.Runtime {
		c, err := ParseCoordinate(s)
		if err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
		m.Runtime = append(m.Runtime, c)
	}
	for _, s := range raw.CompileOnly {
		c, err := ParseCoordinate(s)
		if err != nil {
			return nil, fmt.Errorf("compile_only: %w", err)
		}
		m.CompileOnly = append(m.CompileOnly, c)
	}
	for i := range m.Mappings {
		re, err := regexp.Compile(m.Mappings[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("mapping pattern %q: %w", m.Mappings[i].Pattern, err)
		}
		m.Mappings[i].re = re
	}
	return m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// IsInternal reports whether the coordinate belongs to one of the project's
// own groups. Marker matching is by substring, so "org.example" covers
// "org.example.plugin" as well.
func (m *Manifest) IsInternal(c Coordinate) bool {
	for _, g := range m.InternalGroups {
		if strings.Contains(c.Group, g) {
			return true
		}
	}
	return false
}

// Included returns the runtime dependencies that belong in the report:
// everything except compile-only artifacts and the project's own modules.
// Order follows the manifest.
func (m *Manifest) Included() []Coordinate {
	compileOnly := make(map[Coordinate]bool, len(m.CompileOnly))
	for _, c := range m.CompileOnly {
		compileOnly[c] = true
	}

	var out []Coordinate
	for _, c := range m.Runtime {
		if compileOnly[c] || m.IsInternal(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// MappedName returns the reporting name for an artifact. The first mapping
// whose pattern matches wins; without a match the artifact keeps its name.
func (m *Manifest) MappedName(artifact string) string {
	for _, mp := range m.Mappings {
		if mp.re.MatchString(artifact) {
			return mp.Name
		}
	}
	return artifact
}

// RepositoryURL builds the canonical repository location of an artifact.
func RepositoryURL(base string, c Coordinate) string {
	base = strings.TrimSuffix(base, "/")
	return base + "/" + strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version
}
