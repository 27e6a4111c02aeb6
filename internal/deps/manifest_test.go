package deps

import (
	"testing"
)

const sampleManifest = `
project: search-engine
internal_groups:
  - org.example
runtime:
  - org.apache.lucene:lucene-core:9.9.1
  - org.apache.lucene:lucene-analysis-common:9.9.1
  - com.fasterxml.jackson.core:jackson-core:2.15.0
  - com.google.code.findbugs:jsr305:3.0.2
  - org.example.plugin:analysis-icu:1.0.0
compile_only:
  - com.google.code.findbugs:jsr305:3.0.2
mappings:
  - pattern: "lucene-.*"
    name: lucene
  - pattern: "jackson-.*"
    name: jackson
`

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("org.apache.lucene:lucene-core:9.9.1")
	if err != nil {
		t.Fatalf("ParseCoordinate: %v", err)
	}
	if c.Group != "org.apache.lucene" || c.Artifact != "lucene-core" || c.Version != "9.9.1" {
		t.Errorf("unexpected coordinate: %+v", c)
	}
	if c.String() != "org.apache.lucene:lucene-core:9.9.1" {
		t.Errorf("String() = %q", c.String())
	}
	if c.Name() != "org.apache.lucene:lucene-core" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestParseCoordinateInvalid(t *testing.T) {
	for _, s := range []string{"", "a:b", "a:b:c:d", "a::c", ":b:c"} {
		if _, err := ParseCoordinate(s); err == nil {
			t.Errorf("ParseCoordinate(%q): expected error", s)
		}
	}
}

func TestIncluded(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}

	got := m.Included()
	want := []string{
		"org.apache.lucene:lucene-core:9.9.1",
		"org.apache.lucene:lucene-analysis-common:9.9.1",
		"com.fasterxml.jackson.core:jackson-core:2.15.0",
	}
	if len(got) != len(want) {
		t.Fatalf("Included() returned %d coordinates, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.String() != want[i] {
			t.Errorf("Included()[%d] = %q, want %q", i, c.String(), want[i])
		}
	}
}

func TestIncludedExcludesCompileOnly(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	for _, c := range m.Included() {
		if c.Artifact == "jsr305" {
			t.Errorf("compile-only dependency %s must not be included", c)
		}
	}
}

func TestIncludedExcludesInternalGroups(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	for _, c := range m.Included() {
		if c.Group == "org.example.plugin" {
			t.Errorf("internal dependency %s must not be included", c)
		}
	}
}

func TestIsInternalSubstring(t *testing.T) {
	m := &Manifest{InternalGroups: []string{"org.example"}}
	cases := map[Coordinate]bool{
		{Group: "org.example", Artifact: "core", Version: "1"}:       true,
		{Group: "org.example.plugin", Artifact: "icu", Version: "1"}: true,
		{Group: "com.example", Artifact: "lib", Version: "1"}:        false,
		{Group: "org.apache.lucene", Artifact: "core", Version: "1"}: false,
	}
	for c, want := range cases {
		if got := m.IsInternal(c); got != want {
			t.Errorf("IsInternal(%s) = %v, want %v", c, got, want)
		}
	}
}

func TestMappedName(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	cases := map[string]string{
		"lucene-core":            "lucene",
		"lucene-analysis-common": "lucene",
		"jackson-core":           "jackson",
		"jsr305":                 "jsr305",
	}
	for artifact, want := range cases {
		if got := m.MappedName(artifact); got != want {
			t.Errorf("MappedName(%q) = %q, want %q", artifact, got, want)
		}
	}
}

func TestMappedNameFirstMatchWins(t *testing.T) {
	m, err := ParseManifest([]byte(`
mappings:
  - pattern: "lucene-core"
    name: core
  - pattern: "lucene-.*"
    name: lucene
`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if got := m.MappedName("lucene-core"); got != "core" {
		t.Errorf("MappedName = %q, want %q", got, "core")
	}
}

func TestParseManifestBadPattern(t *testing.T) {
	_, err := ParseManifest([]byte(`
mappings:
  - pattern: "["
    name: broken
`))
	if err == nil {
		t.Fatal("expected error for invalid mapping pattern")
	}
}

func TestRepositoryURL(t *testing.T) {
	c := Coordinate{Group: "org.apache.lucene", Artifact: "lucene-core", Version: "9.9.1"}
	got := RepositoryURL("https://repo1.maven.org/maven2", c)
	want := "https://repo1.maven.org/maven2/org/apache/lucene/lucene-core/9.9.1"
	if got != want {
		t.Errorf("RepositoryURL = %q, want %q", got, want)
	}

	// Trailing slash on the base must not double up.
	if got := RepositoryURL("https://repo1.maven.org/maven2/", c); got != want {
		t.Errorf("RepositoryURL with trailing slash = %q, want %q", got, want)
	}
}
