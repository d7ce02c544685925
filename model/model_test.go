package model

import "testing"

func TestCanonicalNameCollapsesSeparators(t *testing.T) {
	cases := map[string]string{
		"Requests":      "requests",
		"re-quests":     "re_quests",
		"re_quests":     "re_quests",
		"re.quests":     "re_quests",
		"Re--Quests":    "re_quests",
		"  spaced  ":    "spaced",
		"MixedCase.Pkg": "mixedcase_pkg",
	}
	for in, want := range cases {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRequirementBasic(t *testing.T) {
	req := ParseRequirement("requests>=2.0.0; python_version>='3.8'")
	if req.Name != "requests" {
		t.Errorf("Name = %q", req.Name)
	}
	if req.Constraint != ">=2.0.0" {
		t.Errorf("Constraint = %q", req.Constraint)
	}
	if req.Marker != "python_version>='3.8'" {
		t.Errorf("Marker = %q", req.Marker)
	}
	if req.CanonicalName() != "requests" {
		t.Errorf("CanonicalName = %q", req.CanonicalName())
	}
}

func TestParseRequirementNoConstraintOrMarker(t *testing.T) {
	req := ParseRequirement("six")
	if req.Name != "six" || req.Constraint != "" || req.Marker != "" {
		t.Errorf("got %+v", req)
	}
}

func TestExtractNameFallbackSplit(t *testing.T) {
	cases := map[string]string{
		"requests>=2.0.0":           "requests",
		"six; python_version<'3'":  "six",
		"foo[extra]>=1.0":           "foo",
	}
	for in, want := range cases {
		if got := ExtractName(in); got != want {
			t.Errorf("ExtractName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArtifactValidDigest(t *testing.T) {
	valid := Artifact{SHA256: "e7ad6be65506cf4ca91a64b0a53b0dd9cf8d8c38783ca8ee65ae9ec8bbec5fa9"}
	if len(valid.SHA256) != 64 {
		t.Fatalf("fixture digest should be 64 hex chars, got %d", len(valid.SHA256))
	}
	if !valid.ValidDigest() {
		t.Errorf("expected valid digest to pass")
	}

	invalid := Artifact{SHA256: "not-a-digest"}
	if invalid.ValidDigest() {
		t.Errorf("expected invalid digest to fail")
	}
}

func TestDependencyGraphInsertAndComplete(t *testing.T) {
	g := NewDependencyGraph()
	g.Insert(&ResolutionNode{CanonicalName: "a", DisplayName: "a", Version: "1.0", Dependencies: []string{"b"}})

	if g.Complete() {
		t.Errorf("graph should be incomplete: 'b' is referenced but missing")
	}

	g.Insert(&ResolutionNode{CanonicalName: "b", DisplayName: "b", Version: "1.0"})
	if !g.Complete() {
		t.Errorf("graph should be complete once 'b' is inserted")
	}

	if n, ok := g.Get("a"); !ok || n.Version != "1.0" {
		t.Errorf("Get(a) = %+v, %v", n, ok)
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
	names := g.CanonicalNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("CanonicalNames() = %v", names)
	}
}

func TestDependencyGraphToleratesCycles(t *testing.T) {
	g := NewDependencyGraph()
	g.Insert(&ResolutionNode{CanonicalName: "a", Dependencies: []string{"b"}})
	g.Insert(&ResolutionNode{CanonicalName: "b", Dependencies: []string{"a"}})
	if !g.Complete() {
		t.Errorf("mutually-referencing nodes should still be 'complete'")
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
}
