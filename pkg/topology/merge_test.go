package topology

import (
	"reflect"
	"strings"
	"testing"
)

const twoNodeTopology = `
name: lab
mgmt:
  ipv4-subnet: 172.20.20.0/24
topology:
  nodes:
    ceos-01:
      kind: ceos
      mgmt-ipv4: 172.20.20.11
      interfaces:
        - name: Ethernet1
          ipv4: 10.0.0.1/31
          role: p2p
    ceos-02:
      kind: ceos
      mgmt-ipv4: 172.20.20.12
      interfaces:
        - name: Ethernet1
          ipv4: 10.0.0.2/31
`

const overridesDoc = `
nodes:
  ceos-01:
    kind: srl
    group: leaf
prefixes:
  - prefix: 10.0.0.0/24
    name: p2p-links
`

func loadFixture(t *testing.T) (*Document, *Overrides) {
	t.Helper()

	doc, err := Load(strings.NewReader(twoNodeTopology))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ov, err := LoadOverrides(strings.NewReader(overridesDoc))
	if err != nil {
		t.Fatalf("LoadOverrides failed: %v", err)
	}

	return doc, ov
}

func TestMerge_OverrideWins(t *testing.T) {
	doc, ov := loadFixture(t)

	eff, warnings, err := Merge(doc, ov)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Expected no warnings, got %v", warnings)
	}

	node, ok := eff.Topology.Nodes.Get("ceos-01")
	if !ok {
		t.Fatal("ceos-01 missing from effective document")
	}
	if node.Kind != "srl" {
		t.Errorf("Expected override to win on kind, got %q", node.Kind)
	}
	if node.MgmtIPv4 != "172.20.20.11" {
		t.Errorf("Untouched field changed: mgmt-ipv4 = %q", node.MgmtIPv4)
	}
	if got := node.Extra["group"]; got != "leaf" {
		t.Errorf("Expected extra field group=leaf, got %v", got)
	}

	// Inputs must not be mutated.
	orig, _ := doc.Topology.Nodes.Get("ceos-01")
	if orig.Kind != "ceos" {
		t.Errorf("Merge mutated primary document: kind = %q", orig.Kind)
	}
}

func TestMerge_UnmatchedKeyWarns(t *testing.T) {
	doc, ov := loadFixture(t)
	ov.Nodes["ceos-99"] = map[string]any{"kind": "srl"}

	eff, warnings, err := Merge(doc, ov)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if len(warnings) != 1 {
		t.Fatalf("Expected exactly 1 warning, got %d", len(warnings))
	}
	if warnings[0].NodeKey != "ceos-99" {
		t.Errorf("Expected warning for ceos-99, got %q", warnings[0].NodeKey)
	}

	if !reflect.DeepEqual(eff.Topology.Nodes.Names(), doc.Topology.Nodes.Names()) {
		t.Errorf("Effective node set differs from primary: %v vs %v",
			eff.Topology.Nodes.Names(), doc.Topology.Nodes.Names())
	}
}

func TestMerge_Idempotent(t *testing.T) {
	doc, ov := loadFixture(t)

	once, _, err := Merge(doc, ov)
	if err != nil {
		t.Fatalf("first Merge failed: %v", err)
	}
	twice, _, err := Merge(once, ov)
	if err != nil {
		t.Fatalf("second Merge failed: %v", err)
	}

	if !reflect.DeepEqual(once, twice) {
		t.Error("Merging twice with the same overrides changed the effective document")
	}
}

func TestMerge_NilOverrides(t *testing.T) {
	doc, _ := loadFixture(t)

	eff, warnings, err := Merge(doc, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Expected no warnings, got %v", warnings)
	}
	if !reflect.DeepEqual(eff.Topology.Nodes.Names(), doc.Topology.Nodes.Names()) {
		t.Error("Effective node set differs from primary with nil overrides")
	}
}

func TestMerge_PreservesNodeOrder(t *testing.T) {
	doc, ov := loadFixture(t)

	eff, _, err := Merge(doc, ov)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	want := []string{"ceos-01", "ceos-02"}
	if got := eff.Topology.Nodes.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected node order %v, got %v", want, got)
	}
}
