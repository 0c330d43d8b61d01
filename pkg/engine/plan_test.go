package engine

import (
	"strings"
	"testing"

	"github.com/clabsync/clabsync/pkg/nautobot"
	"github.com/clabsync/clabsync/pkg/topology"
)

const planTopology = `
name: demo-lab
mgmt:
  ipv4-subnet: 172.20.20.0/24
topology:
  nodes:
    ceos-01:
      kind: ceos
      mgmt-ipv4: 172.20.20.11/24
      interfaces:
        - name: Ethernet1
          ipv4: 10.0.0.1/31
          role: p2p
    ceos-02:
      kind: ceos
      mgmt-ipv4: 172.20.20.12/24
      interfaces:
        - name: Ethernet1
          ipv4: 10.0.0.2/31
          role: p2p
`

const planOverrides = `
prefixes:
  - prefix: 10.0.0.0/24
    name: p2p-links
`

func loadPlanFixture(t *testing.T) (*topology.Document, *topology.Overrides) {
	t.Helper()

	doc, err := topology.Load(strings.NewReader(planTopology))
	if err != nil {
		t.Fatalf("failed to load topology fixture: %v", err)
	}
	ov, err := topology.LoadOverrides(strings.NewReader(planOverrides))
	if err != nil {
		t.Fatalf("failed to load overrides fixture: %v", err)
	}
	return doc, ov
}

// nodeSteps returns the expected static (method, path) sequence for one node
// with a single declared interface.
func nodeSteps(node string) [][2]string {
	return [][2]string{
		{"POST", nautobot.EndpointDevices},
		{"POST", nautobot.EndpointIPAddresses},
		{"POST", nautobot.EndpointInterfaces},
		{"POST", nautobot.EndpointIPToInterface},
		{"POST", nautobot.EndpointIPAddresses},
		{"POST", nautobot.EndpointInterfaces},
		{"POST", nautobot.EndpointIPToInterface},
		{"PATCH", nautobot.EndpointDevices + "{device:" + node + "}/"},
	}
}

func TestBuildPlan_CanonicalOrder(t *testing.T) {
	doc, ov := loadPlanFixture(t)

	plan, err := BuildPlan(doc, ov, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	expected := [][2]string{
		{"POST", nautobot.EndpointRoles},
		{"POST", nautobot.EndpointManufacturers},
		{"POST", nautobot.EndpointDeviceTypes},
		{"POST", nautobot.EndpointLocationTypes},
		{"POST", nautobot.EndpointStatuses},
		{"POST", nautobot.EndpointStatuses},
		{"POST", nautobot.EndpointLocations},
		{"POST", nautobot.EndpointNamespaces},
		{"POST", nautobot.EndpointPrefixes},
		{"POST", nautobot.EndpointPrefixes},
	}
	expected = append(expected, nodeSteps("ceos-01")...)
	expected = append(expected, nodeSteps("ceos-02")...)

	steps := plan.Steps()
	if len(steps) != len(expected) {
		t.Fatalf("Expected %d steps, got %d", len(expected), len(steps))
	}
	for i, want := range expected {
		if steps[i].Method != want[0] || steps[i].Path != want[1] {
			t.Errorf("Step %d: expected %s %s, got %s %s",
				i+1, want[0], want[1], steps[i].Method, steps[i].Path)
		}
	}
}

func TestBuildPlan_ValidatesAsDAG(t *testing.T) {
	doc, ov := loadPlanFixture(t)

	plan, err := BuildPlan(doc, ov, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	if err := plan.Validate(); err != nil {
		t.Errorf("Expected a valid plan, got: %v", err)
	}

	graph, err := plan.Graph()
	if err != nil {
		t.Fatalf("Graph failed: %v", err)
	}
	if len(graph.Nodes) != len(plan.Intents) {
		t.Errorf("Expected %d graph nodes, got %d", len(plan.Intents), len(graph.Nodes))
	}
}

func TestBuildPlan_PrimaryIPLastPerDevice(t *testing.T) {
	doc, ov := loadPlanFixture(t)

	plan, err := BuildPlan(doc, ov, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	lastForNode := make(map[string]int)
	patchForNode := make(map[string]int)
	for i, intent := range plan.Intents {
		for _, node := range []string{"ceos-01", "ceos-02"} {
			if strings.Contains(intent.ID, node) {
				lastForNode[node] = i
			}
		}
		if strings.HasPrefix(intent.ID, "primary-ip:") {
			patchForNode[strings.TrimPrefix(intent.ID, "primary-ip:")] = i
		}
	}

	for node, patchIdx := range patchForNode {
		if lastForNode[node] != patchIdx {
			t.Errorf("Node %s: primary address patch at %d is not its last step (%d)",
				node, patchIdx, lastForNode[node])
		}
	}
}

func TestBuildPlan_MissingMgmtSubnet(t *testing.T) {
	doc, ov := loadPlanFixture(t)
	doc.Mgmt.IPv4Subnet = ""

	_, err := BuildPlan(doc, ov, DefaultOptions())
	if err == nil {
		t.Fatal("Expected error for topology without a management subnet")
	}
	if !IsContract(err) {
		t.Errorf("Expected contract violation, got: %v", err)
	}
}

func TestBuildPlan_MissingNodeFields(t *testing.T) {
	cases := map[string]string{
		"no kind": `
name: demo
mgmt:
  ipv4-subnet: 172.20.20.0/24
topology:
  nodes:
    r1:
      mgmt-ipv4: 172.20.20.11/24
`,
		"no mgmt address": `
name: demo
mgmt:
  ipv4-subnet: 172.20.20.0/24
topology:
  nodes:
    r1:
      kind: ceos
`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := topology.Load(strings.NewReader(input))
			if err != nil {
				t.Fatalf("failed to load fixture: %v", err)
			}
			_, err = BuildPlan(doc, nil, DefaultOptions())
			if err == nil {
				t.Fatal("Expected error for incomplete node")
			}
			if !IsContract(err) {
				t.Errorf("Expected contract violation, got: %v", err)
			}
		})
	}
}

func TestBuildPlan_OverrideSuppliedFields(t *testing.T) {
	input := `
name: demo
mgmt:
  ipv4-subnet: 172.20.20.0/24
topology:
  nodes:
    r1:
      mgmt-ipv4: 172.20.20.11/24
`
	overrides := `
nodes:
  r1:
    kind: ceos
`
	doc, err := topology.Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	ov, err := topology.LoadOverrides(strings.NewReader(overrides))
	if err != nil {
		t.Fatalf("failed to load overrides: %v", err)
	}

	merged, warnings, err := topology.Merge(doc, ov)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Expected no merge warnings, got %v", warnings)
	}

	if _, err := BuildPlan(merged, ov, DefaultOptions()); err != nil {
		t.Errorf("Expected overrides to satisfy node contract, got: %v", err)
	}
}

func TestBuildPlan_NoOverrides(t *testing.T) {
	doc, _ := loadPlanFixture(t)

	plan, err := BuildPlan(doc, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	for _, intent := range plan.Intents {
		if intent.Kind == KindPrefix && intent.ID != "prefix:mgmt" {
			t.Errorf("Expected only the management prefix without overrides, got %s", intent.ID)
		}
	}
}

func TestPlan_ToDOT(t *testing.T) {
	doc, ov := loadPlanFixture(t)

	plan, err := BuildPlan(doc, ov, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	dot, err := plan.ToDOT()
	if err != nil {
		t.Fatalf("ToDOT failed: %v", err)
	}
	if !strings.Contains(dot, `"device:ceos-01" -> "primary-ip:ceos-01"`) {
		t.Errorf("Expected device to primary-ip edge in DOT output")
	}
}
