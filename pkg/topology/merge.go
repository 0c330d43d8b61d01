package topology

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// MergeWarning reports an overrides node key that has no counterpart in the
// primary topology. The key is skipped; the run continues.
type MergeWarning struct {
	NodeKey string
}

func (w MergeWarning) String() string {
	return fmt.Sprintf("override node %q not found in topology, skipped", w.NodeKey)
}

// Merge combines the primary topology with the overrides document into the
// effective document. For every node key in the overrides, the override
// fields are shallow-merged into the matching topology node (override wins on
// key collision, one level deep). Unmatched keys yield one warning each.
//
// Merge is pure: neither input is mutated, and merging the same overrides
// twice yields the same effective document as merging once.
func Merge(doc *Document, ov *Overrides) (*Document, []MergeWarning, error) {
	out := &Document{
		Name: doc.Name,
		Mgmt: doc.Mgmt,
	}
	out.Topology.Nodes = doc.Topology.Nodes.clone()

	if ov == nil || len(ov.Nodes) == 0 {
		return out, nil, nil
	}

	// Sorted so warning order does not depend on map iteration.
	keys := make([]string, 0, len(ov.Nodes))
	for k := range ov.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var warnings []MergeWarning
	for _, key := range keys {
		node, ok := out.Topology.Nodes.Get(key)
		if !ok {
			warnings = append(warnings, MergeWarning{NodeKey: key})
			continue
		}

		merged, err := mergeNode(node, ov.Nodes[key])
		if err != nil {
			return nil, warnings, fmt.Errorf("failed to merge overrides for node %q: %w", key, err)
		}
		out.Topology.Nodes.Set(key, merged)
	}

	return out, warnings, nil
}

// mergeNode applies override fields on top of a node one level deep. The node
// is round-tripped through its YAML mapping form so typed fields and inline
// extras are treated uniformly.
func mergeNode(node Node, overrides map[string]any) (Node, error) {
	raw, err := yaml.Marshal(&node)
	if err != nil {
		return Node{}, err
	}

	fields := make(map[string]any)
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return Node{}, err
	}

	for k, v := range overrides {
		fields[k] = v
	}

	merged, err := yaml.Marshal(fields)
	if err != nil {
		return Node{}, err
	}

	var out Node
	if err := yaml.Unmarshal(merged, &out); err != nil {
		return Node{}, err
	}
	return out, nil
}
