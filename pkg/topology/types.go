// Package topology models the two input documents of a lab synchronization
// run: the containerlab topology file and the extra-vars overrides file.
// It owns parsing, validation, and the merge that produces the effective
// topology consumed by the engine.
package topology

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the primary containerlab topology file.
type Document struct {
	// Name is the lab name, informational only.
	Name string `yaml:"name,omitempty"`

	// Mgmt describes the management network of the lab.
	Mgmt Mgmt `yaml:"mgmt,omitempty"`

	// Topology holds the node definitions.
	Topology Section `yaml:"topology"`
}

// Mgmt is the management network block of a topology file.
type Mgmt struct {
	// IPv4Subnet is the management prefix in CIDR notation.
	IPv4Subnet string `yaml:"ipv4-subnet,omitempty"`
}

// Section is the "topology" block of the document.
type Section struct {
	Nodes NodeMap `yaml:"nodes"`
}

// Node is one simulated network element.
type Node struct {
	// Kind is the containerlab node kind (e.g. "ceos").
	Kind string `yaml:"kind,omitempty"`

	// MgmtIPv4 is the node's management address.
	MgmtIPv4 string `yaml:"mgmt-ipv4,omitempty"`

	// Interfaces lists the node's data-plane interfaces.
	Interfaces []Interface `yaml:"interfaces,omitempty"`

	// Extra holds fields the engine does not interpret, including anything
	// contributed by the overrides document.
	Extra map[string]any `yaml:",inline"`
}

// Interface is one declared data interface of a node.
type Interface struct {
	Name string `yaml:"name" validate:"required"`
	IPv4 string `yaml:"ipv4" validate:"required"`
	Role string `yaml:"role,omitempty"`
}

// Overrides is the extra-vars document: per-node field overrides plus the
// prefix declarations to mirror into the inventory.
type Overrides struct {
	Nodes    map[string]map[string]any `yaml:"nodes,omitempty"`
	Prefixes []PrefixEntry             `yaml:"prefixes,omitempty"`
}

// PrefixEntry declares one IPAM prefix.
type PrefixEntry struct {
	Prefix string `yaml:"prefix" validate:"required,cidr"`
	Name   string `yaml:"name" validate:"required"`
}

// NodeMap is an ordered node mapping. YAML mapping order is preserved so the
// resource plan derived from the document is deterministic.
type NodeMap struct {
	names []string
	nodes map[string]Node
}

// UnmarshalYAML decodes a YAML mapping while recording key order.
func (m *NodeMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("topology nodes: expected a mapping, got %s", value.Tag)
	}

	m.names = make([]string, 0, len(value.Content)/2)
	m.nodes = make(map[string]Node, len(value.Content)/2)

	for i := 0; i+1 < len(value.Content); i += 2 {
		var name string
		if err := value.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("topology nodes: invalid node key: %w", err)
		}
		if _, exists := m.nodes[name]; exists {
			return fmt.Errorf("topology nodes: duplicate node %q", name)
		}

		var node Node
		if err := value.Content[i+1].Decode(&node); err != nil {
			return fmt.Errorf("topology nodes: node %q: %w", name, err)
		}

		m.names = append(m.names, name)
		m.nodes[name] = node
	}

	return nil
}

// MarshalYAML encodes the mapping in its recorded order.
func (m NodeMap) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range m.names {
		var key, val yaml.Node
		if err := key.Encode(name); err != nil {
			return nil, err
		}
		node := m.nodes[name]
		if err := val.Encode(&node); err != nil {
			return nil, err
		}
		out.Content = append(out.Content, &key, &val)
	}
	return out, nil
}

// Names returns the node names in document order.
func (m NodeMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Get returns the named node.
func (m NodeMap) Get(name string) (Node, bool) {
	n, ok := m.nodes[name]
	return n, ok
}

// Set inserts or replaces a node, appending new names at the end.
func (m *NodeMap) Set(name string, node Node) {
	if m.nodes == nil {
		m.nodes = make(map[string]Node)
	}
	if _, exists := m.nodes[name]; !exists {
		m.names = append(m.names, name)
	}
	m.nodes[name] = node
}

// Len returns the number of nodes.
func (m NodeMap) Len() int {
	return len(m.names)
}

// clone returns a shallow copy sharing node values but not the index.
func (m NodeMap) clone() NodeMap {
	out := NodeMap{
		names: make([]string, len(m.names)),
		nodes: make(map[string]Node, len(m.nodes)),
	}
	copy(out.names, m.names)
	for k, v := range m.nodes {
		out.nodes[k] = v
	}
	return out
}
