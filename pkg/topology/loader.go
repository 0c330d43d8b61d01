package topology

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load parses and validates a topology document.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse topology document: %w", err)
	}

	if err := validateDocument(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// LoadFile parses and validates a topology document from a file path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open topology file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// LoadOverrides parses and validates an overrides document.
func LoadOverrides(r io.Reader) (*Overrides, error) {
	var ov Overrides
	if err := yaml.NewDecoder(r).Decode(&ov); err != nil {
		return nil, fmt.Errorf("failed to parse overrides document: %w", err)
	}

	for i := range ov.Prefixes {
		if err := validate.Struct(&ov.Prefixes[i]); err != nil {
			return nil, fmt.Errorf("invalid prefix entry %d: %w", i, err)
		}
	}

	return &ov, nil
}

// LoadOverridesFile parses and validates an overrides document from a file path.
func LoadOverridesFile(path string) (*Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open overrides file: %w", err)
	}
	defer f.Close()

	return LoadOverrides(f)
}

// validateDocument checks the structural fields the engine depends on.
// Node-level fields that overrides may still supply (kind, mgmt-ipv4) are
// checked later, at plan-build time.
func validateDocument(doc *Document) error {
	if doc.Topology.Nodes.Len() == 0 {
		return fmt.Errorf("topology document declares no nodes")
	}

	for _, name := range doc.Topology.Nodes.Names() {
		node, _ := doc.Topology.Nodes.Get(name)
		for i := range node.Interfaces {
			if err := validate.Struct(&node.Interfaces[i]); err != nil {
				return fmt.Errorf("node %q: invalid interface %d: %w", name, i, err)
			}
		}
	}

	return nil
}
