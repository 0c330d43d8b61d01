package engine

import (
	"fmt"
	"strings"
)

// GraphNode is one intent in the execution graph.
type GraphNode struct {
	ID           string
	Level        int
	Dependencies []string
	Dependents   []string
}

// GraphEdge is one dependency edge, from prerequisite to dependent.
type GraphEdge struct {
	From string
	To   string
}

// Graph is the validated execution graph of a plan.
type Graph struct {
	Nodes map[string]*GraphNode
	Edges []GraphEdge
	Roots []string
	Depth int
}

// DAGBuilder builds a directed acyclic graph from plan intents.
// It validates dependencies, detects cycles, and assigns depth levels.
type DAGBuilder struct {
	// intents maps intent IDs to their intents
	intents map[string]*Intent

	// adjacencyList maps intent IDs to their dependents
	adjacencyList map[string][]string

	// reverseAdjacencyList maps intent IDs to their dependencies
	reverseAdjacencyList map[string][]string

	// inDegree tracks the number of incoming edges for each node
	inDegree map[string]int

	// levels maps depth level to intent IDs at that level
	levels [][]string
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		intents:              make(map[string]*Intent),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
		levels:               make([][]string, 0),
	}
}

// BuildGraph constructs an execution graph from plan intents.
// It validates dependencies, detects cycles, and computes depth levels.
func (b *DAGBuilder) BuildGraph(intents []*Intent) (*Graph, error) {
	if len(intents) == 0 {
		return &Graph{
			Nodes: make(map[string]*GraphNode),
			Edges: make([]GraphEdge, 0),
			Roots: make([]string, 0),
		}, nil
	}

	if err := b.initialize(intents); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildGraph(), nil
}

// initialize sets up the internal data structures from plan intents.
func (b *DAGBuilder) initialize(intents []*Intent) error {
	// First pass: index all intents
	for _, intent := range intents {
		if intent.ID == "" {
			return NewContractError("plan intent has empty ID")
		}
		if _, exists := b.intents[intent.ID]; exists {
			return NewContractError("duplicate plan intent ID: %s", intent.ID)
		}

		b.intents[intent.ID] = intent
		b.adjacencyList[intent.ID] = make([]string, 0)
		b.reverseAdjacencyList[intent.ID] = make([]string, 0)
		b.inDegree[intent.ID] = 0
	}

	// Second pass: build adjacency lists and validate dependencies
	for _, intent := range intents {
		for _, dep := range intent.DependsOn {
			if _, exists := b.intents[dep]; !exists {
				return NewContractError("intent %s depends on non-existent intent %s", intent.ID, dep)
			}

			// Edge from dependency to dependent: the dependency must
			// complete before the dependent can start.
			b.adjacencyList[dep] = append(b.adjacencyList[dep], intent.ID)
			b.reverseAdjacencyList[intent.ID] = append(b.reverseAdjacencyList[intent.ID], dep)
			b.inDegree[intent.ID]++
		}
	}

	return nil
}

// detectCycles uses depth-first search to detect circular dependencies.
func (b *DAGBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	for id := range b.intents {
		if !visited[id] {
			if cycle := b.detectCyclesUtil(id, visited, recStack, path); cycle != nil {
				return NewContractError("circular dependency detected: %s", strings.Join(cycle, " -> "))
			}
		}
	}

	return nil
}

// detectCyclesUtil performs DFS to detect cycles in the dependency graph.
func (b *DAGBuilder) detectCyclesUtil(
	nodeID string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[nodeID] = true
	recStack[nodeID] = true
	path = append(path, nodeID)

	for _, dependent := range b.adjacencyList[nodeID] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			// Found a cycle, reconstruct its path
			cycleStart := -1
			for i, id := range path {
				if id == dependent {
					cycleStart = i
					break
				}
			}
			if cycleStart >= 0 {
				return append(path[cycleStart:], dependent)
			}
		}
	}

	recStack[nodeID] = false
	return nil
}

// computeLevels assigns depth levels to each intent using Kahn's algorithm.
func (b *DAGBuilder) computeLevels() error {
	inDegreeCopy := make(map[string]int)
	for id, degree := range b.inDegree {
		inDegreeCopy[id] = degree
	}

	currentLevel := make([]string, 0)
	for id, degree := range inDegreeCopy {
		if degree == 0 {
			currentLevel = append(currentLevel, id)
		}
	}

	if len(currentLevel) == 0 && len(b.intents) > 0 {
		return NewContractError("no root intents found, all intents have dependencies")
	}

	processedCount := 0
	for len(currentLevel) > 0 {
		b.levels = append(b.levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, nodeID := range currentLevel {
			for _, dependent := range b.adjacencyList[nodeID] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}

		currentLevel = nextLevel
	}

	// Should never trip once cycle detection passed.
	if processedCount != len(b.intents) {
		return NewContractError("failed to process all intents, possible cycle")
	}

	return nil
}

// buildGraph creates the final Graph structure.
func (b *DAGBuilder) buildGraph() *Graph {
	graph := &Graph{
		Nodes: make(map[string]*GraphNode),
		Edges: make([]GraphEdge, 0),
		Roots: make([]string, 0),
		Depth: len(b.levels),
	}

	for level, ids := range b.levels {
		for _, id := range ids {
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Level:        level,
				Dependencies: b.reverseAdjacencyList[id],
				Dependents:   b.adjacencyList[id],
			}
			if level == 0 {
				graph.Roots = append(graph.Roots, id)
			}
		}
	}

	for _, intent := range b.intents {
		for _, dep := range intent.DependsOn {
			graph.Edges = append(graph.Edges, GraphEdge{From: dep, To: intent.ID})
		}
	}

	return graph
}

// GetLevels returns the computed depth levels.
func (b *DAGBuilder) GetLevels() [][]string {
	return b.levels
}

// ToDOT generates a DOT format representation of the DAG for visualization.
// The output can be rendered with Graphviz tools.
func (b *DAGBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph SyncPlan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, id := range ids {
			intent := b.intents[id]
			label := fmt.Sprintf("%s\\n%s %s", id, intent.Method, intent.Path)
			color := getMethodColor(intent.Method)

			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				id, label, color))
		}

		sb.WriteString("  }\n\n")
	}

	for _, intent := range b.intents {
		for _, dep := range intent.DependsOn {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", dep, intent.ID))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// getMethodColor returns a color for visualizing call methods.
func getMethodColor(method string) string {
	switch strings.ToUpper(method) {
	case "POST":
		return "lightgreen"
	case "PATCH", "PUT":
		return "lightblue"
	case "DELETE":
		return "lightcoral"
	default:
		return "white"
	}
}
