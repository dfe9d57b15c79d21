package graph

import (
	graphlib "github.com/dominikbraun/graph"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

// ExportDependencyGraph walks the dependency edges reachable from entry and
// builds a directed graphlib.Graph keyed by each node's identity string,
// the way LegacyCodeHQ-sanity's depgraph package builds a project-wide
// import graph for its language resolvers to finalize. Manager.UpdateData
// calls this per entry node to compute the reachable set its garbage
// collection keeps; a deployment can also run graphlib.TopologicalSort or
// a cycle report against the result for debugging/visualization.
func ExportDependencyGraph(entry *module.TranspiledModule) (graphlib.Graph[string, string], error) {
	g := graphlib.New(graphlib.StringHash, graphlib.Directed())

	visited := make(map[string]bool)
	var walk func(node *module.TranspiledModule) error
	walk = func(node *module.TranspiledModule) error {
		id := node.Identity().String()
		if visited[id] {
			return nil
		}
		visited[id] = true
		if err := g.AddVertex(id); err != nil && err != graphlib.ErrVertexAlreadyExists {
			return err
		}
		for _, dep := range node.Dependencies() {
			depID := dep.Identity().String()
			if err := walk(dep); err != nil {
				return err
			}
			if err := g.AddEdge(id, depID); err != nil && err != graphlib.ErrEdgeAlreadyExists {
				return err
			}
		}
		return nil
	}

	if err := walk(entry); err != nil {
		return nil, err
	}
	return g, nil
}
