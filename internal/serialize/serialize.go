// Package serialize converts the transpiled-module graph to and from an
// id-referenced plain record suitable for handing to an opaque blob store,
// per spec.md §4.6. Node identity is "path?query"; edges are serialized as
// arrays of ids and rewired by lookup on restore, skipping any id that is
// missing from the blob.
package serialize

import (
	"encoding/json"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

// NodeRecord is the serialized form of one TranspiledModule.
type NodeRecord struct {
	ID                        string                           `json:"id"`
	Module                    module.Module                    `json:"module"`
	Query                     string                           `json:"query"`
	Source                    *module.ModuleSource              `json:"source,omitempty"`
	Assets                    map[string]*module.ModuleSource   `json:"assets,omitempty"`
	EmittedAssets             []string                          `json:"emittedAssets,omitempty"`
	IsEntry                   bool                              `json:"isEntry"`
	Dependencies              []string                          `json:"dependencies,omitempty"`
	Initiators                []string                          `json:"initiators,omitempty"`
	TranspilationDependencies []string                          `json:"transpilationDependencies,omitempty"`
	TranspilationInitiators   []string                          `json:"transpilationInitiators,omitempty"`
	// AsyncDependencies holds the ids of the *resolved* targets only;
	// unresolved async dependencies are dropped on serialize and
	// rediscovered on the next transpile.
	AsyncDependencies []string `json:"asyncDependencies,omitempty"`
}

// Blob is the opaque, storage-facing record: a flat map keyed by node id.
type Blob struct {
	ByID map[string]NodeRecord `json:"byId"`
}

// Serialize walks nodes and produces a Blob. asyncResolved maps a node id
// to the ids of its async dependencies that have already resolved to a
// live edge; unresolved ones are intentionally omitted.
func Serialize(nodes []*module.TranspiledModule, asyncResolved map[string][]string) Blob {
	blob := Blob{ByID: make(map[string]NodeRecord, len(nodes))}
	for _, n := range nodes {
		id := n.Identity().String()
		record := NodeRecord{
			ID:            id,
			Module:        n.Module,
			Query:         n.Query,
			Source:        n.Source,
			Assets:        n.Assets,
			EmittedAssets: n.EmittedAssets,
			IsEntry:       n.IsEntry,
		}
		for _, d := range n.Dependencies() {
			record.Dependencies = append(record.Dependencies, d.Identity().String())
		}
		for _, i := range n.Initiators() {
			record.Initiators = append(record.Initiators, i.Identity().String())
		}
		for _, d := range n.TranspilationDependencies() {
			record.TranspilationDependencies = append(record.TranspilationDependencies, d.Identity().String())
		}
		for _, i := range n.TranspilationInitiators() {
			record.TranspilationInitiators = append(record.TranspilationInitiators, i.Identity().String())
		}
		record.AsyncDependencies = asyncResolved[id]
		blob.ByID[id] = record
	}
	return blob
}

// Marshal encodes a Blob as the opaque byte payload handed to storage.
func Marshal(b Blob) ([]byte, error) {
	return json.Marshal(b)
}

// Unmarshal decodes a previously-marshaled blob.
func Unmarshal(data []byte) (Blob, error) {
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return Blob{}, err
	}
	return b, nil
}

// Rebuild reconstructs TranspiledModule nodes and rewires the dependency,
// initiator and transpilation edge sets from a Blob; the AsyncDependencies
// ids of a record are not read back. It first creates an empty node for
// every id (so forward
// references resolve regardless of map iteration order), then populates
// fields and edges. Any edge target id missing from the blob is silently
// skipped, per spec.md §4.6.
func Rebuild(b Blob) map[string]*module.TranspiledModule {
	nodes := make(map[string]*module.TranspiledModule, len(b.ByID))
	for id, rec := range b.ByID {
		nodes[id] = module.New(rec.Module, rec.Query)
	}

	for id, rec := range b.ByID {
		n := nodes[id]
		n.Source = rec.Source
		n.IsEntry = rec.IsEntry
		if rec.Assets != nil {
			n.Assets = rec.Assets
		}
		n.EmittedAssets = rec.EmittedAssets

		for _, depID := range rec.Dependencies {
			if dep, ok := nodes[depID]; ok {
				n.AddDependency(dep)
			}
		}
		for _, initID := range rec.Initiators {
			if init, ok := nodes[initID]; ok {
				n.AddInitiator(init)
			}
		}
		for _, depID := range rec.TranspilationDependencies {
			if dep, ok := nodes[depID]; ok {
				n.AddTranspilationDependency(dep)
			}
		}
		for _, initID := range rec.TranspilationInitiators {
			if init, ok := nodes[initID]; ok {
				n.AddTranspilationInitiator(init)
			}
		}
	}

	return nodes
}
