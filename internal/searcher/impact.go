package searcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// defaultImpactDepth bounds analyze_impact's transitive closure when
// the caller doesn't specify one.
const defaultImpactDepth = 5

// ImpactedChunk is one node in analyze_impact's transitive closure,
// carrying the edge kind and depth it was reached at so a caller can
// distinguish a direct caller from a transitive one.
type ImpactedChunk struct {
	ChunkID string
	Name    string
	Path    string
	Kind    types.RelationshipKind
	Depth   int
}

// AnalyzeImpact computes the transitive closure of called_by and
// imported_by edges reachable from symbol, up
// to maxDepth (defaultImpactDepth if <= 0), with cycle detection via a
// visited set so a call/import cycle terminates rather than looping.
//
// symbol is resolved to a seed chunk id first: if it already names a
// known chunk id it is used directly, otherwise the Vector Store's
// full-text index resolves it by name, preferring an exact Name match
// among the candidates over the top BM25 hit.
func (e *Engine) AnalyzeImpact(ctx context.Context, symbol string, maxDepth int) ([]ImpactedChunk, error) {
	if maxDepth <= 0 {
		maxDepth = defaultImpactDepth
	}

	seeds, err := e.resolveSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	visited := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		visited[s] = true
	}

	var out []ImpactedChunk
	frontier := seeds
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, kind := range []types.RelationshipKind{types.RelCalledBy, types.RelImportedBy} {
				k := kind
				edges, err := e.relationships.Outgoing(ctx, id, &k)
				if err != nil {
					return nil, fmt.Errorf("%w: outgoing %s edges for %s: %v", types.ErrStore, kind, id, err)
				}
				for _, edge := range edges {
					if visited[edge.TargetChunkID] {
						continue
					}
					visited[edge.TargetChunkID] = true
					next = append(next, edge.TargetChunkID)
					out = append(out, ImpactedChunk{
						ChunkID: edge.TargetChunkID,
						Kind:    edge.Kind,
						Depth:   depth,
					})
				}
			}
		}
		frontier = next
	}

	e.fillImpactMetadata(ctx, out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out, nil
}

// fillImpactMetadata fetches Name/Path for each impacted chunk so the
// caller doesn't have to make a second round trip.
func (e *Engine) fillImpactMetadata(ctx context.Context, impacted []ImpactedChunk) {
	if len(impacted) == 0 {
		return
	}
	ids := make([]string, len(impacted))
	for i, ic := range impacted {
		ids[i] = ic.ChunkID
	}
	chunks, err := e.vectors.Get(ctx, ids)
	if err != nil {
		return
	}
	byID := make(map[string]*types.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	for i := range impacted {
		if c, ok := byID[impacted[i].ChunkID]; ok {
			impacted[i].Name = c.Name
			impacted[i].Path = c.FilePath
		}
	}
}

// resolveSymbol maps a caller-supplied symbol to the chunk ids it
// names: a chunk id is used verbatim, otherwise the Vector Store's BM25
// text index finds candidates and every exact Name match among them is
// returned (falling back to the single top hit when none match
// exactly), the same best-effort resolution the calls/called_by
// derivation already accepts for the indexing-time symbol table.
func (e *Engine) resolveSymbol(ctx context.Context, symbol string) ([]string, error) {
	if direct, err := e.vectors.Get(ctx, []string{symbol}); err == nil && len(direct) == 1 {
		return []string{symbol}, nil
	}

	candidates, err := e.vectors.SearchText(ctx, symbol, 20, vectorstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("%w: resolve symbol %s: %v", types.ErrStore, symbol, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var exact []string
	for _, c := range candidates {
		if c.Metadata != nil && c.Metadata.Name == symbol {
			exact = append(exact, c.ID)
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}
	return []string{candidates[0].ID}, nil
}

// Cycle is one non-trivial strongly connected component of the import
// graph, as returned by CheckCircularDependencies.
type Cycle struct {
	Paths []string
}

// CheckCircularDependencies runs Tarjan's SCC over the project's
// import graph (file nodes connected by imports edges), returning
// every component with more than one member. This is built directly
// from the standard algorithm's textbook definition.
func (e *Engine) CheckCircularDependencies(ctx context.Context, paths []string) ([]Cycle, error) {
	nodeToPath := make(map[string]string, len(paths))
	for _, p := range paths {
		nodeToPath[types.DeriveID(p, 0, 0, types.KindFileChunk)] = p
	}

	adjacency := make(map[string][]string, len(nodeToPath))
	for node := range nodeToPath {
		edges, err := e.relationships.Outgoing(ctx, node, importsKindPtr())
		if err != nil {
			return nil, fmt.Errorf("%w: outgoing imports for %s: %v", types.ErrStore, node, err)
		}
		for _, edge := range edges {
			if _, known := nodeToPath[edge.TargetChunkID]; known {
				adjacency[node] = append(adjacency[node], edge.TargetChunkID)
			}
		}
	}

	t := &tarjan{
		adjacency: adjacency,
		index:     make(map[string]int),
		lowlink:   make(map[string]int),
		onStack:   make(map[string]bool),
	}
	nodes := make([]string, 0, len(nodeToPath))
	for node := range nodeToPath {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, seen := t.index[node]; !seen {
			t.strongConnect(node)
		}
	}

	var out []Cycle
	for _, comp := range t.components {
		if len(comp) <= 1 {
			continue
		}
		cyclePaths := make([]string, len(comp))
		for i, node := range comp {
			cyclePaths[i] = nodeToPath[node]
		}
		sort.Strings(cyclePaths)
		out = append(out, Cycle{Paths: cyclePaths})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Paths[0] < out[j].Paths[0]
	})
	return out, nil
}

func importsKindPtr() *types.RelationshipKind {
	k := types.RelImports
	return &k
}

// tarjan implements Tarjan's strongly-connected-components algorithm
// over an adjacency list keyed by node id, iteratively via an explicit
// stack rather than recursion so CheckCircularDependencies can run
// against project-sized import graphs without a deep call stack.
type tarjan struct {
	adjacency map[string][]string
	index     map[string]int
	lowlink   map[string]int
	onStack   map[string]bool
	stack     []string
	counter   int

	components [][]string
}

func (t *tarjan) strongConnect(start string) {
	type frame struct {
		node    string
		edgeIdx int
	}
	var work []frame
	work = append(work, frame{node: start})
	t.visit(start)

	for len(work) > 0 {
		top := &work[len(work)-1]
		edges := t.adjacency[top.node]
		if top.edgeIdx < len(edges) {
			next := edges[top.edgeIdx]
			top.edgeIdx++
			if _, seen := t.index[next]; !seen {
				t.visit(next)
				work = append(work, frame{node: next})
			} else if t.onStack[next] {
				if t.lowlink[next] < t.lowlink[top.node] {
					t.lowlink[top.node] = t.lowlink[next]
				}
			}
			continue
		}

		// All of top's edges are processed: pop it and propagate its
		// lowlink to its parent before checking for an SCC root.
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := &work[len(work)-1]
			if t.lowlink[top.node] < t.lowlink[parent.node] {
				t.lowlink[parent.node] = t.lowlink[top.node]
			}
		}
		if t.lowlink[top.node] == t.index[top.node] {
			var comp []string
			for {
				n := t.stack[len(t.stack)-1]
				t.stack = t.stack[:len(t.stack)-1]
				t.onStack[n] = false
				comp = append(comp, n)
				if n == top.node {
					break
				}
			}
			t.components = append(t.components, comp)
		}
	}
}

func (t *tarjan) visit(node string) {
	t.index[node] = t.counter
	t.lowlink[node] = t.counter
	t.counter++
	t.stack = append(t.stack, node)
	t.onStack[node] = true
}
