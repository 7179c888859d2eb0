// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package phase

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// pairGraph links the two haplotype components a heterozygous column's
// alleles belong to. Per spec.md §4.6's rationale, overall consistency is
// equivalent to this graph being bipartite restricted to the sample's het
// columns; each connected component's two colour classes are the sample's
// two haplotype strands for that phase set.
//
// Built on gonum/graph/simple.UndirectedGraph with graph/topo.
// ConnectedComponents doing the component pass, the same idiom
// kortschak-ins/cmd/cmpint's nameGraph and kortschak-loopy/cmd/press's
// thresholdGraph use for their own ad hoc graphs: a simple graph over a
// custom node key, walked with gonum's connectivity helpers. The
// per-component 2-colouring this package layers on top is the constraint
// those examples don't need, since they only ask "how many components."
type pairGraph struct {
	g      *simple.UndirectedGraph
	idFor  map[allele]int64
	nodeOf map[int64]allele
	nextID int64
}

func newPairGraph() *pairGraph {
	return &pairGraph{
		g:      simple.NewUndirectedGraph(),
		idFor:  map[allele]int64{},
		nodeOf: map[int64]allele{},
	}
}

func (g *pairGraph) nodeID(a allele) int64 {
	if id, ok := g.idFor[a]; ok {
		return id
	}
	id := g.nextID
	g.nextID++
	g.idFor[a] = id
	g.nodeOf[id] = a
	g.g.AddNode(simple.Node(id))
	return id
}

// link records that roots a and b (the components holding the two alleles
// of one column) must end up on opposite sides of a 2-colouring.
func (g *pairGraph) link(a, b allele) {
	ai, bi := g.nodeID(a), g.nodeID(b)
	if ai == bi {
		return
	}
	g.g.SetEdge(simple.Edge{F: simple.Node(ai), T: simple.Node(bi)})
}

// bipartition 2-colours every connected component (found via graph/topo.
// ConnectedComponents) and records, for each node, the minimum column among
// its component's nodes. Nodes are union-find roots, so this is a key shared
// by the component rather than the phase set's first het column; phaseSample
// maps it to that column. ok is false if any component is not bipartite,
// meaning the sample's haplotypes are inconsistent.
func (g *pairGraph) bipartition() (colors map[allele]int, groupMinCol map[allele]int, ok bool) {
	colors = make(map[allele]int, len(g.idFor))
	groupMinCol = make(map[allele]int, len(g.idFor))

	for _, component := range topo.ConnectedComponents(g.g) {
		minCol := g.nodeOf[component[0].ID()].col
		for _, n := range component {
			if c := g.nodeOf[n.ID()].col; c < minCol {
				minCol = c
			}
		}

		start := component[0].ID()
		colors[g.nodeOf[start]] = 0
		seen := map[int64]bool{start: true}
		queue := []int64{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			curColor := colors[g.nodeOf[cur]]
			nbrs := g.g.From(cur)
			for nbrs.Next() {
				nb := nbrs.Node().ID()
				if seen[nb] {
					if colors[g.nodeOf[nb]] == curColor {
						return nil, nil, false
					}
					continue
				}
				seen[nb] = true
				colors[g.nodeOf[nb]] = 1 - curColor
				queue = append(queue, nb)
			}
		}

		for _, n := range component {
			groupMinCol[g.nodeOf[n.ID()]] = minCol
		}
	}
	return colors, groupMinCol, true
}
