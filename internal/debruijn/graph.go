// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package debruijn builds a de Bruijn graph from a bag of paired-end reads
// and selects a best-scoring traversal to produce a single contig per
// locus. Per DESIGN NOTES (a), nodes live in a flat arena and are
// referenced by index (NodeID) rather than by pointer, so the graph is
// trivially resettable and has no dangling-pointer hazard across loci.
package debruijn

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/grailbio/rystacks/internal/kmer"
	"github.com/grailbio/rystacks/internal/seq"
)

// ErrNotADAG is returned by FindBestPath when the retained-kmer graph
// contains a cycle. Per DESIGN NOTES open question (a), this is not
// retried: the caller (the per-locus driver) treats it as a LocusSkipped
// condition for the paired-end assembly stage only.
var ErrNotADAG = errors.New("debruijn: graph is not a DAG")

// NodeID indexes into Graph's node arena. invalidNodeID marks an absent
// edge/endpoint.
type NodeID uint32

const invalidNodeID = ^NodeID(0)

type node struct {
	kmer  kmer.Kmer
	count int
	pred  [4]NodeID
	succ  [4]NodeID

	// pathIdx is the index into Graph.paths that this node belongs to, or -1
	// if the node hasn't been assigned to a simple path yet (only possible
	// transiently during contractLinearChains, or permanently if the node
	// sits on a cycle with no branch to serve as an entry point).
	pathIdx int
}

func (n *node) inDegree() int {
	d := 0
	for _, p := range n.pred {
		if p != invalidNodeID {
			d++
		}
	}
	return d
}

func (n *node) outDegree() int {
	d := 0
	for _, s := range n.succ {
		if s != invalidNodeID {
			d++
		}
	}
	return d
}

// simplePath is a maximal chain of nodes whose internal members have
// in-degree = out-degree = 1 on both sides, per spec.md's SPath.
type simplePath struct {
	first, last NodeID
}

// Graph is a reusable de Bruijn graph. Call Rebuild once per locus; the
// arena and lookup index are reused across calls to avoid reallocation, the
// same reuse discipline spec.md §3 requires of per-locus working
// structures.
type Graph struct {
	K    int
	CMin int

	nodes []node
	index map[kmer.Kmer]NodeID
	paths []simplePath
}

// NewGraph returns a Graph configured for k-mer length k and minimum
// retained count cMin.
func NewGraph(k, cMin int) *Graph {
	return &Graph{K: k, CMin: cMin, index: make(map[kmer.Kmer]NodeID)}
}

// Empty reports whether the most recent Rebuild retained any kmer.
func (g *Graph) Empty() bool { return len(g.nodes) == 0 }

// Rebuild resets the graph and (re)builds it from scratch out of reads. It
// is safe to call repeatedly; internal slices/maps are reused.
func (g *Graph) Rebuild(reads []seq.DNASeq4) {
	g.nodes = g.nodes[:0]
	for k := range g.index {
		delete(g.index, k)
	}
	g.paths = g.paths[:0]

	counts := make(map[kmer.Kmer]int)
	for i := range reads {
		sc := kmer.NewScanner(&reads[i], g.K)
		for sc.Scan() {
			_, km := sc.Kmer()
			counts[km]++
		}
	}

	// Map iteration order is randomized per run, which would otherwise make
	// NodeID assignment (and so every tie in FindBestPath) nondeterministic
	// across identical inputs. Sorting retained kmers by their farmhash
	// before assigning NodeIDs fixes the arena's bucket order without
	// imposing an arbitrary lexical order on the kmers themselves.
	retained := make([]kmer.Kmer, 0, len(counts))
	for km, c := range counts {
		if c >= g.CMin {
			retained = append(retained, km)
		}
	}
	sort.Slice(retained, func(i, j int) bool {
		hi, hj := retained[i].Hash(), retained[j].Hash()
		if hi != hj {
			return hi < hj
		}
		return retained[i] < retained[j]
	})

	for _, km := range retained {
		id := NodeID(len(g.nodes))
		g.nodes = append(g.nodes, node{kmer: km, count: counts[km], pathIdx: -1,
			pred: [4]NodeID{invalidNodeID, invalidNodeID, invalidNodeID, invalidNodeID},
			succ: [4]NodeID{invalidNodeID, invalidNodeID, invalidNodeID, invalidNodeID},
		})
		g.index[km] = id
	}
	for id := range g.nodes {
		km := g.nodes[id].kmer
		for x := seq.Nt2(0); x < 4; x++ {
			if sid, ok := g.index[km.Successor(x, g.K)]; ok {
				g.nodes[id].succ[x] = sid
			}
			if pid, ok := g.index[km.Predecessor(x, g.K)]; ok {
				g.nodes[id].pred[x] = pid
			}
		}
	}
}

// contractLinearChains groups nodes into maximal simple paths. A node
// starts a new path unless it has exactly one predecessor and that
// predecessor has exactly one successor (i.e. the incoming edge is
// unitig-internal on both ends).
func (g *Graph) contractLinearChains() {
	for id := range g.nodes {
		g.nodes[id].pathIdx = -1
	}
	for id := range g.nodes {
		n := &g.nodes[id]
		if n.pathIdx != -1 {
			continue
		}
		if !g.startsPath(NodeID(id)) {
			continue
		}
		pathIdx := len(g.paths)
		last := NodeID(id)
		g.nodes[id].pathIdx = pathIdx
		for {
			cur := &g.nodes[last]
			if cur.outDegree() != 1 {
				break
			}
			var next NodeID = invalidNodeID
			for _, s := range cur.succ {
				if s != invalidNodeID {
					next = s
					break
				}
			}
			if g.nodes[next].inDegree() != 1 || g.nodes[next].pathIdx != -1 {
				break
			}
			g.nodes[next].pathIdx = pathIdx
			last = next
		}
		g.paths = append(g.paths, simplePath{first: NodeID(id), last: last})
	}
}

func (g *Graph) startsPath(id NodeID) bool {
	n := &g.nodes[id]
	if n.inDegree() != 1 {
		return true
	}
	var pred NodeID
	for _, p := range n.pred {
		if p != invalidNodeID {
			pred = p
			break
		}
	}
	return g.nodes[pred].outDegree() != 1
}

// pathString reconstructs the DNA string spanned by a simple path by
// walking first->last through succ edges.
func (g *Graph) pathString(p simplePath) string {
	out := make([]byte, 0, g.K)
	out = append(out, []byte(g.nodes[p.first].kmer.String(g.K))...)
	cur := p.first
	for cur != p.last {
		var next NodeID = invalidNodeID
		for _, s := range g.nodes[cur].succ {
			if s != invalidNodeID {
				next = s
				break
			}
		}
		out = append(out, g.nodes[next].kmer.Last().ASCII())
		cur = next
	}
	return string(out)
}

func (g *Graph) pathCount(p simplePath) int {
	total := 0
	cur := p.first
	for {
		total += g.nodes[cur].count
		if cur == p.last {
			break
		}
		var next NodeID = invalidNodeID
		for _, s := range g.nodes[cur].succ {
			if s != invalidNodeID {
				next = s
				break
			}
		}
		cur = next
	}
	return total
}

// FindBestPath builds the simple-path condensation, topologically sorts it
// (failing with ErrNotADAG on a cycle), and returns the contig formed by
// the highest-cumulative-kmer-count chain of simple paths.
func (g *Graph) FindBestPath() (string, error) {
	if g.Empty() {
		return "", ErrNotADAG
	}
	g.contractLinearChains()
	for i := range g.nodes {
		if g.nodes[i].pathIdx == -1 {
			// A node untouched by contraction can only happen if it sits on a
			// cycle with no branching entry point anywhere in the graph.
			return "", ErrNotADAG
		}
	}

	nPaths := len(g.paths)
	// pathSucc[i] lists the indices of simple paths reachable in one
	// condensation-graph edge from path i.
	pathSucc := make([][]int, nPaths)
	for i, p := range g.paths {
		last := &g.nodes[p.last]
		for _, s := range last.succ {
			if s != invalidNodeID {
				pathSucc[i] = append(pathSucc[i], g.nodes[s].pathIdx)
			}
		}
	}

	order, ok := topoSort(pathSucc)
	if !ok {
		return "", ErrNotADAG
	}

	// Longest path (by cumulative retained-kmer count) through the
	// condensation DAG, processed in reverse topological order so each
	// path's best-successor score is already known.
	best := make([]int, nPaths)
	bestNext := make([]int, nPaths)
	for i := range bestNext {
		bestNext[i] = -1
	}
	ownCount := make([]int, nPaths)
	for i, p := range g.paths {
		ownCount[i] = g.pathCount(p)
	}
	for i := len(order) - 1; i >= 0; i-- {
		pi := order[i]
		best[pi] = ownCount[pi]
		for _, nxt := range pathSucc[pi] {
			if cand := ownCount[pi] + best[nxt]; cand > best[pi] {
				best[pi] = cand
				bestNext[pi] = nxt
			}
		}
	}

	bestStart := order[0]
	for _, pi := range order {
		if best[pi] > best[bestStart] {
			bestStart = pi
		}
	}

	chain := []int{bestStart}
	for bestNext[chain[len(chain)-1]] != -1 {
		chain = append(chain, bestNext[chain[len(chain)-1]])
	}

	contig := g.pathString(g.paths[chain[0]])
	for _, pi := range chain[1:] {
		s := g.pathString(g.paths[pi])
		contig += s[g.K-1:]
	}
	return contig, nil
}

// topoSort runs Kahn's algorithm over an adjacency list of n nodes,
// returning the topological order and false if a cycle is present.
func topoSort(succ [][]int) ([]int, bool) {
	n := len(succ)
	indeg := make([]int, n)
	for _, list := range succ {
		for _, v := range list {
			indeg[v]++
		}
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	sort.Ints(queue)
	order := make([]int, 0, n)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		newlyZero := []int{}
		for _, v := range succ[u] {
			indeg[v]--
			if indeg[v] == 0 {
				newlyZero = append(newlyZero, v)
			}
		}
		sort.Ints(newlyZero)
		queue = append(queue, newlyZero...)
	}
	return order, len(order) == n
}
