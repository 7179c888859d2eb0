// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package phase

import "github.com/grailbio/rystacks/internal/seq"

// unionFind merges allele nodes into haplotype components, rejecting a
// merge that would assign two different nucleotides to the same column
// (spec.md §4.6 step 4's "at most one allele per column" constraint).
type unionFind struct {
	parent map[allele]allele
	cols   map[allele]map[int]seq.Nt2
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[allele]allele{}, cols: map[allele]map[int]seq.Nt2{}}
}

func (u *unionFind) add(a allele) {
	if _, ok := u.parent[a]; ok {
		return
	}
	u.parent[a] = a
	u.cols[a] = map[int]seq.Nt2{a.col: a.nt}
}

func (u *unionFind) find(a allele) allele {
	root := a
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[a] != root {
		next := u.parent[a]
		u.parent[a] = root
		a = next
	}
	return root
}

// union merges a and b's components if compatible, returning false (and
// leaving the components unmerged) if doing so would give some column two
// different alleles.
func (u *unionFind) union(a, b allele) bool {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return true
	}
	ca, cb := u.cols[ra], u.cols[rb]
	for col, nt := range cb {
		if existing, ok := ca[col]; ok && existing != nt {
			return false
		}
	}
	for col, nt := range cb {
		ca[col] = nt
	}
	u.parent[rb] = ra
	delete(u.cols, rb)
	return true
}
