// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package popinfo is the engine's minimal stand-in for the out-of-scope
// MetaPopInfo component: a dense sample-name <-> SampleID table built once
// from the catalog BAM's read groups. Immutable after Build, per spec.md
// §5's "Shared resources" rule.
package popinfo

import "sort"

// SampleID indexes a sample within a Table.
type SampleID int

// Table maps sample names to dense, stable SampleIDs.
type Table struct {
	names []string
	ids   map[string]SampleID
}

// NewTable returns an empty Table; use Add or Build to populate it.
func NewTable() *Table {
	return &Table{ids: make(map[string]SampleID)}
}

// Add registers name if unseen and returns its SampleID either way.
func (t *Table) Add(name string) SampleID {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := SampleID(len(t.names))
	t.names = append(t.names, name)
	t.ids[name] = id
	return id
}

// Build constructs a Table from a set of distinct sample names, assigning
// IDs in sorted order so that output (VCF sample columns, TSV s_model/
// s_depths lines) is deterministic across runs.
func Build(sampleNames map[string]struct{}) *Table {
	names := make([]string, 0, len(sampleNames))
	for n := range sampleNames {
		names = append(names, n)
	}
	sort.Strings(names)
	t := NewTable()
	for _, n := range names {
		t.Add(n)
	}
	return t
}

// Lookup returns the SampleID for name and whether it was found.
func (t *Table) Lookup(name string) (SampleID, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Name returns the sample name for id.
func (t *Table) Name(id SampleID) string { return t.names[id] }

// Len returns the number of distinct samples in the table.
func (t *Table) Len() int { return len(t.names) }

// Names returns the sample names in SampleID order. The returned slice must
// not be mutated.
func (t *Table) Names() []string { return t.names }
