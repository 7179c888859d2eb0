// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package catalog reads a rystacks catalog BAM (spec.md §6): one BAM
// record per read, grouped by locus id and carrying the sample name in the
// read's RG tag. Grounded on encoding/bamprovider/bamprovider.go's
// open/header/iterate shape, trimmed to the single-pass, front-to-back
// read this tool needs instead of bamprovider's sharded/indexed random
// access (rystacks never seeks backward into the catalog BAM; see
// DESIGN.md's "dropped teacher modules" entry for bamprovider).
package catalog

import (
	"context"
	"io"
	"strconv"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"

	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/rerrors"
	"github.com/grailbio/rystacks/internal/seq"
)

var rgTag = sam.Tag{'R', 'G'}

// Reader sequentially decodes a catalog BAM into one locus.ReadSet per
// locus id (consecutive records sharing the same reference, i.e. the same
// synthetic per-locus "contig" name the cataloger assigned it). Each
// locus's numeric reference name in the BAM stands in for spec.md's locus
// id; this mirrors
// how a coordinate-sorted whole-genome BAM groups reads by chromosome,
// just at locus instead of chromosome granularity.
type Reader struct {
	ctx    context.Context
	f      file.File
	reader *bam.Reader
	pop    *popinfo.Table

	pending *sam.Record // first record of the next locus, already read
	done    bool
}

// Open opens the catalog BAM at path and builds its sample table from the
// header's read groups (immutable for the lifetime of the run, per
// spec.md §5's "Shared resources" rule).
func Open(ctx context.Context, path string) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, &rerrors.IoError{Path: path, Err: err}
	}
	br, err := bam.NewReader(f.Reader(ctx), 1)
	if err != nil {
		f.Close(ctx)
		return nil, &rerrors.IoError{Path: path, Err: err}
	}

	pop := popinfo.NewTable()
	for _, rg := range br.Header().RGs() {
		pop.Add(rg.Name())
	}

	r := &Reader{ctx: ctx, f: f, reader: br, pop: pop}
	if err := r.advance(); err != nil && err != io.EOF {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Pop returns the sample table built from the catalog's read groups.
func (r *Reader) Pop() *popinfo.Table { return r.pop }

// Close releases the underlying BAM stream.
func (r *Reader) Close() error {
	r.reader.Close()
	return r.f.Close(r.ctx)
}

// advance reads one record into r.pending, or sets r.done on EOF.
func (r *Reader) advance() error {
	for {
		rec, err := r.reader.Read()
		if err == io.EOF {
			r.pending = nil
			r.done = true
			return io.EOF
		}
		if err != nil {
			return &rerrors.IoError{Path: "catalog", Err: err}
		}
		if rec.Flags&sam.Secondary != 0 || rec.Flags&sam.Supplementary != 0 {
			// Alternate alignments carry no new locus evidence; skip per the
			// glossary's FSECONDARY/FSUPPLEMENTARY definitions.
			continue
		}
		r.pending = rec
		return nil
	}
}

// locusID derives a numeric locus id from a record's reference name. A
// non-numeric reference name is a MalformedInput condition: the record is
// reported but the caller decides whether to skip it.
func locusID(rec *sam.Record) (int, error) {
	if rec.Ref == nil {
		return 0, &rerrors.MalformedInput{Msg: "record " + rec.Name + " has no reference"}
	}
	id, err := strconv.Atoi(rec.Ref.Name())
	if err != nil {
		return 0, &rerrors.MalformedInput{Msg: "non-numeric locus reference " + rec.Ref.Name()}
	}
	return id, nil
}

// readGroup returns a record's RG tag value, or ("", false) if absent.
func readGroup(rec *sam.Record) (string, bool) {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return "", false
	}
	v, ok := aux.Value().(string)
	return v, ok
}

// toRead converts one sam.Record into a locus.Read, reverse-complementing
// it first if it was mapped to the minus strand so every Read in a
// ReadSet is already forward-oriented for the assembler/aligner.
func toRead(rec *sam.Record, pop *popinfo.Table) (locus.Read, error) {
	rg, ok := readGroup(rec)
	if !ok {
		return locus.Read{}, &rerrors.MalformedInput{Msg: "record " + rec.Name + " has no RG tag"}
	}
	sample, ok := pop.Lookup(rg)
	if !ok {
		return locus.Read{}, &rerrors.MalformedInput{Msg: "record " + rec.Name + " has unknown read group " + rg}
	}
	s := seq.NewDNASeq4FromText(string(rec.Seq.Expand()))
	if rec.Flags&sam.Reverse != 0 {
		s = s.ReverseComplement()
	}
	return locus.Read{ID: rec.Name, Seq: s, Sample: sample}, nil
}

// Next decodes the next locus's worth of consecutive records into a
// ReadSet, returning io.EOF once the catalog is exhausted. Per-record
// MalformedInput conditions (bad RG, unknown sample, non-numeric locus
// reference) are logged and the record dropped; they never abort the
// whole locus.
func (r *Reader) Next() (*locus.ReadSet, error) {
	if r.pending == nil {
		if r.done {
			return nil, io.EOF
		}
		return nil, errors.New("catalog: Next called on unopened reader")
	}

	id, err := locusID(r.pending)
	for err != nil {
		vlog.Error(err)
		if e := r.advance(); e != nil {
			return nil, e
		}
		id, err = locusID(r.pending)
	}
	rs := &locus.ReadSet{LocusID: id, Pop: r.pop}

	for r.pending != nil {
		curID, idErr := locusID(r.pending)
		if idErr == nil && curID != id {
			break
		}
		if idErr != nil {
			vlog.Error(idErr)
		} else if rd, convErr := toRead(r.pending, r.pop); convErr != nil {
			vlog.Error(convErr)
		} else if r.pending.Flags&sam.Paired != 0 && r.pending.Flags&sam.Read2 != 0 {
			rs.Paired = append(rs.Paired, rd)
		} else {
			rs.Forward = append(rs.Forward, rd)
		}
		if e := r.advance(); e != nil && e != io.EOF {
			return nil, e
		}
	}
	return rs, nil
}
