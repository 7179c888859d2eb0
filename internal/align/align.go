// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package align implements the gapped Needleman-Wunsch aligner rystacks
// uses to align reads to an assembled contig: a global variant and an
// anchor-constrained, local-style variant, both emitting a biogo/hts
// sam.Cigar. The score/traceback matrix shape follows the classic
// DP+backpointer aligners in the example pack (e.g. the needleman_wunsch.go
// and namsyvo align.go references), generalized to affine-like gap scoring
// and tied-path enumeration per spec.md §4.3.
package align

import (
	"github.com/biogo/hts/sam"
)

// Fixed scoring constants (spec.md §4.3). These are design constants, not
// runtime-configurable: the caller picks a model (global/constrained), not
// a scoring scheme.
const (
	matchScore    = 5.0
	mismatchScore = -4.0
	gapOpen       = -10.0
	gapExtend     = -0.5
)

// dir is a traceback bitmask; a cell may have more than one bit set when
// multiple directions tie for the best score.
type dir uint8

const (
	dirDiag dir = 1 << iota
	dirUp       // consumes query only (CIGAR I)
	dirLeft     // consumes subject only (CIGAR D)
	dirStart    // local-alignment restart point; traceback stops here
)

// Result is the outcome of an alignment (spec.md's AlignRes).
type Result struct {
	Cigar        sam.Cigar
	Gaps         int
	Contiguity   int
	PctIdentity  float64
	SubjectStart int
}

// Aligner holds reusable score/traceback matrices. init grows them lazily
// with a 25% margin (spec.md §4.3) so repeated per-locus use amortizes
// allocation.
type Aligner struct {
	score [][]float64
	path  [][]dir
	capM  int
	capN  int
}

// NewAligner returns an empty, reusable Aligner.
func NewAligner() *Aligner { return &Aligner{} }

func (a *Aligner) init(m, n int) {
	if m+1 > a.capM || n+1 > a.capN {
		a.capM = (m + 1) * 5 / 4
		a.capN = (n + 1) * 5 / 4
		a.score = make([][]float64, a.capM)
		a.path = make([][]dir, a.capM)
		for i := range a.score {
			a.score[i] = make([]float64, a.capN)
			a.path[i] = make([]dir, a.capN)
		}
	}
}

func baseScore(q, s byte) float64 {
	if q == s {
		return matchScore
	}
	return mismatchScore
}

// fillGlobal fills the [0,m]x[0,n] score/path matrix for a standard global
// alignment of query[0:m] against subject[0:n].
func (a *Aligner) fillGlobal(query, subject []byte) {
	m, n := len(query), len(subject)
	a.init(m, n)
	a.score[0][0] = 0
	a.path[0][0] = 0
	for j := 1; j <= n; j++ {
		ext := gapExtend
		if j == 1 {
			ext = gapOpen
		}
		a.score[0][j] = a.score[0][j-1] + ext
		a.path[0][j] = dirLeft
	}
	for i := 1; i <= m; i++ {
		ext := gapExtend
		if i == 1 {
			ext = gapOpen
		}
		a.score[i][0] = a.score[i-1][0] + ext
		a.path[i][0] = dirUp
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			diagScore := a.score[i-1][j-1] + baseScore(query[i-1], subject[j-1])

			upCost := gapOpen
			if a.path[i-1][j]&dirUp != 0 {
				upCost = gapExtend
			}
			upScore := a.score[i-1][j] + upCost

			leftCost := gapOpen
			if a.path[i][j-1]&dirLeft != 0 {
				leftCost = gapExtend
			}
			leftScore := a.score[i][j-1] + leftCost

			best := diagScore
			if upScore > best {
				best = upScore
			}
			if leftScore > best {
				best = leftScore
			}

			var p dir
			const eps = 1e-9
			if diagScore >= best-eps {
				p |= dirDiag
			}
			if upScore >= best-eps {
				p |= dirUp
			}
			if leftScore >= best-eps {
				p |= dirLeft
			}
			a.score[i][j] = best
			a.path[i][j] = p
		}
	}
}

// opRun is one run-length step of an enumerated traceback: `n` consecutive
// moves in direction `d`.
type opRun struct {
	d dir
	n int
}

// enumerateGlobal performs a DFS over all tied tracebacks from (m,n) back
// to (0,0), scoring each by spec.md's (fewest gaps, highest identity,
// longest contiguity) tuple, and returns the winner's run-length op list in
// query/subject order (start to end).
func (a *Aligner) enumerateGlobal(query, subject []byte, m, n int) []opRun {
	var best []opRun
	var bestGaps = -1
	var bestID = -1.0
	var bestContig = -1

	var cur []opRun
	var dfs func(i, j int)
	dfs = func(i, j int) {
		if i == 0 && j == 0 {
			ops := reverseRuns(cur)
			gaps, id, contig := scoreOps(ops, query, subject)
			if better(gaps, id, contig, bestGaps, bestID, bestContig) {
				bestGaps, bestID, bestContig = gaps, id, contig
				best = append([]opRun(nil), ops...)
			}
			return
		}
		p := a.path[i][j]
		if i > 0 && j > 0 && p&dirDiag != 0 {
			cur = pushRun(cur, dirDiag)
			dfs(i-1, j-1)
			cur = popRun(cur)
		}
		if i > 0 && p&dirUp != 0 {
			cur = pushRun(cur, dirUp)
			dfs(i-1, j)
			cur = popRun(cur)
		}
		if j > 0 && p&dirLeft != 0 {
			cur = pushRun(cur, dirLeft)
			dfs(i, j-1)
			cur = popRun(cur)
		}
	}
	dfs(m, n)
	return best
}

func pushRun(runs []opRun, d dir) []opRun {
	if len(runs) > 0 && runs[len(runs)-1].d == d {
		runs[len(runs)-1].n++
		return runs
	}
	return append(runs, opRun{d: d, n: 1})
}

func popRun(runs []opRun) []opRun {
	last := &runs[len(runs)-1]
	last.n--
	if last.n == 0 {
		return runs[:len(runs)-1]
	}
	return runs
}

func reverseRuns(runs []opRun) []opRun {
	out := make([]opRun, len(runs))
	for i, r := range runs {
		out[len(runs)-1-i] = r
	}
	return out
}

func better(gaps int, id float64, contig, bestGaps int, bestID float64, bestContig int) bool {
	if bestGaps == -1 {
		return true
	}
	if gaps != bestGaps {
		return gaps < bestGaps
	}
	if id != bestID {
		return id > bestID
	}
	return contig > bestContig
}

// scoreOps computes (gap count, percent identity, contiguity) for a
// run-length op list walked against query/subject.
func scoreOps(ops []opRun, query, subject []byte) (gaps int, pctID float64, contiguity int) {
	qi, si := 0, 0
	matches, total := 0, 0
	runMatch := 0
	for _, r := range ops {
		switch r.d {
		case dirDiag:
			for k := 0; k < r.n; k++ {
				total++
				if query[qi] == subject[si] {
					matches++
					runMatch++
					if runMatch > contiguity {
						contiguity = runMatch
					}
				} else {
					runMatch = 0
				}
				qi++
				si++
			}
		case dirUp:
			gaps++
			runMatch = 0
			qi += r.n
		case dirLeft:
			gaps++
			runMatch = 0
			si += r.n
		}
	}
	if total > 0 {
		pctID = float64(matches) / float64(total)
	}
	return gaps, pctID, contiguity
}

func opsToCigar(ops []opRun) sam.Cigar {
	c := make(sam.Cigar, 0, len(ops))
	for _, r := range ops {
		var t sam.CigarOpType
		switch r.d {
		case dirDiag:
			t = sam.CigarMatch
		case dirUp:
			t = sam.CigarInsertion
		case dirLeft:
			t = sam.CigarDeletion
		}
		c = append(c, sam.NewCigarOp(t, r.n))
	}
	return c
}

// Align performs a global alignment of query against subject.
func (a *Aligner) Align(query, subject []byte) Result {
	m, n := len(query), len(subject)
	a.fillGlobal(query, subject)
	ops := a.enumerateGlobal(query, subject, m, n)
	gaps, pctID, contiguity := scoreOps(ops, query, subject)
	return Result{
		Cigar:        opsToCigar(ops),
		Gaps:         gaps,
		Contiguity:   contiguity,
		PctIdentity:  pctID,
		SubjectStart: 0,
	}
}

// Anchor is a pre-matched span shared by query and subject, used to bound
// AlignConstrained's fill region.
type Anchor struct {
	QueryPos, SubjPos, Len int
}

// bandHalfWidth pads the diagonal band derived from the anchors by this
// many cells on either side, to absorb small indels between anchors.
const bandHalfWidth = 10

// fillBanded fills only the cells whose diagonal offset (j-i) falls within
// [loOff, hiOff], leaving the rest at -inf so they can never win a
// traceback. This is the bounded-region fill spec.md §4.3 calls for when
// aligning a read against a much larger contig via anchors.
//
// The recurrence is Smith-Waterman-style rather than Needleman-Wunsch: every
// cell's score floors at 0, and any cell whose best score is 0 is marked
// dirStart, a free place a traceback may begin. That gives AlignConstrained
// a genuine local alignment within the band, so an unaligned query prefix or
// suffix costs nothing instead of being forced through priced insert/delete
// operations.
func (a *Aligner) fillBanded(query, subject []byte, loOff, hiOff int) {
	m, n := len(query), len(subject)
	a.init(m, n)
	const negInf = -1e18

	inBand := func(i, j int) bool {
		off := j - i
		return off >= loOff && off <= hiOff
	}

	for j := 0; j <= n; j++ {
		if !inBand(0, j) {
			a.score[0][j] = negInf
			a.path[0][j] = 0
			continue
		}
		a.score[0][j] = 0
		a.path[0][j] = dirStart
	}
	for i := 1; i <= m; i++ {
		if !inBand(i, 0) {
			a.score[i][0] = negInf
			a.path[i][0] = 0
			continue
		}
		a.score[i][0] = 0
		a.path[i][0] = dirStart
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if !inBand(i, j) {
				a.score[i][j] = negInf
				a.path[i][j] = 0
				continue
			}
			diagScore := negInf
			if inBand(i-1, j-1) {
				diagScore = a.score[i-1][j-1] + baseScore(query[i-1], subject[j-1])
			}
			upScore := negInf
			if inBand(i-1, j) {
				upCost := gapOpen
				if a.path[i-1][j]&dirUp != 0 {
					upCost = gapExtend
				}
				upScore = a.score[i-1][j] + upCost
			}
			leftScore := negInf
			if inBand(i, j-1) {
				leftCost := gapOpen
				if a.path[i][j-1]&dirLeft != 0 {
					leftCost = gapExtend
				}
				leftScore = a.score[i][j-1] + leftCost
			}

			const eps = 1e-9
			best := 0.0
			if diagScore > best {
				best = diagScore
			}
			if upScore > best {
				best = upScore
			}
			if leftScore > best {
				best = leftScore
			}
			if best <= eps {
				a.score[i][j] = 0
				a.path[i][j] = dirStart
				continue
			}

			var p dir
			if diagScore > negInf/2 && diagScore >= best-eps {
				p |= dirDiag
			}
			if upScore > negInf/2 && upScore >= best-eps {
				p |= dirUp
			}
			if leftScore > negInf/2 && leftScore >= best-eps {
				p |= dirLeft
			}
			a.score[i][j] = best
			a.path[i][j] = p
		}
	}
}

// enumerateLocal performs a DFS over all tied tracebacks from (endI,endJ)
// back to the nearest dirStart cell, scoring each candidate the same way
// enumerateGlobal does, and returns the winner's run-length op list (start
// to end) along with the query/subject coordinates where it begins. Unlike
// enumerateGlobal, the base case is "reached a restart cell," not "reached
// (0,0)," which is what lets a local alignment begin partway through the
// query or subject.
func (a *Aligner) enumerateLocal(query, subject []byte, endI, endJ int) (ops []opRun, startI, startJ int) {
	var best []opRun
	var bestStartI, bestStartJ int
	var bestGaps = -1
	var bestID = -1.0
	var bestContig = -1

	var cur []opRun
	var dfs func(i, j int)
	dfs = func(i, j int) {
		if a.path[i][j]&dirStart != 0 {
			runs := reverseRuns(cur)
			gaps, id, contig := scoreOps(runs, query[i:], subject[j:])
			if better(gaps, id, contig, bestGaps, bestID, bestContig) {
				bestGaps, bestID, bestContig = gaps, id, contig
				best = append([]opRun(nil), runs...)
				bestStartI, bestStartJ = i, j
			}
			return
		}
		p := a.path[i][j]
		if i > 0 && j > 0 && p&dirDiag != 0 {
			cur = pushRun(cur, dirDiag)
			dfs(i-1, j-1)
			cur = popRun(cur)
		}
		if i > 0 && p&dirUp != 0 {
			cur = pushRun(cur, dirUp)
			dfs(i-1, j)
			cur = popRun(cur)
		}
		if j > 0 && p&dirLeft != 0 {
			cur = pushRun(cur, dirLeft)
			dfs(i, j-1)
			cur = popRun(cur)
		}
	}
	dfs(endI, endJ)
	return best, bestStartI, bestStartJ
}

// AlignConstrained aligns query against subject using the given anchors to
// bound the DP fill to a diagonal band (spec.md §4.3's constrained/local
// variant), tracing back local-style from the highest-scoring cell in the
// band to the nearest restart point rather than forcing (0,0)-to-(m,n), and
// soft-clipping any unaligned query prefix or suffix for free.
func (a *Aligner) AlignConstrained(query, subject []byte, anchors []Anchor) Result {
	m, n := len(query), len(subject)
	if len(anchors) == 0 {
		return a.Align(query, subject)
	}

	loOff, hiOff := anchors[0].SubjPos-anchors[0].QueryPos, anchors[0].SubjPos-anchors[0].QueryPos
	for _, anc := range anchors {
		startOff := anc.SubjPos - anc.QueryPos
		endOff := (anc.SubjPos + anc.Len) - (anc.QueryPos + anc.Len)
		for _, off := range []int{startOff, endOff} {
			if off < loOff {
				loOff = off
			}
			if off > hiOff {
				hiOff = off
			}
		}
	}
	loOff -= bandHalfWidth
	hiOff += bandHalfWidth

	a.fillBanded(query, subject, loOff, hiOff)

	bestI, bestJ := 0, 0
	bestScore := a.score[0][0]
	for i := 0; i <= m; i++ {
		for j := 0; j <= n; j++ {
			if a.score[i][j] > bestScore {
				bestScore = a.score[i][j]
				bestI, bestJ = i, j
			}
		}
	}

	ops, startI, startJ := a.enumerateLocal(query, subject, bestI, bestJ)
	gaps, pctID, contiguity := scoreOps(ops, query[startI:], subject[startJ:])

	cigar := make(sam.Cigar, 0, len(ops)+2)
	if startI > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, startI))
	}
	cigar = append(cigar, opsToCigar(ops)...)
	if bestI < m {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, m-bestI))
	}

	return Result{
		Cigar:        cigar,
		Gaps:         gaps,
		Contiguity:   contiguity,
		PctIdentity:  pctID,
		SubjectStart: startJ,
	}
}
