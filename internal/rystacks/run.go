// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/grailbio/rystacks/internal/catalog"
	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/rerrors"
)

var catalogNameRE = regexp.MustCompile(`^batch_(\d+)\.catalog\.bam$`)

// findCatalog resolves the catalog BAM path for a run: the explicit batch
// id if opts.Batch is set, or spec.md §6's autodetected single catalog in
// opts.InputDir otherwise.
func findCatalog(ctx context.Context, opts *Opts) (path string, batchID int, err error) {
	if !opts.AutoBatch {
		return filepath.Join(opts.InputDir, fmt.Sprintf("batch_%d.catalog.bam", opts.Batch)), opts.Batch, nil
	}

	lister := file.List(ctx, opts.InputDir, false)
	var found []string
	var ids []int
	for lister.Scan() {
		m := catalogNameRE.FindStringSubmatch(filepath.Base(lister.Path()))
		if m == nil {
			continue
		}
		id, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		found = append(found, lister.Path())
		ids = append(ids, id)
	}
	if err := lister.Err(); err != nil {
		return "", 0, &rerrors.IoError{Path: opts.InputDir, Err: err}
	}
	switch len(found) {
	case 0:
		return "", 0, &rerrors.ArgumentError{Msg: "no batch_<id>.catalog.bam found in " + opts.InputDir}
	case 1:
		return found[0], ids[0], nil
	default:
		return "", 0, &rerrors.ArgumentError{Msg: fmt.Sprintf("multiple catalogs found in %s; pass -b to disambiguate", opts.InputDir)}
	}
}

// outcome is one locus's pipeline result, including a failed-but-recorded
// rerrors.LocusSkipped; every other error class is fatal and aborts Run.
type outcome struct {
	res *locusResult
	err error
}

// Run executes the full rystacks pipeline over one batch's catalog BAM:
// read every locus, process it through the worker pool, and drain results
// through the single-writer serializer in catalog order (spec.md §5).
func Run(ctx context.Context, opts *Opts) error {
	path, batchID, err := findCatalog(ctx, opts)
	if err != nil {
		return err
	}

	reader, err := catalog.Open(ctx, path)
	if err != nil {
		return err
	}
	defer reader.Close()

	var whitelist map[int]bool
	if opts.WhitelistPath != "" {
		whitelist, err = LoadWhitelist(ctx, opts.WhitelistPath)
		if err != nil {
			return err
		}
	}

	var readSets []*locus.ReadSet
	for {
		rs, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if whitelist != nil && !whitelist[rs.LocusID] {
			continue
		}
		readSets = append(readSets, rs)
	}

	runCtx := &Context{Opts: opts, Pop: reader.Pop()}
	outcomes := make([]outcome, len(readSets))

	parallelism := opts.parallelism()
	if parallelism > len(readSets) && len(readSets) > 0 {
		parallelism = len(readSets)
	}
	if parallelism < 1 {
		parallelism = 1
	}

	if len(readSets) > 0 {
		if err := traverse.Each(parallelism, func(workerIdx int) error {
			w := newWorker(opts)
			start := (workerIdx * len(readSets)) / parallelism
			end := ((workerIdx + 1) * len(readSets)) / parallelism
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := processLocus(runCtx, w, readSets[i])
				outcomes[i] = outcome{res: res, err: err}
			}
			return nil
		}); err != nil {
			return err
		}
	}

	base := filepath.Join(opts.InputDir, fmt.Sprintf("batch_%d.rystacks", batchID))
	out, err := openOutputs(ctx, base, reader.Pop(), opts.Depths)
	if err != nil {
		return err
	}

	summary := newRunSummary(opts)
	for _, oc := range outcomes {
		if skipped, ok := oc.err.(*rerrors.LocusSkipped); ok {
			summary.recordSkip(skipped)
			log.Error.Printf("%v", skipped)
			continue
		}
		if oc.err != nil {
			out.Close()
			return oc.err
		}
		summary.recordRetained(oc.res)
		if err := out.writeLocus(oc.res); err != nil {
			out.Close()
			return &rerrors.IoError{Path: base, Err: err}
		}
	}

	if err := out.writeLog(summary); err != nil {
		out.Close()
		return &rerrors.IoError{Path: base + ".log", Err: err}
	}
	return out.Close()
}
