// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"

	"github.com/grailbio/rystacks/internal/rerrors"
)

// LoadWhitelist reads spec.md §6's locus whitelist: one numeric locus id
// per line. Grounded on umi.NewSnapCorrector's bufio.Scanner-over-lines
// loader, generalized from a byte slice to a file path via
// grailbio/base/file so a whitelist can live alongside the input
// directory on any backend the file package supports.
func LoadWhitelist(ctx context.Context, path string) (map[int]bool, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, &rerrors.IoError{Path: path, Err: err}
	}
	defer f.Close(ctx)

	out := make(map[int]bool)
	scanner := bufio.NewScanner(f.Reader(ctx))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, &rerrors.ArgumentError{Msg: "invalid whitelist line " + strconv.Quote(line)}
		}
		out[id] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, &rerrors.IoError{Path: path, Err: err}
	}
	return out, nil
}
