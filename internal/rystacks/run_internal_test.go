// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/rystacks/internal/rerrors"
)

func TestFindCatalogExplicitBatch(t *testing.T) {
	opts := &Opts{InputDir: "/data/stacks", AutoBatch: false, Batch: 7}
	path, id, err := findCatalog(vcontext.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/stacks", "batch_7.catalog.bam"), path)
	assert.Equal(t, 7, id)
}

func TestFindCatalogAutodetectSingle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch_3.catalog.bam"), []byte("x"), 0644))
	opts := &Opts{InputDir: dir, AutoBatch: true}
	path, id, err := findCatalog(vcontext.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch_3.catalog.bam"), path)
	assert.Equal(t, 3, id)
}

func TestFindCatalogAutodetectNone(t *testing.T) {
	dir := t.TempDir()
	opts := &Opts{InputDir: dir, AutoBatch: true}
	_, _, err := findCatalog(vcontext.Background(), opts)
	require.Error(t, err)
	_, ok := err.(*rerrors.ArgumentError)
	assert.True(t, ok)
}

func TestFindCatalogAutodetectAmbiguous(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch_1.catalog.bam"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch_2.catalog.bam"), []byte("x"), 0644))
	opts := &Opts{InputDir: dir, AutoBatch: true}
	_, _, err := findCatalog(vcontext.Background(), opts)
	require.Error(t, err)
	_, ok := err.(*rerrors.ArgumentError)
	assert.True(t, ok)
}
