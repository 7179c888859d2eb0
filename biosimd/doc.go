// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package biosimd provides a fast in-place ASCII reverse-complement, the
// one byte-array primitive the catalog driver's reverse-strand handling
// needs from GRAIL's original SIMD-accelerated sequence package.
package biosimd
