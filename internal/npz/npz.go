// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package npz reads and writes NPZ archives: zip files of NPY arrays, the
// interchange format the training tooling consumes. Only the small corner
// of the format the recording pipeline needs is implemented: little-endian
// float32 arrays of any shape, 1-D bool arrays, and scalar byte strings
// (used for the JSON metadata record). Entries are stored uncompressed,
// matching what numpy's savez produces.
package npz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors callers branch on.
var (
	ErrBadMagic    = errors.New("npz: not an NPY array")
	ErrUnsupported = errors.New("npz: unsupported array encoding")
)

const (
	descrFloat32 = "<f4"
	descrBool    = "|b1"

	headerAlign = 64
)

var npyMagic = []byte("\x93NUMPY")

// buildHeader renders the NPY v1.0 header block (magic, version, length
// and the python-literal dict), padded to the alignment numpy uses.
func buildHeader(descr string, shape []int) []byte {
	var sb strings.Builder
	sb.WriteString("{'descr': '")
	sb.WriteString(descr)
	sb.WriteString("', 'fortran_order': False, 'shape': (")
	for i, dim := range shape {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(dim))
	}
	if len(shape) == 1 {
		sb.WriteString(",")
	}
	sb.WriteString("), }")

	dict := sb.String()
	// magic(6) + version(2) + headerlen(2) + dict + padding + '\n'
	total := 10 + len(dict) + 1
	pad := 0
	if rem := total % headerAlign; rem != 0 {
		pad = headerAlign - rem
	}

	out := make([]byte, 0, total+pad)
	out = append(out, npyMagic...)
	out = append(out, 1, 0)
	hlen := len(dict) + pad + 1
	out = append(out, byte(hlen), byte(hlen>>8))
	out = append(out, dict...)
	for i := 0; i < pad; i++ {
		out = append(out, ' ')
	}
	out = append(out, '\n')
	return out
}

// parseHeader extracts descr and shape from an NPY header dict.
func parseHeader(dict string) (descr string, shape []int, err error) {
	descr, err = quotedField(dict, "descr")
	if err != nil {
		return "", nil, err
	}

	if strings.Contains(dict, "'fortran_order': True") {
		return "", nil, fmt.Errorf("%w: fortran order", ErrUnsupported)
	}

	open := strings.Index(dict, "'shape': (")
	if open < 0 {
		return "", nil, fmt.Errorf("%w: missing shape", ErrUnsupported)
	}
	rest := dict[open+len("'shape': ("):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return "", nil, fmt.Errorf("%w: unterminated shape", ErrUnsupported)
	}
	for _, part := range strings.Split(rest[:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return "", nil, fmt.Errorf("npz: bad shape dimension %q: %w", part, err)
		}
		shape = append(shape, dim)
	}
	return descr, shape, nil
}

func quotedField(dict, key string) (string, error) {
	marker := "'" + key + "': '"
	open := strings.Index(dict, marker)
	if open < 0 {
		return "", fmt.Errorf("%w: missing %s", ErrUnsupported, key)
	}
	rest := dict[open+len(marker):]
	end := strings.Index(rest, "'")
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated %s", ErrUnsupported, key)
	}
	return rest[:end], nil
}

// itemSize derives the per-element byte size from a dtype descr.
func itemSize(descr string) (int, error) {
	if len(descr) < 2 {
		return 0, fmt.Errorf("%w: descr %q", ErrUnsupported, descr)
	}
	digits := descr[2:]
	if digits == "" {
		return 0, fmt.Errorf("%w: descr %q", ErrUnsupported, descr)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: descr %q", ErrUnsupported, descr)
	}
	return n, nil
}

func elementCount(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}
