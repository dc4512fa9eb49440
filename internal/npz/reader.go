// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package npz

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// Array is one decoded NPY entry.
type Array struct {
	Descr string
	Shape []int
	Raw   []byte // little-endian payload
}

// Len returns the element count implied by the shape.
func (a Array) Len() int {
	return elementCount(a.Shape)
}

// Float32 decodes the payload as float32 values.
func (a Array) Float32() ([]float32, error) {
	if a.Descr != descrFloat32 {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrUnsupported, descrFloat32, a.Descr)
	}
	n := a.Len()
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(a.Raw[4*i:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// Bool decodes the payload as bool values.
func (a Array) Bool() ([]bool, error) {
	if a.Descr != descrBool {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrUnsupported, descrBool, a.Descr)
	}
	out := make([]bool, len(a.Raw))
	for i, b := range a.Raw {
		out[i] = b != 0
	}
	return out, nil
}

// Bytes returns the payload of a byte-string array.
func (a Array) Bytes() ([]byte, error) {
	if !strings.HasPrefix(a.Descr, "|S") {
		return nil, fmt.Errorf("%w: want |S, have %s", ErrUnsupported, a.Descr)
	}
	return a.Raw, nil
}

// Read decodes every array in an NPZ archive, keyed by entry name without
// the .npy suffix.
func Read(r io.ReaderAt, size int64) (map[string]Array, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("npz: opening archive: %w", err)
	}

	arrays := make(map[string]Array, len(zr.File))
	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, ".npy")
		if name == f.Name {
			continue // not an array entry
		}
		arr, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("npz: entry %q: %w", f.Name, err)
		}
		arrays[name] = arr
	}
	return arrays, nil
}

func readEntry(f *zip.File) (Array, error) {
	rc, err := f.Open()
	if err != nil {
		return Array{}, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return Array{}, err
	}
	if len(raw) < 10 || !bytes.HasPrefix(raw, npyMagic) {
		return Array{}, ErrBadMagic
	}
	major := raw[6]
	if major != 1 {
		return Array{}, fmt.Errorf("%w: NPY version %d", ErrUnsupported, major)
	}
	hlen := int(raw[8]) | int(raw[9])<<8
	if len(raw) < 10+hlen {
		return Array{}, fmt.Errorf("%w: truncated header", ErrUnsupported)
	}

	descr, shape, err := parseHeader(string(raw[10 : 10+hlen]))
	if err != nil {
		return Array{}, err
	}
	itm, err := itemSize(descr)
	if err != nil {
		return Array{}, err
	}

	payload := raw[10+hlen:]
	if want := elementCount(shape) * itm; len(payload) < want {
		return Array{}, fmt.Errorf("npz: payload %d bytes, want %d", len(payload), want)
	}
	return Array{Descr: descr, Shape: shape, Raw: payload[:elementCount(shape)*itm]}, nil
}
