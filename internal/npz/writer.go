// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package npz

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer emits an NPZ archive one named array at a time.
type Writer struct {
	zw *zip.Writer
}

// NewWriter creates an NPZ writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// Float32 writes a little-endian float32 array with the given shape.
func (w *Writer) Float32(name string, shape []int, data []float32) error {
	if elementCount(shape) != len(data) {
		return fmt.Errorf("npz: array %q: shape %v does not hold %d elements", name, shape, len(data))
	}
	entry, err := w.begin(name, descrFloat32, shape)
	if err != nil {
		return err
	}
	if err := binary.Write(entry, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("npz: writing %q: %w", name, err)
	}
	return nil
}

// Bool writes a 1-D bool array, one byte per element.
func (w *Writer) Bool(name string, data []bool) error {
	entry, err := w.begin(name, descrBool, []int{len(data)})
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	for i, v := range data {
		if v {
			buf[i] = 1
		}
	}
	if _, err := entry.Write(buf); err != nil {
		return fmt.Errorf("npz: writing %q: %w", name, err)
	}
	return nil
}

// Bytes writes a scalar byte-string array (dtype |S<len>), the encoding
// used for the JSON metadata record.
func (w *Writer) Bytes(name string, data []byte) error {
	descr := fmt.Sprintf("|S%d", len(data))
	entry, err := w.begin(name, descr, nil)
	if err != nil {
		return err
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("npz: writing %q: %w", name, err)
	}
	return nil
}

// Close finishes the zip directory. The underlying writer is not closed.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("npz: closing archive: %w", err)
	}
	return nil
}

// begin opens a stored (uncompressed) zip entry and writes the NPY header.
func (w *Writer) begin(name, descr string, shape []int) (io.Writer, error) {
	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name + ".npy",
		Method: zip.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("npz: creating entry %q: %w", name, err)
	}
	if _, err := entry.Write(buildHeader(descr, shape)); err != nil {
		return nil, fmt.Errorf("npz: writing header for %q: %w", name, err)
	}
	return entry, nil
}
