// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package npz_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/npz"
)

func TestFloat32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := npz.NewWriter(&buf)

	values := []float32{1.5, -2.25, 0, 3.75, 100, -0.001}
	require.NoError(t, w.Float32("emg", []int{2, 3}, values))
	require.NoError(t, w.Close())

	arrays, err := npz.Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, arrays, 1)

	arr, ok := arrays["emg"]
	require.True(t, ok)
	require.Equal(t, []int{2, 3}, arr.Shape)
	require.Equal(t, 6, arr.Len())

	got, err := arr.Float32()
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestBoolAndBytesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := npz.NewWriter(&buf)

	flags := []bool{true, false, true, true}
	meta := []byte(`{"gesture_label":"fist","num_frames":4}`)
	require.NoError(t, w.Bool("valid", flags))
	require.NoError(t, w.Bytes("metadata", meta))
	require.NoError(t, w.Close())

	arrays, err := npz.Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, arrays, 2)

	gotFlags, err := arrays["valid"].Bool()
	require.NoError(t, err)
	require.Equal(t, flags, gotFlags)
	require.Equal(t, []int{4}, arrays["valid"].Shape)

	gotMeta, err := arrays["metadata"].Bytes()
	require.NoError(t, err)
	require.Equal(t, meta, gotMeta)
}

func TestFloat32RejectsShapeMismatch(t *testing.T) {
	w := npz.NewWriter(&bytes.Buffer{})
	err := w.Float32("x", []int{2, 2}, []float32{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeWithWrongTypeFails(t *testing.T) {
	var buf bytes.Buffer
	w := npz.NewWriter(&buf)
	require.NoError(t, w.Bool("valid", []bool{true}))
	require.NoError(t, w.Close())

	arrays, err := npz.Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	_, err = arrays["valid"].Float32()
	require.ErrorIs(t, err, npz.ErrUnsupported)
}

func TestReadRejectsNonNpyPayload(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("broken.npy")
	require.NoError(t, err)
	_, err = entry.Write([]byte("this is not an NPY array"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = npz.Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.ErrorIs(t, err, npz.ErrBadMagic)
}

func TestReadIgnoresNonArrayEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("notes"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	arrays, err := npz.Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Empty(t, arrays)
}
