// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/catalog"
)

func addEntry(t *testing.T, c *catalog.Catalog, id, label string, frames int) catalog.Entry {
	t.Helper()
	e := catalog.Entry{
		ID:        id,
		Label:     label,
		Path:      "/tmp/" + label + ".npz",
		StartTime: time.Date(2026, 3, 14, 15, 9, 2, 0, time.UTC),
		Duration:  float64(frames) / 200.0,
		Frames:    frames,
	}
	require.NoError(t, c.Add(context.Background(), e))
	// created_at orders List output, keep inserts apart
	time.Sleep(5 * time.Millisecond)
	return e
}

func TestCatalogAddListGet(t *testing.T) {
	c, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()

	first := addEntry(t, c, "aaaa1111-0000-0000-0000-000000000001", "fist", 400)
	addEntry(t, c, "aaab2222-0000-0000-0000-000000000002", "open", 200)
	addEntry(t, c, "bbbb3333-0000-0000-0000-000000000003", "pinch", 600)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "pinch", list[0].Label, "newest first")
	require.Equal(t, "fist", list[2].Label)

	got, err := c.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, first.Label, got.Label)
	require.Equal(t, first.Path, got.Path)
	require.Equal(t, first.Frames, got.Frames)
	require.InDelta(t, first.Duration, got.Duration, 1e-9)
	require.True(t, got.StartTime.Equal(first.StartTime))
	require.WithinDuration(t, time.Now(), got.CreatedAt, 10*time.Second)

	// A unique prefix resolves, an ambiguous one is refused.
	got, err = c.Get(ctx, "bbbb")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "pinch", got.Label)

	_, err = c.Get(ctx, "aaa")
	require.ErrorContains(t, err, "ambiguous")

	got, err = c.Get(ctx, "zzzz")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCatalogRemove(t *testing.T) {
	c, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	e := addEntry(t, c, "cccc4444-0000-0000-0000-000000000004", "wave", 100)

	removed, err := c.Remove(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = c.Remove(ctx, e.ID)
	require.NoError(t, err)
	require.False(t, removed)

	got, err := c.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCatalogWriterLock(t *testing.T) {
	dir := t.TempDir()

	c, err := catalog.Open(dir)
	require.NoError(t, err)

	_, err = catalog.Open(dir)
	require.ErrorIs(t, err, catalog.ErrLocked)

	// Readers never contend with the producer's lock.
	ro, err := catalog.OpenReadOnly(dir)
	require.NoError(t, err)
	require.NoError(t, ro.Close())

	require.NoError(t, c.Close())

	c2, err := catalog.Open(dir)
	require.NoError(t, err)
	require.NoError(t, c2.Close())
}
