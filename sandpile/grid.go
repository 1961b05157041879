package sandpile

import (
	"github.com/grailbio/base/traverse"
)

// field bundles the three equally-shaped square buffers the driver owns
// through iteration. write holds the current state; read is the previous
// sweep's consistent snapshot of it; count accumulates per-cell topples.
//
// Outside a sweep, read and write are bit-identical. During a sweep the
// kernel reads read and applies deltas to write, so write is the
// delta-updated successor of read until the next copy or reallocation.
type field struct {
	side  int
	read  []uint32
	write []uint32
	count []uint32

	// copyShards is the fan-out used for bulk buffer copies.
	copyShards int
}

func newField(side, copyShards int) *field {
	return &field{
		side:       side,
		read:       make([]uint32, side*side),
		write:      make([]uint32, side*side),
		count:      make([]uint32, side*side),
		copyShards: copyShards,
	}
}

// copyWriteToRead restores the read == write invariant after a sweep that
// did not trigger a bounds check.
func (f *field) copyWriteToRead() {
	copyChunks(f.read, f.write, f.copyShards)
}

// copyChunks is a sharded bulk copy of src into dst.
func copyChunks(dst, src []uint32, shards int) {
	n := len(src)
	if shards > n {
		shards = n
	}
	_ = traverse.Each(shards, func(i int) error { // nolint: errcheck
		start := i * n / shards
		end := (i + 1) * n / shards
		copy(dst[start:end], src[start:end])
		return nil
	})
}

// bounds returns the axis-aligned bounding box of cells in write whose
// value is at least threshold, via four directional raster scans that
// short-circuit on the first hit. ok is false when no such cell exists.
func (f *field) bounds(threshold uint32) (minX, minY, maxX, maxY int, ok bool) {
	side := f.side

	minY = -1
scanMinY:
	for y := 0; y < side; y++ {
		row := f.write[y*side : (y+1)*side]
		for x := 0; x < side; x++ {
			if row[x] >= threshold {
				minY = y
				break scanMinY
			}
		}
	}
	if minY < 0 {
		return 0, 0, 0, 0, false
	}

scanMaxY:
	for y := side - 1; y >= minY; y-- {
		row := f.write[y*side : (y+1)*side]
		for x := side - 1; x >= 0; x-- {
			if row[x] >= threshold {
				maxY = y
				break scanMaxY
			}
		}
	}

	minX = side
scanMinX:
	for x := 0; x < side; x++ {
		for y := minY; y <= maxY; y++ {
			if f.write[y*side+x] >= threshold {
				minX = x
				break scanMinX
			}
		}
	}

scanMaxX:
	for x := side - 1; x >= minX; x-- {
		for y := maxY; y >= minY; y-- {
			if f.write[y*side+x] >= threshold {
				maxX = x
				break scanMaxX
			}
		}
	}

	return minX, minY, maxX, maxY, true
}
