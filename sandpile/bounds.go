package sandpile

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

const (
	// minSize is the smallest side the reallocator will produce.
	minSize = 120
	// sizeStep is the minimum amount a reallocation grows the side by.
	sizeStep = 8
	// sizeMult rounds reallocated sides so bandH-row bands tile evenly in
	// every phase of the sweep schedule.
	sizeMult = 2 * bandH
)

// maybeReallocate enforces the margin invariant: after it returns, every
// cell that can topple is far enough from the grid edge that its
// neighbor writes stay in bounds for at least the returned number of
// sweeps.
//
// It locates the active region (cells >= toppleAmount) and measures its
// distance to the nearest edge. With enough slack it only restores the
// read buffer and returns half the slack as the new countdown; the
// topple front advances at most one cell per sweep, so the bounds scan
// cost is amortized over closest/2 iterations. Otherwise it allocates
// larger zeroed buffers, copies the active region to the center of the
// new grid, and returns a quarter of the added width.
//
// When no cell can topple, the nonzero support is used as the region
// instead, so a configuration that is already stable is still recentered
// by the driver's unconditional first call.
func (f *field) maybeReallocate() int {
	minX, minY, maxX, maxY, ok := f.bounds(toppleAmount)
	if !ok {
		minX, minY, maxX, maxY, ok = f.bounds(1)
		if !ok {
			// Nothing to recenter on an all-zero grid.
			return 1
		}
	}

	closestY := minY
	if d := f.side - 1 - maxY; d < closestY {
		closestY = d
	}
	closestX := minX
	if d := f.side - 1 - maxX; d < closestX {
		closestX = d
	}
	closest := closestX
	if closestY < closest {
		closest = closestY
	}

	if closest > margin {
		f.copyWriteToRead()
		return closest / 2
	}

	oldSide := f.side
	newSide := oldSide + sizeStep
	if newSide < minSize {
		newSide = minSize
	}
	if rem := newSide % sizeMult; rem != 0 {
		newSide += sizeMult - rem
	}

	sizeX := maxX - minX + 1
	sizeY := maxY - minY + 1
	newXBegin := newSide/2 - sizeX/2
	newYBegin := newSide/2 - sizeY/2

	if log.At(log.Debug) {
		log.Debug.Printf("sandpile: reallocating %d -> %d, region %dx%d at (%d,%d)",
			oldSide, newSide, sizeX, sizeY, minX, minY)
	}

	newWrite := make([]uint32, newSide*newSide)
	newCount := make([]uint32, newSide*newSide)

	// The sand and count regions are independent; copy them as two
	// parallel tasks.
	_ = traverse.Each(2, func(task int) error { // nolint: errcheck
		src, dst := f.write, newWrite
		if task == 1 {
			src, dst = f.count, newCount
		}
		for y := 0; y < sizeY; y++ {
			oldRow := src[(minY+y)*oldSide+minX : (minY+y)*oldSide+minX+sizeX]
			newRow := dst[(newYBegin+y)*newSide+newXBegin : (newYBegin+y)*newSide+newXBegin+sizeX]
			copy(newRow, oldRow)
		}
		return nil
	})

	newRead := make([]uint32, newSide*newSide)
	copyChunks(newRead, newWrite, f.copyShards)

	f.side = newSide
	f.write = newWrite
	f.read = newRead
	f.count = newCount

	return (newSide - oldSide) / 4
}
