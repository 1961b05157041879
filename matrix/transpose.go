// Package matrix provides dense square-matrix helpers for flat row-major
// buffers.
package matrix

import (
	"math"

	"github.com/grailbio/base/log"
)

// BlockSize is the tile side used by TransposeSquareInPlace. Correctness
// does not depend on its value; 8x8 uint32 tiles (two 256-byte working
// sets) stay comfortably inside L1.
const BlockSize = 8

// sideLength validates that buffer is a flat square whose side is a
// multiple of BlockSize and returns the side.
func sideLength(buffer []uint32) int {
	side := int(math.Sqrt(float64(len(buffer))))
	if side*side != len(buffer) {
		log.Panicf("matrix: buffer length %d is not a perfect square", len(buffer))
	}
	if side%BlockSize != 0 {
		log.Panicf("matrix: side %d is not a multiple of %d", side, BlockSize)
	}
	return side
}

// transposeBlock swaps tile (blockX, blockY) with tile (blockY, blockX).
// Only called for blockX > blockY, so the two tiles never overlap.
func transposeBlock(buffer []uint32, side, blockX, blockY int) {
	for innerX := 0; innerX < BlockSize; innerX++ {
		for innerY := 0; innerY < BlockSize; innerY++ {
			x := blockX*BlockSize + innerX
			y := blockY*BlockSize + innerY

			i := y*side + x
			j := x*side + y
			buffer[i], buffer[j] = buffer[j], buffer[i]
		}
	}
}

// transposeDiagonalBlock transposes a tile that straddles the main
// diagonal by swapping only its strictly-upper-triangular entries.
func transposeDiagonalBlock(buffer []uint32, side, diagonal int) {
	for innerX := 0; innerX < BlockSize; innerX++ {
		for innerY := innerX + 1; innerY < BlockSize; innerY++ {
			x := diagonal*BlockSize + innerX
			y := diagonal*BlockSize + innerY

			i := y*side + x
			j := x*side + y
			buffer[i], buffer[j] = buffer[j], buffer[i]
		}
	}
}

// TransposeSquareInPlace transposes a flat row-major square matrix in
// place, visiting it tile by tile so the working set stays cache-resident
// for large sides. The buffer length must be a perfect square whose side
// is a multiple of BlockSize.
func TransposeSquareInPlace(buffer []uint32) {
	side := sideLength(buffer)
	blocks := side / BlockSize

	for blockY := 0; blockY < blocks; blockY++ {
		transposeDiagonalBlock(buffer, side, blockY)
		for blockX := blockY + 1; blockX < blocks; blockX++ {
			transposeBlock(buffer, side, blockX, blockY)
		}
	}
}
