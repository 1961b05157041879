package sandpile

import (
	"github.com/grailbio/base/log"
)

// processBand applies the batched topple rule to the interior of one
// row-band.
//
// input, output and count are the band's slices of the read, write and
// count grids; all three must have length width*bandRows with bandRows >=
// bandH. Interior cells are those at least margin rows/columns away from
// every band edge. For each interior cell holding v >= toppleAmount, the
// band moves d = v/4 grains to each 4-neighbor in one step; the automaton
// is abelian, so the batched update stabilizes to the same configuration
// as repeated single topples while visiting hot cells far fewer times.
//
// Every write lands inside the band: the reach of a topple is +-1 row and
// the toppling cell is at least one row from the band edge. That is what
// lets the scheduler run non-adjacent bands concurrently.
//
// The return value is the number of interior cells that toppled, not the
// number of grains moved.
func processBand(input, output, count []uint32, width int) int {
	if len(input) != len(output) || len(input) != len(count) {
		log.Panicf("sandpile: band slice lengths differ: %d, %d, %d", len(input), len(output), len(count))
	}
	bandRows := len(input) / width
	if bandRows*width != len(input) || bandRows < bandH {
		log.Panicf("sandpile: band length %d is not width %d x rows >= %d", len(input), width, bandH)
	}

	redistributions := 0
	for row := margin; row < bandRows-margin; row++ {
		// The row interior excludes the outermost margin columns, so i-1 and
		// i+1 below stay in the row and i-width/i+width stay in the band.
		rowStart := row*width + margin
		rowEnd := (row+1)*width - margin
		for i := rowStart; i < rowEnd; i++ {
			v := input[i]
			if v < toppleAmount {
				continue
			}
			redistributions++
			count[i]++

			d := v / toppleAmount

			output[i-width] += d

			output[i-1] += d
			output[i] -= d * toppleAmount
			output[i+1] += d

			output[i+width] += d
		}
	}
	return redistributions
}
