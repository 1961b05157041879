package sandpile

import (
	"github.com/grailbio/base/traverse"
)

// sweep runs one full pass of the topple kernel over the grid and returns
// the number of redistributions it performed.
//
// The grid is partitioned into bandH-row bands three times, once per
// phase, with the partition origin shifted down one row each phase. A
// band's kernel writes only within the band, and within one phase the
// dispatched bands are disjoint, so the phase can fan out across workers
// with no locks; the phases themselves run sequentially. Across the three
// phases every interior row is the middle row of exactly one band, so
// each cell is updated exactly once per sweep.
func (f *field) sweep() int {
	side := f.side
	total := 0
	for phase := 0; phase < bandH; phase++ {
		offset := phase * side
		// Bands that would extend past the bottom edge are skipped; the
		// middle row of such a band is the bottom margin row or lies off
		// the grid, so no interior row is lost.
		numBands := (side - phase) / bandH
		if numBands == 0 {
			continue
		}
		redist := make([]int, numBands)
		_ = traverse.Each(numBands, func(k int) error { // nolint: errcheck
			start := offset + k*bandH*side
			end := start + bandH*side
			redist[k] = processBand(f.read[start:end], f.write[start:end], f.count[start:end], side)
			return nil
		})
		for _, r := range redist {
			total += r
		}
	}
	return total
}
