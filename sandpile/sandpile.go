package sandpile

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

const (
	// toppleAmount is the threshold at which a cell redistributes its
	// grains, and the number of grains moved per redistribution unit.
	toppleAmount = 4
	// bandH is the height of a scheduler row-band. Each topple reaches one
	// row up and one row down, so a band fully contains the writes of its
	// interior row.
	bandH = 3
	// margin is the number of outermost rows/columns the kernel never
	// treats as interior.
	margin = bandH / 2

	// MaxInitialValue is the largest initial cell value for which the
	// per-cell 32-bit accumulators cannot overflow during a sweep.
	MaxInitialValue = uint32(1) << 31
)

// InitialCell is one seeded grid cell. Positions are nonnegative and must
// be distinct within a configuration; the engine recenters the
// configuration, so only relative positions are meaningful.
type InitialCell struct {
	X     int
	Y     int
	Value uint32
}

// FractalResult is an immutable snapshot of a stabilized sandpile.
type FractalResult struct {
	// InitialConfiguration is the configuration the engine was invoked
	// with, in input order.
	InitialConfiguration []InitialCell
	// SandData holds the stabilized grid in row-major order. Every cell is
	// in [0, 3] at termination, so 8 bits suffice.
	SandData []uint8
	// CountData[i] is the number of times cell i toppled, same shape and
	// indexing as SandData.
	CountData []uint32
	// SideLength is the final (post-reallocation) grid side.
	SideLength int

	// TotalRedistributions is the number of cell topples summed over all
	// sweeps. A cell applying the batched rule counts once per sweep
	// regardless of how many grains it moved.
	TotalRedistributions int64
	// TotalIterations is the number of sweeps run, including the final
	// sweep that reported zero redistributions.
	TotalIterations int
}

// ConfigsEqual reports whether two configurations are element-wise equal,
// including order.
func ConfigsEqual(a, b []InitialCell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validateConfiguration checks the driver entry preconditions.
func validateConfiguration(initial []InitialCell) error {
	if len(initial) == 0 {
		return errors.E("sandpile: empty initial configuration")
	}
	seen := make(map[[2]int]bool, len(initial))
	for _, c := range initial {
		if c.X < 0 || c.Y < 0 {
			return fmt.Errorf("sandpile: negative cell position (%d,%d)", c.X, c.Y)
		}
		if c.Value > MaxInitialValue {
			return fmt.Errorf("sandpile: initial value %d at (%d,%d) exceeds %d", c.Value, c.X, c.Y, MaxInitialValue)
		}
		pos := [2]int{c.X, c.Y}
		if seen[pos] {
			return fmt.Errorf("sandpile: duplicate cell position (%d,%d)", c.X, c.Y)
		}
		seen[pos] = true
	}
	return nil
}
