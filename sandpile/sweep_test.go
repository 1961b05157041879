package sandpile

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func fieldSum(buf []uint32) uint64 {
	var sum uint64
	for _, v := range buf {
		sum += uint64(v)
	}
	return sum
}

func TestSweepVisitsEveryInteriorCellOnce(t *testing.T) {
	const side = 12
	f := newField(side, 2)
	for i := range f.write {
		f.write[i] = 4
	}
	f.copyWriteToRead()

	// Every interior cell holds exactly the threshold, so each one topples
	// exactly once in the sweep and the margin cells never trigger.
	expect.EQ(t, f.sweep(), (side-2)*(side-2))

	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			interior := x >= margin && x < side-margin && y >= margin && y < side-margin
			want := uint32(0)
			if interior {
				want = 1
			}
			expect.EQ(t, f.count[y*side+x], want, "x=%d y=%d", x, y)
		}
	}
}

func TestSweepConservesMass(t *testing.T) {
	const side = 18
	f := newField(side, 2)
	f.write[5*side+5] = 1000
	f.write[9*side+11] = 77
	f.copyWriteToRead()

	before := fieldSum(f.write)
	for i := 0; i < 10; i++ {
		f.sweep()
		f.copyWriteToRead()
		expect.EQ(t, fieldSum(f.write), before, "sweep %d", i)
	}
}

func TestSweepCountMonotonic(t *testing.T) {
	const side = 18
	f := newField(side, 2)
	f.write[9*side+9] = 4096
	f.copyWriteToRead()

	prev := make([]uint32, len(f.count))
	for i := 0; i < 20; i++ {
		f.sweep()
		f.copyWriteToRead()
		for j := range f.count {
			if f.count[j] < prev[j] {
				t.Fatalf("count at %d decreased: %d -> %d", j, prev[j], f.count[j])
			}
		}
		copy(prev, f.count)
	}
}

func TestSweepUnevenSideCoverage(t *testing.T) {
	// A side that is not a multiple of the band height still updates every
	// interior row: trailing rows that fit no band in one phase are
	// covered by another phase.
	const side = 13
	f := newField(side, 2)
	for y := margin; y < side-margin; y++ {
		f.write[y*side+6] = 4
	}
	f.copyWriteToRead()

	expect.EQ(t, f.sweep(), side-2*margin)
}
