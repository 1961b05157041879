package sandpile

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

// band builds a width x bandH band with the given middle-row values.
func band(width int, middle []uint32) []uint32 {
	b := make([]uint32, width*bandH)
	copy(b[width:], middle)
	return b
}

func TestProcessBandSingleTopple(t *testing.T) {
	const width = 5
	input := band(width, []uint32{0, 0, 4, 0, 0})
	output := append([]uint32(nil), input...)
	count := make([]uint32, len(input))

	expect.EQ(t, processBand(input, output, count, width), 1)

	want := []uint32{
		0, 0, 1, 0, 0,
		0, 1, 0, 1, 0,
		0, 0, 1, 0, 0,
	}
	expect.EQ(t, output, want)

	wantCount := make([]uint32, len(input))
	wantCount[width+2] = 1
	expect.EQ(t, count, wantCount)
}

func TestProcessBandBatchesMultiples(t *testing.T) {
	const width = 5
	input := band(width, []uint32{0, 0, 9, 0, 0})
	output := append([]uint32(nil), input...)
	count := make([]uint32, len(input))

	// 9 grains: d = 2 per neighbor, remainder 1, still one redistribution.
	expect.EQ(t, processBand(input, output, count, width), 1)
	expect.EQ(t, output[width+2], uint32(1))
	expect.EQ(t, output[width+1], uint32(2))
	expect.EQ(t, output[width+3], uint32(2))
	expect.EQ(t, output[2], uint32(2))
	expect.EQ(t, output[2*width+2], uint32(2))
	expect.EQ(t, count[width+2], uint32(1))
}

func TestProcessBandMarginColumns(t *testing.T) {
	const width = 4
	// Values of 4+ in the margin columns of the middle row must not
	// topple.
	input := band(width, []uint32{7, 0, 0, 7})
	output := append([]uint32(nil), input...)
	count := make([]uint32, len(input))

	expect.EQ(t, processBand(input, output, count, width), 0)
	expect.EQ(t, output, input)
	expect.EQ(t, count, make([]uint32, len(input)))
}

func TestProcessBandConservesMass(t *testing.T) {
	const width = 8
	input := band(width, []uint32{0, 12, 5, 4, 100, 3, 0, 0})
	output := append([]uint32(nil), input...)
	count := make([]uint32, len(input))

	expect.EQ(t, processBand(input, output, count, width), 4)

	var inSum, outSum uint64
	for i := range input {
		inSum += uint64(input[i])
		outSum += uint64(output[i])
	}
	expect.EQ(t, outSum, inSum)
}

func TestProcessBandBadShape(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for mismatched band slices")
		}
	}()
	processBand(make([]uint32, 15), make([]uint32, 15), make([]uint32, 10), 5)
}
