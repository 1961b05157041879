package matrix

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func randomSquare(side int, rng *rand.Rand) []uint32 {
	buf := make([]uint32, side*side)
	for i := range buf {
		buf[i] = rng.Uint32()
	}
	return buf
}

func TestTransposeSquareInPlace(t *testing.T) {
	rng := rand.New(rand.NewSource(1910))
	for i := 0; i < 5; i++ {
		side := i * BlockSize
		input := randomSquare(side, rng)

		transposed := append([]uint32(nil), input...)
		TransposeSquareInPlace(transposed)

		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				assert.Equal(t, input[y*side+x], transposed[x*side+y],
					"x=%d y=%d side=%d", x, y, side)
			}
		}
	}
}

func TestTransposeInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(11431))
	for _, side := range []int{8, 24, 64, 120} {
		input := randomSquare(side, rng)
		buf := append([]uint32(nil), input...)

		TransposeSquareInPlace(buf)
		TransposeSquareInPlace(buf)
		assert.Equal(t, input, buf, "side=%d", side)
	}
}

func TestTransposePanicsOnBadShape(t *testing.T) {
	assert.Panics(t, func() { TransposeSquareInPlace(make([]uint32, 7)) })
	// 6x6 is square but not a multiple of the block size.
	assert.Panics(t, func() { TransposeSquareInPlace(make([]uint32, 36)) })
}
