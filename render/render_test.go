package render

import (
	"image/color"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/sandpile/sandpile"
)

func testResult() *sandpile.FractalResult {
	return &sandpile.FractalResult{
		InitialConfiguration: []sandpile.InitialCell{{X: 0, Y: 0, Value: 6}},
		SandData:             []uint8{0, 1, 2, 3},
		CountData:            []uint32{0, 1, 2, 3},
		SideLength:           2,
	}
}

func TestImagePalette(t *testing.T) {
	img := Image(testResult())

	assert.Equal(t, color.RGBA{0, 0, 0, 0xff}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 0, 0xff, 0xff}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{0xff, 0xff, 0, 0xff}, img.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{0xff, 0, 0, 0xff}, img.RGBAAt(1, 1))
}

func TestRingsClampsExtremes(t *testing.T) {
	img := Rings(testResult())

	// sand 0 with count 0 is fully dark and clamps to black.
	assert.Equal(t, color.RGBA{0, 0, 0, 0xff}, img.RGBAAt(0, 0))
	// sand 3 saturates red and clamps to black as well.
	assert.Equal(t, color.RGBA{0, 0, 0, 0xff}, img.RGBAAt(1, 1))
	// sand 1, count 1: partial rings stay colored.
	got := img.RGBAAt(1, 0)
	assert.NotEqual(t, color.RGBA{0, 0, 0, 0xff}, got)
	assert.Equal(t, uint8(85), got.R)
}

func TestWritePNG(t *testing.T) {
	dir, err := ioutil.TempDir("", "sandpile-render")
	require.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck
	path := filepath.Join(dir, "out.png")

	require.NoError(t, WritePNG(path, Image(testResult())))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() // nolint: errcheck
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestWriteCountsTSV(t *testing.T) {
	dir, err := ioutil.TempDir("", "sandpile-render")
	require.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck

	plain := filepath.Join(dir, "counts.tsv")
	require.NoError(t, WriteCountsTSV(plain, testResult()))
	data, err := ioutil.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "0\t1\n2\t3\n", string(data))

	gzPath := filepath.Join(dir, "counts.tsv.gz")
	require.NoError(t, WriteCountsTSV(gzPath, testResult()))
	f, err := os.Open(gzPath)
	require.NoError(t, err)
	defer f.Close() // nolint: errcheck
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	unzipped, err := ioutil.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "0\t1\n2\t3\n", string(unzipped))
	assert.True(t, strings.HasSuffix(gzPath, ".gz"))
}
