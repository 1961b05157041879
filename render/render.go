// Package render turns stabilized sandpile grids into images and text
// exports.
package render

import (
	"bufio"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/grailbio/sandpile/sandpile"
)

// palette is the default value mapping: 0 black, 1 blue, 2 yellow,
// 3 and above red.
var palette = [4]color.RGBA{
	{0x00, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xff, 0xff},
	{0xff, 0xff, 0x00, 0xff},
	{0xff, 0x00, 0x00, 0xff},
}

// Image renders result with the default per-value palette.
func Image(result *sandpile.FractalResult) *image.RGBA {
	side := result.SideLength
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for i, v := range result.SandData {
		if v > 3 {
			v = 3
		}
		c := palette[v]
		off := i * 4
		img.Pix[off] = c.R
		img.Pix[off+1] = c.G
		img.Pix[off+2] = c.B
		img.Pix[off+3] = c.A
	}
	return img
}

// Rings renders result with a banded palette that folds the topple
// counts into the green channel: sand value mod 4 drives red and blue,
// count mod 3 drives green, and fully saturated or fully dark cells are
// clamped to black to outline the rings.
func Rings(result *sandpile.FractalResult) *image.RGBA {
	side := result.SideLength
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for i, v := range result.SandData {
		sandRing := ringPercent(uint32(v), 4)
		red := clampToByte(256 * sandRing)
		green := clampToByte(256 * ringPercent(result.CountData[i], 3) * 0.9)
		blue := clampToByte(256*sandRing + 40)

		if red == 255 || (red == 0 && green == 0) {
			red, green, blue = 0, 0, 0
		}
		off := i * 4
		img.Pix[off] = red
		img.Pix[off+1] = green
		img.Pix[off+2] = blue
		img.Pix[off+3] = 0xff
	}
	return img
}

func ringPercent(v, ring uint32) float64 {
	return float64(v%ring) / float64(ring-1)
}

func clampToByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "render: create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close() // nolint: errcheck
		return errors.Wrapf(err, "render: encode %s", path)
	}
	return errors.Wrapf(f.Close(), "render: close %s", path)
}

// WriteCountsTSV writes the topple-count grid as one tab-separated row
// per line. A path ending in .gz is gzip-compressed.
func WriteCountsTSV(path string, result *sandpile.FractalResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "render: create %s", path)
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = errors.Wrapf(e, "render: close %s", path)
		}
	}()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	bw := bufio.NewWriter(w)

	side := result.SideLength
	for y := 0; y < side; y++ {
		row := result.CountData[y*side : (y+1)*side]
		for x, c := range row {
			if x > 0 {
				if err := bw.WriteByte('\t'); err != nil {
					return errors.Wrapf(err, "render: write %s", path)
				}
			}
			if _, err := bw.WriteString(strconv.FormatUint(uint64(c), 10)); err != nil {
				return errors.Wrapf(err, "render: write %s", path)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Wrapf(err, "render: write %s", path)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "render: flush %s", path)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrapf(err, "render: close gzip %s", path)
		}
	}
	return nil
}
