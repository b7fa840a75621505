package dem

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"gonum.org/v1/gonum/mat"
)

// terrariumOffset is added to elevations before RGB packing.
const terrariumOffset = 32768.0

// DecodeTerrarium decodes a Terrarium-encoded PNG into elevations in
// metres: R*256 + G + B/256 - 32768. Fully transparent pixels are NaN.
func DecodeTerrarium(data []byte) (*mat.Dense, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode terrarium png: %w", err)
	}
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("decode terrarium png: empty image")
	}

	out := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if c.A == 0 {
				out.Set(y, x, math.NaN())
				continue
			}
			out.Set(y, x, float64(c.R)*256+float64(c.G)+float64(c.B)/256-terrariumOffset)
		}
	}
	return out, nil
}

// EncodeTerrarium packs elevations into a Terrarium PNG. NaN cells become
// transparent. Values are clamped to the encodable range.
func EncodeTerrarium(grid mat.Matrix) ([]byte, error) {
	rows, cols := grid.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := grid.At(y, x)
			if math.IsNaN(v) {
				img.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			v = math.Max(0, math.Min(65535+255.0/256, v+terrariumOffset))
			whole := math.Floor(v)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(int(whole) >> 8),
				G: uint8(int(whole) & 0xff),
				B: uint8(math.Floor((v - whole) * 256)),
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode terrarium png: %w", err)
	}
	return buf.Bytes(), nil
}
