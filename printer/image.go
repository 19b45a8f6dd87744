package printer

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// rasterImage scales img to width x height dots, offsets it by x, y blank
// dots and encodes it as a GS v 0 raster bit image. Pixels darker than
// mid-grey print.
func rasterImage(img image.Image, x, y, width, height, maxWidth int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	bounds := img.Bounds()
	if width <= 0 {
		width = bounds.Dx()
	}
	if height <= 0 {
		height = bounds.Dy()
	}
	x = clamp(x, 0, maxWidth)
	if maxWidth > 0 && x+width > maxWidth {
		scaled := maxWidth - x
		height = height * scaled / width
		width = scaled
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New("image has no printable area")
	}
	y = clamp(y, 0, 0xFFFF)

	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(gray, gray.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, bounds, draw.Over, nil)

	totalWidth := x + width
	rowBytes := (totalWidth + 7) / 8
	rows := y + height

	xl, xh := le16(rowBytes)
	yl, yh := le16(rows)
	out := make([]byte, 0, 8+rowBytes*rows)
	out = append(out, GS, 'v', '0', 0, xl, xh, yl, yh)

	data := make([]byte, rowBytes*rows)
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			if gray.GrayAt(px, py).Y < 128 {
				col := x + px
				data[(y+py)*rowBytes+col/8] |= 0x80 >> uint(col%8)
			}
		}
	}
	return append(out, data...), nil
}
