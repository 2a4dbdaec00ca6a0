package effects

import (
	"image"
	"math"
)

// prepare allocates an origin-based frame the size of src and returns it with
// an iterator that visits every source/destination pixel pair as 4-byte
// slices.
func prepare(src *image.RGBA) (*image.RGBA, func(func(s, d []uint8))) {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	each := func(fn func(s, d []uint8)) {
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < b.Dx(); x++ {
				fn(src.Pix[si:si+4:si+4], dst.Pix[di:di+4:di+4])
				si += 4
				di += 4
			}
		}
	}
	return dst, each
}

// Grayscale sets every colour channel to the BT.601 luma
// 0.299R + 0.587G + 0.114B.
func Grayscale(src *image.RGBA) *image.RGBA {
	dst, each := prepare(src)
	each(func(s, d []uint8) {
		y := uint8(math.Round(0.299*float64(s[0]) + 0.587*float64(s[1]) + 0.114*float64(s[2])))
		d[0], d[1], d[2], d[3] = y, y, y, s[3]
	})
	return dst
}

// Invert maps every colour channel v to 255-v.
func Invert(src *image.RGBA) *image.RGBA {
	dst, each := prepare(src)
	each(func(s, d []uint8) {
		d[0], d[1], d[2], d[3] = 255-s[0], 255-s[1], 255-s[2], s[3]
	})
	return dst
}

// MirrorHorizontal flips the frame left to right.
func MirrorHorizontal(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			copy(row[(w-1-x)*4:(w-x)*4], src.Pix[si+x*4:si+x*4+4])
		}
	}
	return dst
}
