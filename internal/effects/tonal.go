// Package effects implements the per-pixel transforms applied to frames.
// Every transform returns a new frame and leaves its input untouched.
package effects

import (
	"image"
	"math"
)

// LUT maps each 8-bit channel value to its transformed value.
type LUT [256]uint8

// Identity returns the LUT that maps every value to itself.
func Identity() LUT {
	var l LUT
	for i := range l {
		l[i] = uint8(i)
	}
	return l
}

// LuminanceContrast shifts by 255·brightness and scales the distance from
// mid grey (127) by contrast.
func LuminanceContrast(brightness, contrast float64) LUT {
	return build(func(v float64) float64 {
		return v + 255*brightness + contrast*(v-127)
	})
}

// Gamma applies 255·(v/255)^gamma.
func Gamma(gamma float64) LUT {
	return build(func(v float64) float64 {
		return 255 * math.Pow(v/255, gamma)
	})
}

// Gain multiplies by g.
func Gain(g float64) LUT {
	return build(func(v float64) float64 { return v * g })
}

// Then returns the LUT equivalent to applying l and then next.
func (l LUT) Then(next LUT) LUT {
	var out LUT
	for i, v := range l {
		out[i] = next[v]
	}
	return out
}

func build(fn func(float64) float64) LUT {
	var l LUT
	for i := range l {
		l[i] = clamp8(fn(float64(i)))
	}
	return l
}

// clamp8 rounds to the nearest integer and saturates to 0..255.
func clamp8(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}

// ChannelLUT holds one table per colour channel. Alpha is never touched.
type ChannelLUT struct {
	R, G, B LUT
}

// Uniform applies l to all three colour channels.
func Uniform(l LUT) ChannelLUT {
	return ChannelLUT{R: l, G: l, B: l}
}

// IdentityChannels is the ChannelLUT that changes nothing.
func IdentityChannels() ChannelLUT {
	return Uniform(Identity())
}

// Then composes per channel.
func (c ChannelLUT) Then(next ChannelLUT) ChannelLUT {
	return ChannelLUT{R: c.R.Then(next.R), G: c.G.Then(next.G), B: c.B.Then(next.B)}
}

// Apply returns a new frame with the tables applied to every pixel.
func (c ChannelLUT) Apply(src *image.RGBA) *image.RGBA {
	dst, each := prepare(src)
	each(func(s, d []uint8) {
		d[0] = c.R[s[0]]
		d[1] = c.G[s[1]]
		d[2] = c.B[s[2]]
		d[3] = s[3]
	})
	return dst
}
