package distaux

import (
	"image/color"

	math "github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/glgl/math/ms3"
)

// HSV interpolation helpers follow Esme Lamb's (@dedelala) color work
// presented at Gophercon AU 2024.
// https://github.com/dedelala/disco/tree/main/color

var red = color.RGBA{R: 255, A: 255}

// ColorConversionInigoQuilez returns a distance to color conversion in [Inigo Quilez]'s
// style: orange outside, blue inside, banded by distance with a white iso line.
// A good characteristic distance is a third of the field width in samples.
// NaN and infinite distances map to red.
//
// [Inigo Quilez]: https://iquilezles.org/articles/distfunctions2d/
func ColorConversionInigoQuilez(characteristicDistance float32) func(float32) color.Color {
	inv := 1 / characteristicDistance
	one := ms3.Vec{X: 1, Y: 1, Z: 1}
	return func(d float32) color.Color {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return red
		}
		d *= inv
		var c ms3.Vec
		if d > 0 {
			c = ms3.Vec{X: 0.9, Y: 0.6, Z: 0.3}
		} else {
			c = ms3.Vec{X: 0.65, Y: 0.85, Z: 1.0}
		}
		c = ms3.Scale(1-math.Exp(-6*math.Abs(d)), c)
		c = ms3.Scale(0.8+0.2*math.Cos(150*d), c)
		edge := 1 - ms1.SmoothStep(0, 0.01, math.Abs(d))
		c = ms3.InterpElem(c, one, ms3.Vec{X: edge, Y: edge, Z: edge})
		return color.RGBA{
			R: uint8(ms1.Clamp(c.X, 0, 1) * 255),
			G: uint8(ms1.Clamp(c.Y, 0, 1) * 255),
			B: uint8(ms1.Clamp(c.Z, 0, 1) * 255),
			A: 255,
		}
	}
}

// ColorConversionLinearGradient returns a conversion blending from c0 to c1
// over gradientLength centered on d=0. Distances below the band give c0 and
// above it c1.
func ColorConversionLinearGradient(gradientLength float32, c0, c1 color.Color) func(d float32) color.Color {
	if c0 == color.Black && c1 == color.White {
		return grayLinear(gradientLength)
	}
	hsv0, hsv1 := toHSV(c0), toHSV(c1)
	return func(d float32) color.Color {
		blend := d/gradientLength + 0.5
		if blend <= 0 || math.IsNaN(blend) {
			return c0
		} else if blend >= 1 {
			return c1
		}
		return fromHSV(lerpHSV(hsv0, hsv1, blend))
	}
}

func grayLinear(edge float32) func(d float32) color.Color {
	if edge == 0 {
		return func(d float32) color.Color {
			if d < 0 {
				return color.Black
			}
			return color.White
		}
	}
	return func(d float32) color.Color {
		blend := d/edge + 0.5
		if blend <= 0 {
			return color.Black
		} else if blend >= 1 {
			return color.White
		}
		return color.Gray{Y: uint8(ms1.Clamp(blend, 0, 1) * 255)}
	}
}

// lerpHSV interpolates HSV triplets (X hue, Y saturation, Z value) along
// the shorter way around the hue circle.
func lerpHSV(a, b ms3.Vec, t float32) ms3.Vec {
	if b.X-a.X > 0.5 {
		a.X++
	} else if b.X-a.X < -0.5 {
		b.X++
	}
	hsv := ms3.InterpElem(a, b, ms3.Vec{X: t, Y: t, Z: t})
	if hsv.X > 1 {
		hsv.X--
	}
	return hsv
}

func toHSV(c color.Color) ms3.Vec {
	r0, g0, b0, _ := c.RGBA()
	r, g, b := float32(r0)/0xffff, float32(g0)/0xffff, float32(b0)/0xffff
	v := max(r, g, b)
	chroma := v - min(r, g, b)
	var h float32
	switch {
	case chroma == 0:
	case v == r:
		h = (g - b) / (6 * chroma)
	case v == g:
		h = 1.0/3 + (b-r)/(6*chroma)
	default:
		h = 2.0/3 + (r-g)/(6*chroma)
	}
	if h < 0 {
		h++
	}
	var s float32
	if v > 0 {
		s = chroma / v
	}
	return ms3.Vec{X: h, Y: s, Z: v}
}

func fromHSV(hsv ms3.Vec) color.RGBA {
	chroma := hsv.Y * hsv.Z
	x := chroma * (1 - math.Abs(math.Mod(hsv.X*6, 2)-1))
	var rgb ms3.Vec
	switch int(hsv.X*6) % 6 {
	case 0:
		rgb = ms3.Vec{X: chroma, Y: x}
	case 1:
		rgb = ms3.Vec{X: x, Y: chroma}
	case 2:
		rgb = ms3.Vec{Y: chroma, Z: x}
	case 3:
		rgb = ms3.Vec{Y: x, Z: chroma}
	case 4:
		rgb = ms3.Vec{X: x, Z: chroma}
	default:
		rgb = ms3.Vec{X: chroma, Z: x}
	}
	rgb = ms3.AddScalar(hsv.Z-chroma, rgb)
	return color.RGBA{
		R: uint8(ms1.Clamp(rgb.X, 0, 1) * 255),
		G: uint8(ms1.Clamp(rgb.Y, 0, 1) * 255),
		B: uint8(ms1.Clamp(rgb.Z, 0, 1) * 255),
		A: 255,
	}
}
