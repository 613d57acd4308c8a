package distaux

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/raster"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/parallel"
	"golang.org/x/image/math/fixed"
)

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// ImageRenderer converts distance fields to images.
type ImageRenderer struct {
	conv func(float32) color.Color
}

// NewImageRenderer returns an ImageRenderer using conversion to color each
// distance. A nil conversion colors negative distances black and the rest
// white, with NaN and infinities in red.
func NewImageRenderer(conversion func(float32) color.Color) *ImageRenderer {
	if conversion == nil {
		conversion = func(f float32) color.Color {
			switch {
			case math32.IsNaN(f) || math32.IsInf(f, 0):
				return red
			case f < 0:
				return color.Black
			default:
				return color.White
			}
		}
	}
	return &ImageRenderer{conv: conversion}
}

// Render stretches d over img's bounds, bilinearly sampling the field at
// each pixel center. Distances reach the conversion in d's sample units.
func (ir *ImageRenderer) Render(d field.DistanceField, img setImage) error {
	g, err := field.ScalarGridFromValues(d.Width, d.Values)
	if err != nil {
		return err
	}
	bb := img.Bounds()
	dx, dy := bb.Dx(), bb.Dy()
	if dx == 0 || dy == 0 {
		return errors.New("distaux: empty image")
	}
	sx := float32(d.Width) / float32(dx)
	sy := float32(d.Width) / float32(dy)
	// Colors are computed per row in parallel, img.Set runs sequentially.
	colors := make([]color.Color, dx*dy)
	err = parallel.For(dy, 0, func(start, end int) error {
		for j := start; j < end; j++ {
			y := (float32(dy-1-j)+0.5)*sy - 0.5
			for i := 0; i < dx; i++ {
				x := (float32(i)+0.5)*sx - 0.5
				colors[j*dx+i] = ir.conv(g.Sample(ms2.Vec{X: x, Y: y}))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for j := 0; j < dy; j++ {
		for i := 0; i < dx; i++ {
			img.Set(bb.Min.X+i, bb.Min.Y+j, colors[j*dx+i])
		}
	}
	return nil
}

// RenderImage renders d into a new width×width RGBA image.
func (ir *ImageRenderer) RenderImage(d field.DistanceField, width int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, width))
	return img, ir.Render(d, img)
}

// RenderSegments strokes each normalized-space segment onto img with the
// given line width in pixels.
func RenderSegments(img *image.RGBA, segs []field.Segment, lineWidth float32, c color.Color) {
	var path raster.Path
	bb := img.Bounds()
	for _, s := range segs {
		path.Start(toPixel(bb, s.Start))
		path.Add1(toPixel(bb, s.End))
	}
	stroke(img, path, lineWidth, c)
}

// RenderPolylines strokes every polyline of pd onto img.
func RenderPolylines(img *image.RGBA, pd field.PolylineData, lineWidth float32, c color.Color) {
	var path raster.Path
	bb := img.Bounds()
	for i := range pd.Len() {
		pts := pd.Polyline(i)
		if len(pts) < 2 {
			continue
		}
		path.Start(toPixel(bb, pts[0]))
		for _, p := range pts[1:] {
			path.Add1(toPixel(bb, p))
		}
	}
	stroke(img, path, lineWidth, c)
}

func stroke(img *image.RGBA, path raster.Path, lineWidth float32, c color.Color) {
	if len(path) == 0 {
		return
	}
	bb := img.Bounds()
	r := raster.NewRasterizer(bb.Max.X, bb.Max.Y)
	raster.Stroke(r, path, fixed.Int26_6(lineWidth*64), raster.RoundCapper, raster.RoundJoiner)
	painter := raster.NewRGBAPainter(img)
	painter.SetColor(c)
	r.Rasterize(painter)
}

// toPixel maps normalized space onto pixel centers of bb.
func toPixel(bb image.Rectangle, p ms2.Vec) fixed.Point26_6 {
	x := float32(bb.Min.X) + (p.X+1)/2*float32(bb.Dx()-1) + 0.5
	y := float32(bb.Min.Y) + (1-p.Y)/2*float32(bb.Dy()-1) + 0.5
	return fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
}

// WritePNG encodes img as a PNG file.
func WritePNG(filename string, img image.Image) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	if err = png.Encode(fp, img); err != nil {
		return err
	}
	return fp.Sync()
}
