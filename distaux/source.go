// Package distaux provides helpers around the isodist pipeline: scalar field
// sources for demos and tests, and rendering of distance fields and contour
// geometry to images.
//
// Images have their origin at the top-left while grids grow upward, so every
// conversion here flips the vertical axis.
package distaux

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/soypat/isodist/field"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

var errEmptyText = errors.New("distaux: empty text")

// CircleField returns a width×width grid with value 1 at samples within r
// samples of (cx,cy) and 0 elsewhere.
func CircleField(width int, cx, cy, r float32) (field.ScalarGrid, error) {
	g, err := field.NewScalarGrid(width)
	if err != nil {
		return g, err
	}
	for y := range width {
		for x := range width {
			if math32.Hypot(float32(x)-cx, float32(y)-cy) <= r {
				g.Values[y*width+x] = 1
			}
		}
	}
	return g, nil
}

// FieldFromImage resamples img to width×width with a Catmull-Rom filter and
// returns its luminance in [0,1].
func FieldFromImage(img image.Image, width int) (field.ScalarGrid, error) {
	g, err := field.NewScalarGrid(width)
	if err != nil {
		return g, err
	}
	if img.Bounds().Empty() {
		return g, errors.New("distaux: empty image")
	}
	gray := image.NewGray(image.Rect(0, 0, width, width))
	xdraw.CatmullRom.Scale(gray, gray.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	grayToGrid(g, gray)
	return g, nil
}

// TextField rasterizes text in the Go Regular font, centered on a
// width×width grid. size is the font size in samples. Glyph coverage becomes
// the field value so the glyph outlines sit near iso 0.5.
func TextField(text string, width int, size float32) (field.ScalarGrid, error) {
	g, err := field.NewScalarGrid(width)
	if err != nil {
		return g, err
	} else if text == "" {
		return g, errEmptyText
	} else if !(size > 0) {
		return g, fmt.Errorf("distaux: bad font size %v", size)
	}
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return g, err
	}
	face := truetype.NewFace(f, &truetype.Options{Size: float64(size), Hinting: font.HintingNone})
	defer face.Close()
	adv := font.MeasureString(face, text)
	m := face.Metrics()

	gray := image.NewGray(image.Rect(0, 0, width, width))
	draw.Draw(gray, gray.Bounds(), image.Black, image.Point{}, draw.Src)
	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(float64(size))
	c.SetHinting(font.HintingNone)
	c.SetClip(gray.Bounds())
	c.SetDst(gray)
	c.SetSrc(image.White)
	// Center the advance box horizontally and the ascent+descent box vertically.
	x := (freetype.Pt(width, 0).X - adv) / 2
	y := (freetype.Pt(0, width).Y-(m.Ascent+m.Descent))/2 + m.Ascent
	if _, err = c.DrawString(text, fixed.Point26_6{X: x, Y: y}); err != nil {
		return g, err
	}
	grayToGrid(g, gray)
	return g, nil
}

func grayToGrid(g field.ScalarGrid, gray *image.Gray) {
	w := g.Width
	for row := range w {
		y := w - 1 - row
		for x := range w {
			g.Values[y*w+x] = float32(gray.GrayAt(x, row).Y) / 255
		}
	}
}

// GridImage converts g into a grayscale image, clamping values to [0,1].
func GridImage(g field.ScalarGrid) *image.Gray {
	w := g.Width
	img := image.NewGray(image.Rect(0, 0, w, w))
	for y := range w {
		for x := range w {
			v := math32.Max(0, math32.Min(1, g.At(x, y)))
			img.SetGray(x, w-1-y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}
