// Package stages provides CPU preprocessing kernels for scalar fields run
// through a [pipeline.Pipeline]. Every kernel reads `field_in` and fully
// writes `field_out`, processing rows in parallel.
package stages

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/parallel"
	"github.com/soypat/isodist/pipeline"
)

// Buffer is the name of the scalar field buffer all kernels operate on.
const Buffer = "field"

// FieldSpec is the resource spec of a single-channel field pipeline.
func FieldSpec() pipeline.ResourceSpec {
	return pipeline.ResourceSpec{Buffers: []pipeline.BufferSpec{{Name: Buffer, Stride: pipeline.R32F}}}
}

// DefaultRegistry returns a registry with every kernel in this package
// registered under its conventional name.
func DefaultRegistry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	for name, k := range map[string]pipeline.Kernel{
		"blur":      BoxBlur(),
		"warp":      Warp(),
		"threshold": Threshold(),
		"dilate":    Dilate(),
		"erode":     Erode(),
		"normalize": Normalize(),
		"invert":    Invert(),
	} {
		if err := reg.Register(name, k); err != nil {
			panic(err)
		}
	}
	return reg
}

// rows runs fn for every row of the binding's field in parallel.
func rows(b *pipeline.Binding, fn func(y int, in field.ScalarGrid, out []float32)) error {
	w := b.Width
	in := field.ScalarGrid{Width: w, Values: b.In(Buffer)}
	out := b.Out(Buffer)
	return parallel.For(w, 0, func(start, end int) error {
		for y := start; y < end; y++ {
			fn(y, in, out[y*w:(y+1)*w])
		}
		return nil
	})
}

// BoxBlur averages each sample with its neighbors within param `radius`
// (default 1) samples, clamping at the border.
func BoxBlur() pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		r := max(0, int(b.ParamOr("radius", 1)))
		w := b.Width
		return rows(b, func(y int, in field.ScalarGrid, out []float32) {
			for x := range out {
				var sum float32
				var n int
				for yy := max(0, y-r); yy <= min(w-1, y+r); yy++ {
					for xx := max(0, x-r); xx <= min(w-1, x+r); xx++ {
						sum += in.At(xx, yy)
						n++
					}
				}
				out[x] = sum / float32(n)
			}
		})
	})
}

// Warp displaces sample lookups by a sinusoidal offset of param `amplitude`
// samples (default 0) and param `frequency` cycles across the grid
// (default 1). Lookups are bilinear.
func Warp() pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		amp := b.ParamOr("amplitude", 0)
		freq := b.ParamOr("frequency", 1)
		k := 2 * math32.Pi * freq / float32(b.Width)
		return rows(b, func(y int, in field.ScalarGrid, out []float32) {
			fy := float32(y)
			for x := range out {
				fx := float32(x)
				p := ms2.Vec{
					X: fx + amp*math32.Sin(k*fy),
					Y: fy + amp*math32.Cos(k*fx),
				}
				out[x] = in.Sample(p)
			}
		})
	})
}

// Threshold writes 1 where the input exceeds param `iso` (default 0.5) and 0 elsewhere.
func Threshold() pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		iso := b.ParamOr("iso", 0.5)
		return rows(b, func(y int, in field.ScalarGrid, out []float32) {
			row := in.Values[y*in.Width : (y+1)*in.Width]
			for x, v := range row {
				if v > iso {
					out[x] = 1
				} else {
					out[x] = 0
				}
			}
		})
	})
}

// Dilate takes the maximum over a square window of param `radius` (default 1).
func Dilate() pipeline.Kernel { return morph(math32.Max) }

// Erode takes the minimum over a square window of param `radius` (default 1).
func Erode() pipeline.Kernel { return morph(math32.Min) }

func morph(op func(a, b float32) float32) pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		r := max(0, int(b.ParamOr("radius", 1)))
		w := b.Width
		return rows(b, func(y int, in field.ScalarGrid, out []float32) {
			for x := range out {
				acc := in.At(x, y)
				for yy := max(0, y-r); yy <= min(w-1, y+r); yy++ {
					for xx := max(0, x-r); xx <= min(w-1, x+r); xx++ {
						acc = op(acc, in.At(xx, yy))
					}
				}
				out[x] = acc
			}
		})
	})
}

// Normalize linearly rescales the field to span [0,1]. A constant field maps to 0.
func Normalize() pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		in := b.In(Buffer)
		lo, hi := math32.Inf(1), math32.Inf(-1)
		for _, v := range in {
			lo = math32.Min(lo, v)
			hi = math32.Max(hi, v)
		}
		scale := float32(0)
		if hi > lo {
			scale = 1 / (hi - lo)
		}
		return rows(b, func(y int, in field.ScalarGrid, out []float32) {
			row := in.Values[y*in.Width : (y+1)*in.Width]
			for x, v := range row {
				out[x] = (v - lo) * scale
			}
		})
	})
}

// Invert writes 1-v.
func Invert() pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		return rows(b, func(y int, in field.ScalarGrid, out []float32) {
			row := in.Values[y*in.Width : (y+1)*in.Width]
			for x, v := range row {
				out[x] = 1 - v
			}
		})
	})
}
