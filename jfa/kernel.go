package jfa

import (
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/soypat/isodist/internal/parallel"
	"github.com/soypat/isodist/pipeline"
)

// Buffer is the name of the RG32F nearest-seed buffer. Each sample holds the
// grid-space position of its nearest known seed or (-1,-1) when it has none.
const Buffer = "seed"

// JumpParam is the stage parameter holding a flood pass's jump distance in samples.
const JumpParam = "jump"

// noSeed is stored in both channels of samples without a seed.
const noSeed = -1

// Spec is the resource spec of the flood pipeline.
func Spec() pipeline.ResourceSpec {
	return pipeline.ResourceSpec{Buffers: []pipeline.BufferSpec{{Name: Buffer, Stride: pipeline.RG32F}}}
}

// Schedule returns the jump distances of a full flood over a width-wide
// grid: nextPow2(width)/2 halving down to 1, plus a final 1 when extra is set.
func Schedule(width int, extra bool) []int {
	if width < 2 {
		return nil
	}
	var jumps []int
	for jump := nextPow2(width) / 2; jump >= 1; jump /= 2 {
		jumps = append(jumps, jump)
	}
	if extra {
		jumps = append(jumps, 1)
	}
	return jumps
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// FloodKernel returns the CPU jump flood pass. Every sample inspects itself
// and its 8 neighbors at ±jump and keeps the stored seed closest to it.
// Ties keep the first candidate in row-major neighbor order.
func FloodKernel() pipeline.Kernel {
	return pipeline.KernelFunc(func(b *pipeline.Binding) error {
		jump := max(1, int(b.ParamOr(JumpParam, 1)))
		w := b.Width
		in, out := b.In(Buffer), b.Out(Buffer)
		return parallel.For(w, 0, func(start, end int) error {
			for y := start; y < end; y++ {
				fy := float32(y)
				for x := 0; x < w; x++ {
					fx := float32(x)
					bestX, bestY := float32(noSeed), float32(noSeed)
					best := math32.Inf(1)
					for dy := -jump; dy <= jump; dy += jump {
						ny := y + dy
						if ny < 0 || ny >= w {
							continue
						}
						for dx := -jump; dx <= jump; dx += jump {
							nx := x + dx
							if nx < 0 || nx >= w {
								continue
							}
							i := 2 * (ny*w + nx)
							sx, sy := in[i], in[i+1]
							if sx < 0 {
								continue
							}
							d := (sx-fx)*(sx-fx) + (sy-fy)*(sy-fy)
							if d < best {
								best, bestX, bestY = d, sx, sy
							}
						}
					}
					o := 2 * (y*w + x)
					out[o], out[o+1] = bestX, bestY
				}
			}
			return nil
		})
	})
}
