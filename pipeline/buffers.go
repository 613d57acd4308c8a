package pipeline

import (
	"fmt"
)

// Element strides for common per-cell formats.
const (
	R32F    = 1
	RG32F   = 2
	RGBA32F = 4
)

// BufferSpec declares one named per-cell buffer and how many float32
// elements each cell holds.
type BufferSpec struct {
	Name   string
	Stride int
}

// ResourceSpec enumerates the buffers every stage of a pipeline reads and writes.
type ResourceSpec struct {
	Buffers []BufferSpec
}

// Validate checks names are non-empty and unique and strides positive.
func (rs ResourceSpec) Validate() error {
	if len(rs.Buffers) == 0 {
		return fmt.Errorf("%w: no buffers declared", ErrBadResourceSpec)
	}
	for i, b := range rs.Buffers {
		if b.Name == "" {
			return fmt.Errorf("%w: buffer %d has no name", ErrBadResourceSpec, i)
		} else if b.Stride < 1 {
			return fmt.Errorf("%w: buffer %q has stride %d", ErrBadResourceSpec, b.Name, b.Stride)
		}
		for _, other := range rs.Buffers[:i] {
			if other.Name == b.Name {
				return fmt.Errorf("%w: duplicate buffer %q", ErrBadResourceSpec, b.Name)
			}
		}
	}
	return nil
}

func (rs ResourceSpec) index(name string) int {
	for i := range rs.Buffers {
		if rs.Buffers[i].Name == name {
			return i
		}
	}
	return -1
}

// BufferSet holds one allocation of every buffer in a ResourceSpec for a
// given grid width.
type BufferSet struct {
	spec  ResourceSpec
	width int
	bufs  [][]float32
}

// NewBufferSet allocates zeroed buffers for spec at width×width cells.
func NewBufferSet(spec ResourceSpec, width int) (BufferSet, error) {
	if err := spec.Validate(); err != nil {
		return BufferSet{}, err
	} else if width < 1 {
		return BufferSet{}, fmt.Errorf("%w: %d", ErrBadWidth, width)
	}
	bs := BufferSet{spec: spec, width: width, bufs: make([][]float32, len(spec.Buffers))}
	for i, b := range spec.Buffers {
		bs.bufs[i] = make([]float32, width*width*b.Stride)
	}
	return bs, nil
}

// Width returns the grid width the set was allocated for.
func (bs BufferSet) Width() int { return bs.width }

// IsZero reports whether bs holds no buffers.
func (bs BufferSet) IsZero() bool { return bs.bufs == nil }

// Buffer returns the named buffer or nil if absent.
func (bs BufferSet) Buffer(name string) []float32 {
	i := bs.spec.index(name)
	if i < 0 {
		return nil
	}
	return bs.bufs[i]
}

// Stride returns the named buffer's stride or 0 if absent.
func (bs BufferSet) Stride(name string) int {
	i := bs.spec.index(name)
	if i < 0 {
		return 0
	}
	return bs.spec.Buffers[i].Stride
}

// conforms checks that bs holds every buffer of spec with the right length.
func (bs BufferSet) conforms(spec ResourceSpec, width int) error {
	if bs.width != width {
		return fmt.Errorf("%w: input width %d, pipeline width %d", ErrInputMismatch, bs.width, width)
	}
	for _, b := range spec.Buffers {
		buf := bs.Buffer(b.Name)
		if len(buf) != width*width*b.Stride {
			return fmt.Errorf("%w: buffer %q has %d elements, want %d", ErrInputMismatch, b.Name, len(buf), width*width*b.Stride)
		}
	}
	return nil
}
