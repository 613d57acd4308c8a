//go:build tinygo || !cgo

package glcompute

import (
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/pipeline"
)

// InitGLFW returns ErrNoCGO.
func InitGLFW() (terminate func(), err error) {
	return nil, ErrNoCGO
}

// MaxInvocations returns 0.
func MaxInvocations() int { return 0 }

// Kernel is unavailable without cgo.
type Kernel struct{}

// NewKernel returns ErrNoCGO.
func NewKernel(template string, invocX int) (*Kernel, error) {
	return nil, ErrNoCGO
}

// NewFloodKernel returns ErrNoCGO.
func NewFloodKernel(invocX int) (*Kernel, error) {
	return nil, ErrNoCGO
}

// NewBlurKernel returns ErrNoCGO.
func NewBlurKernel(invocX int) (*Kernel, error) {
	return nil, ErrNoCGO
}

// Dispatch returns ErrNoCGO.
func (k *Kernel) Dispatch(b *pipeline.Binding) error {
	return ErrNoCGO
}

// Release does nothing.
func (k *Kernel) Release() {}

// UDF is unavailable without cgo.
type UDF struct{}

// NewUDF returns ErrNoCGO.
func NewUDF(invocX int) (*UDF, error) {
	return nil, ErrNoCGO
}

// Generate returns ErrNoCGO.
func (u *UDF) Generate(segs []field.Segment, count int, out *field.DistanceField) error {
	return ErrNoCGO
}

// Release does nothing.
func (u *UDF) Release() {}
