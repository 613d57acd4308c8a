package pipeline

import (
	"fmt"
	"slices"
	"strings"
)

const (
	suffixIn  = "_in"
	suffixOut = "_out"
)

// Kernel runs one dispatch of a stage: it reads the `<name>_in` buffers of
// its binding and fully writes the `<name>_out` buffers it declares.
type Kernel interface {
	Dispatch(b *Binding) error
}

// KernelFunc adapts a function to the Kernel interface.
type KernelFunc func(b *Binding) error

// Dispatch calls f(b).
func (f KernelFunc) Dispatch(b *Binding) error { return f(b) }

// Param is a named scalar stage parameter. Value is called at every
// dispatch so parameters may change between dispatches without
// reconfiguring the pipeline.
type Param struct {
	Name  string
	Value func() float32
}

// Const returns a parameter with a fixed value.
func Const(name string, v float32) Param {
	return Param{Name: name, Value: func() float32 { return v }}
}

// Count returns a stage's iteration count. It is evaluated at dispatch time.
type Count func() int

// Fixed returns a constant iteration count.
func Fixed(n int) Count {
	return func() int { return n }
}

// StageConfig configures a stage added to a pipeline.
type StageConfig struct {
	// Name labels the stage in logs and errors.
	Name string
	// Iterations is the number of dispatches the stage contributes. Nil means one.
	Iterations Count
	Params     []Param
	// Writes lists the buffers the kernel writes. Buffers not listed are
	// copied from input to output before the kernel runs. Nil means the
	// kernel writes every buffer.
	Writes []string
}

// Binding is what a kernel sees during one dispatch.
type Binding struct {
	Width int
	// Stage is the dispatching stage's name.
	Stage string
	// Iteration is the zero based iteration index within the stage.
	Iteration int
	// Pass is the zero based dispatch index across the whole pipeline run.
	Pass   int
	in     BufferSet
	out    BufferSet
	names  []string
	values []float32
}

// Buffer returns the buffer bound as `<name>_in` or `<name>_out`, or nil.
func (b *Binding) Buffer(binding string) []float32 {
	if name, ok := strings.CutSuffix(binding, suffixIn); ok {
		return b.in.Buffer(name)
	} else if name, ok := strings.CutSuffix(binding, suffixOut); ok {
		return b.out.Buffer(name)
	}
	return nil
}

// In returns the read-only input buffer for name.
func (b *Binding) In(name string) []float32 { return b.in.Buffer(name) }

// Out returns the output buffer for name.
func (b *Binding) Out(name string) []float32 { return b.out.Buffer(name) }

// Stride returns the stride of the named buffer.
func (b *Binding) Stride(name string) int { return b.out.Stride(name) }

// Bindings returns the full `<name>_in` and `<name>_out` binding names in
// resource spec order, inputs first.
func (b *Binding) Bindings() []string {
	names := make([]string, 0, 2*len(b.out.spec.Buffers))
	for _, buf := range b.out.spec.Buffers {
		names = append(names, buf.Name+suffixIn)
	}
	for _, buf := range b.out.spec.Buffers {
		names = append(names, buf.Name+suffixOut)
	}
	return names
}

// Param returns the value of the named parameter as evaluated for this dispatch.
func (b *Binding) Param(name string) (float32, bool) {
	i := slices.Index(b.names, name)
	if i < 0 {
		return 0, false
	}
	return b.values[i], true
}

// ParamOr returns the named parameter or def when not configured.
func (b *Binding) ParamOr(name string, def float32) float32 {
	v, ok := b.Param(name)
	if !ok {
		return def
	}
	return v
}

// Params returns parameter names and values for this dispatch. The slices must not be modified.
func (b *Binding) Params() (names []string, values []float32) {
	return b.names, b.values
}

// Registry maps kernel names to kernels. It is filled once at startup and
// then only read.
type Registry struct {
	kernels map[string]Kernel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]Kernel)}
}

// Register adds k under name.
func (r *Registry) Register(name string, k Kernel) error {
	if k == nil {
		return fmt.Errorf("%w: %q", ErrNilKernel, name)
	} else if name == "" {
		return fmt.Errorf("%w: empty name", ErrNilKernel)
	} else if _, dup := r.kernels[name]; dup {
		return fmt.Errorf("pipeline: kernel %q already registered", name)
	}
	r.kernels[name] = k
	return nil
}

// Lookup returns the kernel registered under name.
func (r *Registry) Lookup(name string) (Kernel, error) {
	k, ok := r.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	return k, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
