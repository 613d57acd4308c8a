//go:build !tinygo && cgo

package glcompute

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/logger"
	"github.com/soypat/isodist/pipeline"
)

// InitGLFW creates a hidden 1×1 window with a current OpenGL 4.6 core
// context. The returned function terminates GLFW. Kernels must be created
// and dispatched from the goroutine that called InitGLFW, which should be
// locked to its OS thread.
func InitGLFW() (terminate func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glcompute: initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(1, 1, "isodist compute", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("glcompute: creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("glcompute: initializing OpenGL: %w", err)
	}
	logger.L().Debug("glcompute context ready", slog.String("version", gl.GoStr(gl.GetString(gl.VERSION))))
	return glfw.Terminate, nil
}

// MaxInvocations returns the largest local work group size of the current context.
func MaxInvocations() int {
	return glgl.MaxComputeInvocations()
}

// Kernel is a pipeline kernel backed by a compiled compute shader.
type Kernel struct {
	prog   glgl.Program
	invocX int
	ssbos  []uint32
}

// NewKernel compiles the compute shader template with a local work group
// size of invocX. See [ShaderSource].
func NewKernel(template string, invocX int) (*Kernel, error) {
	src, err := ShaderSource(template, invocX)
	if err != nil {
		return nil, err
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{Compute: src})
	if err != nil {
		return nil, fmt.Errorf("glcompute: compiling compute shader: %w", err)
	}
	return &Kernel{prog: prog, invocX: invocX}, nil
}

// NewFloodKernel compiles [FloodShader].
func NewFloodKernel(invocX int) (*Kernel, error) {
	return NewKernel(FloodShader, invocX)
}

// NewBlurKernel compiles [BlurShader].
func NewBlurKernel(invocX int) (*Kernel, error) {
	return NewKernel(BlurShader, invocX)
}

// Dispatch uploads the binding's buffers, runs one invocation per grid
// sample and reads back every `_out` buffer.
func (k *Kernel) Dispatch(b *pipeline.Binding) (err error) {
	if k.prog.ID() == 0 {
		return errReleased
	}
	k.prog.Bind()
	defer k.prog.Unbind()
	if err = setUniform(&k.prog, "Width\x00", float32(b.Width)); err != nil {
		return err
	}
	names, values := b.Params()
	for i, name := range names {
		if err := setUniform(&k.prog, name+"\x00", values[i]); err != nil {
			logger.L().Debug("glcompute param not bound", slog.String("param", name), slog.String("err", err.Error()))
		}
	}

	bindings := b.Bindings()
	if cap(k.ssbos) < len(bindings) {
		k.ssbos = make([]uint32, len(bindings))
	}
	ssbos := k.ssbos[:len(bindings)]
	clear(ssbos)
	var p runtime.Pinner
	p.Pin(&ssbos[0])
	defer p.Unpin()
	defer gl.DeleteBuffers(int32(len(ssbos)), &ssbos[0])
	for i, name := range bindings {
		buf := b.Buffer(name)
		if len(buf) == 0 {
			return fmt.Errorf("glcompute: empty buffer %q", name)
		}
		if i < len(bindings)/2 {
			ssbos[i] = loadSSBO(buf, uint32(i), gl.STATIC_DRAW)
		} else {
			ssbos[i] = createSSBO(elemSize[float32]()*len(buf), uint32(i), gl.DYNAMIC_READ)
		}
		if ssbos[i] == 0 {
			return glErrOrMessage("zero SSBO id for " + name)
		}
	}
	if err = glgl.Err(); err != nil {
		return err
	}
	n := b.Width * b.Width
	nWorkX := (n + k.invocX - 1) / k.invocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	if err = glgl.Err(); err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	for i := len(bindings) / 2; i < len(bindings); i++ {
		if err = copySSBO(b.Buffer(bindings[i]), ssbos[i]); err != nil {
			return err
		}
	}
	return glgl.Err()
}

// Release deletes the compiled program. Safe to call any number of times.
func (k *Kernel) Release() {
	if k.prog.ID() != 0 {
		k.prog.Delete()
		var zero glgl.Program
		k.prog = zero
	}
}

// UDF computes unsigned distance fields by testing every segment at every
// sample on the GPU. It produces the same result as udf.BruteForce.
type UDF struct {
	prog   glgl.Program
	invocX int
	packed []float32
}

// NewUDF compiles [UDFShader].
func NewUDF(invocX int) (*UDF, error) {
	src, err := ShaderSource(UDFShader, invocX)
	if err != nil {
		return nil, err
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{Compute: src})
	if err != nil {
		return nil, fmt.Errorf("glcompute: compiling UDF shader: %w", err)
	}
	return &UDF{prog: prog, invocX: invocX}, nil
}

// Generate writes into out the distance, in out's sample units, from every
// sample to the nearest of the first count segments. An empty segment set
// produces an all-zero field.
func (u *UDF) Generate(segs []field.Segment, count int, out *field.DistanceField) (err error) {
	if u.prog.ID() == 0 {
		return errReleased
	} else if count < 0 || count > len(segs) {
		return fmt.Errorf("%w: count %d, have %d segments", field.ErrCountRange, count, len(segs))
	}
	if err = out.Resize(out.Width); err != nil {
		return err
	}
	out.Signed = false
	if count == 0 {
		return nil
	}
	u.packed = u.packed[:0]
	for _, s := range segs[:count] {
		u.packed = append(u.packed, s.Start.X, s.Start.Y, s.End.X, s.End.Y)
	}
	u.prog.Bind()
	defer u.prog.Unbind()
	w := out.Width
	for _, uf := range []struct {
		name string
		v    float32
	}{
		{"Width\x00", float32(w)},
		{"Count\x00", float32(count)},
		{"Spacing\x00", field.SampleSpacing(w)},
	} {
		if err = setUniform(&u.prog, uf.name, uf.v); err != nil {
			return err
		}
	}
	var ssbos [2]uint32
	var p runtime.Pinner
	p.Pin(&ssbos[0])
	defer p.Unpin()
	defer gl.DeleteBuffers(2, &ssbos[0])
	ssbos[0] = loadSSBO(u.packed, 0, gl.STATIC_DRAW)
	ssbos[1] = createSSBO(elemSize[float32]()*len(out.Values), 1, gl.DYNAMIC_READ)
	if err = glgl.Err(); err != nil {
		return err
	}
	gl.DispatchCompute(uint32((w*w+u.invocX-1)/u.invocX), 1, 1)
	if err = glgl.Err(); err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	if err = copySSBO(out.Values, ssbos[1]); err != nil {
		return err
	}
	return glgl.Err()
}

// Release deletes the compiled program. Safe to call any number of times.
func (u *UDF) Release() {
	if u.prog.ID() != 0 {
		u.prog.Delete()
		var zero glgl.Program
		u.prog = zero
	}
}

func setUniform(prog *glgl.Program, name string, v float32) error {
	loc, err := prog.UniformLocation(name)
	if err != nil {
		return err
	}
	return prog.SetUniformf(loc, v)
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func createSSBO(size int, base, usage uint32) (ssbo uint32) {
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	bufSize := elemSize[T]() * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func glErrOrMessage(defaultMsg string) error {
	err := glgl.Err()
	if err == nil {
		return errors.New("glcompute: " + defaultMsg)
	}
	return fmt.Errorf("glcompute: %s: %w", defaultMsg, err)
}
