// Package pipeline implements a double buffered multi-stage executor over
// square grids. A pipeline owns two buffer sets, A and B, shaped by its
// ResourceSpec. The first dispatch reads the caller's input and writes A;
// every later dispatch reads the set written last and writes the other one.
package pipeline

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/soypat/isodist/internal/logger"
)

type stage struct {
	kernel Kernel
	cfg    StageConfig
}

// Pipeline runs an ordered list of stages with ping-pong buffering.
// It is not safe for concurrent use.
type Pipeline struct {
	spec       ResourceSpec
	configured bool
	stages     []stage
	width      int
	sets       [2]BufferSet
}

// Configure sets the buffers every stage reads and writes. Previously
// allocated buffer sets are released; Init must be called again.
func (p *Pipeline) Configure(spec ResourceSpec) error {
	if err := spec.Validate(); err != nil {
		logger.L().Error("pipeline configure", slog.String("err", err.Error()))
		return err
	}
	p.Release()
	p.spec = ResourceSpec{Buffers: slices.Clone(spec.Buffers)}
	p.configured = true
	return nil
}

// AddStage appends a stage running k.
func (p *Pipeline) AddStage(k Kernel, cfg StageConfig) error {
	if k == nil {
		err := fmt.Errorf("%w: stage %q", ErrNilKernel, cfg.Name)
		logger.L().Error("pipeline add stage", slog.String("err", err.Error()))
		return err
	}
	for _, w := range cfg.Writes {
		if p.configured && p.spec.index(w) < 0 {
			return fmt.Errorf("%w: stage %q writes undeclared buffer %q", ErrBadResourceSpec, cfg.Name, w)
		}
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("stage%d", len(p.stages))
	}
	cfg.Params = slices.Clone(cfg.Params)
	p.stages = append(p.stages, stage{kernel: k, cfg: cfg})
	return nil
}

// AddStageByName appends a stage running the kernel registered under kernelName.
func (p *Pipeline) AddStageByName(reg *Registry, kernelName string, cfg StageConfig) error {
	if reg == nil {
		return fmt.Errorf("%w: nil registry", ErrUnknownKernel)
	}
	k, err := reg.Lookup(kernelName)
	if err != nil {
		logger.L().Error("pipeline add stage", slog.String("err", err.Error()))
		return err
	}
	if cfg.Name == "" {
		cfg.Name = kernelName
	}
	return p.AddStage(k, cfg)
}

// ClearStages removes all stages. Buffers are kept.
func (p *Pipeline) ClearStages() {
	p.stages = p.stages[:0]
}

// Stages returns the number of configured stages.
func (p *Pipeline) Stages() int { return len(p.stages) }

// Width returns the width of the allocated buffer sets or 0 before Init.
func (p *Pipeline) Width() int { return p.width }

// Spec returns the pipeline's resource spec.
func (p *Pipeline) Spec() ResourceSpec { return p.spec }

// Init allocates the A and B buffer sets for width×width grids. Calling Init
// with the current width is a no-op; any other width releases the previous
// sets before allocating new ones.
func (p *Pipeline) Init(width int) error {
	if !p.configured {
		logger.L().Error("pipeline init", slog.String("err", ErrNotConfigured.Error()))
		return ErrNotConfigured
	} else if width < 1 {
		err := fmt.Errorf("%w: %d", ErrBadWidth, width)
		logger.L().Error("pipeline init", slog.String("err", err.Error()))
		return err
	}
	if p.width == width && !p.sets[0].IsZero() {
		return nil
	}
	p.Release()
	for i := range p.sets {
		set, err := NewBufferSet(p.spec, width)
		if err != nil {
			p.Release()
			return err
		}
		p.sets[i] = set
	}
	p.width = width
	logger.L().Debug("pipeline init", slog.Int("width", width), slog.Int("buffers", len(p.spec.Buffers)))
	return nil
}

// NewInput allocates a buffer set shaped like the pipeline's that the
// caller owns and may pass to Dispatch.
func (p *Pipeline) NewInput() (BufferSet, error) {
	if p.width == 0 {
		return BufferSet{}, ErrNotInitialized
	}
	return NewBufferSet(p.spec, p.width)
}

// Release drops both buffer sets. Safe to call any number of times.
func (p *Pipeline) Release() {
	p.sets = [2]BufferSet{}
	p.width = 0
}

// Dispatch runs every stage's iterations in order starting from input and
// returns the last written buffer set. The returned set is owned by the
// pipeline and remains valid until the next Init or Release. If no dispatch
// is configured input is returned unchanged.
//
// A kernel error aborts the run after the failing dispatch has returned;
// the partially processed output is discarded.
func (p *Pipeline) Dispatch(input BufferSet) (BufferSet, error) {
	if p.sets[0].IsZero() {
		logger.L().Error("pipeline dispatch", slog.String("err", ErrNotInitialized.Error()))
		return BufferSet{}, ErrNotInitialized
	}
	if err := input.conforms(p.spec, p.width); err != nil {
		return BufferSet{}, err
	}
	counts := make([]int, len(p.stages))
	total := 0
	for i, st := range p.stages {
		n := 1
		if st.cfg.Iterations != nil {
			n = st.cfg.Iterations()
		}
		if n < 0 {
			return BufferSet{}, fmt.Errorf("%w: stage %q reported %d", ErrBadIterations, st.cfg.Name, n)
		}
		counts[i] = n
		total += n
	}
	if total == 0 {
		logger.L().Warn("pipeline has no dispatches, returning input unchanged", slog.Int("stages", len(p.stages)))
		return input, nil
	}

	current := input
	target := 0
	if sameBuffers(input, p.sets[0]) {
		// Re-dispatching a previous result held in A must not write A while reading it.
		target = 1
	}
	pass := 0
	var bind Binding
	for i, st := range p.stages {
		for it := range counts[i] {
			dst := p.sets[target]
			bind = Binding{
				Width:     p.width,
				Stage:     st.cfg.Name,
				Iteration: it,
				Pass:      pass,
				in:        current,
				out:       dst,
				names:     bind.names[:0],
				values:    bind.values[:0],
			}
			for _, prm := range st.cfg.Params {
				var v float32
				if prm.Value != nil {
					v = prm.Value()
				}
				bind.names = append(bind.names, prm.Name)
				bind.values = append(bind.values, v)
			}
			if st.cfg.Writes != nil {
				p.passThrough(current, dst, st.cfg.Writes)
			}
			if err := st.kernel.Dispatch(&bind); err != nil {
				return BufferSet{}, fmt.Errorf("pipeline: stage %q iteration %d: %w", st.cfg.Name, it, err)
			}
			current = dst
			target ^= 1
			pass++
		}
	}
	logger.L().Debug("pipeline dispatched", slog.Int("passes", pass), slog.Int("width", p.width))
	return current, nil
}

func (p *Pipeline) passThrough(src, dst BufferSet, writes []string) {
	for _, b := range p.spec.Buffers {
		if !slices.Contains(writes, b.Name) {
			copy(dst.Buffer(b.Name), src.Buffer(b.Name))
		}
	}
}

func sameBuffers(a, b BufferSet) bool {
	if len(a.bufs) == 0 || len(b.bufs) == 0 || len(a.bufs[0]) == 0 || len(b.bufs[0]) == 0 {
		return false
	}
	return &a.bufs[0][0] == &b.bufs[0][0]
}
