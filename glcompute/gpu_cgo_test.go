//go:build !tinygo && cgo

package glcompute_test

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"runtime"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/glcompute"
	"github.com/soypat/isodist/jfa"
	"github.com/soypat/isodist/pipeline"
	"github.com/soypat/isodist/stages"
	"github.com/soypat/isodist/udf"
)

// gpuErr holds the outcome of the GPU checks run on the main thread.
var gpuErr error

var errSkipGPU = errors.New("set ISODIST_GPU=1 to run GPU tests")

func TestMain(m *testing.M) {
	gpuErr = errSkipGPU
	if os.Getenv("ISODIST_GPU") == "1" {
		runtime.LockOSThread()
		gpuErr = testGPU()
		if gpuErr != nil {
			log.Println(gpuErr)
		}
		runtime.UnlockOSThread()
	}
	os.Exit(m.Run())
}

func TestGPUKernels(t *testing.T) {
	if gpuErr == errSkipGPU {
		t.Skip(gpuErr)
	} else if gpuErr != nil {
		t.Fatal(gpuErr)
	}
}

func testGPU() error {
	term, err := glcompute.InitGLFW()
	if err != nil {
		return err
	}
	defer term()
	invoc := min(256, glcompute.MaxInvocations())
	if err := testFlood(invoc); err != nil {
		return fmt.Errorf("flood: %w", err)
	}
	if err := testBlur(invoc); err != nil {
		return fmt.Errorf("blur: %w", err)
	}
	if err := testUDF(invoc); err != nil {
		return fmt.Errorf("udf: %w", err)
	}
	return nil
}

func testFlood(invoc int) error {
	const w = 96
	k, err := glcompute.NewFloodKernel(invoc)
	if err != nil {
		return err
	}
	defer k.Release()
	rng := rand.New(rand.NewPCG(3, 4))
	seeds := make([]ms2.Vec, 30)
	for i := range seeds {
		seeds[i] = ms2.Vec{X: float32(rng.IntN(w)), Y: float32(rng.IntN(w))}
	}
	var got, want field.DistanceField
	for i, kernel := range []pipeline.Kernel{k, nil} {
		s, err := jfa.NewSolver(jfa.Config{Width: w, ExtraPass: true, Kernel: kernel})
		if err != nil {
			return err
		}
		if err := s.SeedPoints(seeds); err != nil {
			return err
		}
		if err := s.Run(); err != nil {
			return err
		}
		out := &want
		if i == 0 {
			out = &got
		}
		if err := s.Finalize(out, false, nil, 0); err != nil {
			return err
		}
		s.Release()
	}
	for i := range want.Values {
		if d := got.Values[i] - want.Values[i]; d > 1e-3 || d < -1e-3 {
			return fmt.Errorf("sample %d: GPU %v, CPU %v", i, got.Values[i], want.Values[i])
		}
	}
	return nil
}

func testBlur(invoc int) error {
	const w = 40
	k, err := glcompute.NewBlurKernel(invoc)
	if err != nil {
		return err
	}
	defer k.Release()
	rng := rand.New(rand.NewPCG(5, 6))
	in := make([]float32, w*w)
	for i := range in {
		in[i] = rng.Float32()
	}
	var outs [2][]float32
	for i, kernel := range []pipeline.Kernel{k, stages.BoxBlur()} {
		var p pipeline.Pipeline
		if err := p.Configure(stages.FieldSpec()); err != nil {
			return err
		}
		if err := p.Init(w); err != nil {
			return err
		}
		if err := p.AddStage(kernel, pipeline.StageConfig{Params: []pipeline.Param{pipeline.Const("radius", 2)}}); err != nil {
			return err
		}
		input, _ := p.NewInput()
		copy(input.Buffer(stages.Buffer), in)
		out, err := p.Dispatch(input)
		if err != nil {
			return err
		}
		outs[i] = append([]float32(nil), out.Buffer(stages.Buffer)...)
	}
	for i := range outs[0] {
		if d := outs[0][i] - outs[1][i]; d > 1e-5 || d < -1e-5 {
			return fmt.Errorf("sample %d: GPU %v, CPU %v", i, outs[0][i], outs[1][i])
		}
	}
	return nil
}

func testUDF(invoc int) error {
	const w = 50
	u, err := glcompute.NewUDF(invoc)
	if err != nil {
		return err
	}
	defer u.Release()
	rng := rand.New(rand.NewPCG(7, 8))
	segs := make([]field.Segment, 40)
	for i := range segs {
		a := ms2.Vec{X: 2*rng.Float32() - 1, Y: 2*rng.Float32() - 1}
		segs[i] = field.Segment{Start: a, End: ms2.Add(a, ms2.Vec{X: 0.1, Y: -0.05})}
	}
	got := field.DistanceField{Width: w}
	if err := u.Generate(segs, len(segs), &got); err != nil {
		return err
	}
	want := field.DistanceField{Width: w}
	if err := udf.BruteForce(segs, len(segs), &want); err != nil {
		return err
	}
	for i := range want.Values {
		if d := got.Values[i] - want.Values[i]; d > 1e-3 || d < -1e-3 {
			return fmt.Errorf("sample %d: GPU %v, CPU %v", i, got.Values[i], want.Values[i])
		}
	}
	return nil
}
