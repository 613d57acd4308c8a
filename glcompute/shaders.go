// Package glcompute runs pipeline kernels as OpenGL compute shaders.
//
// A [Kernel] binds every `<name>_in` and `<name>_out` buffer of a dispatch
// to consecutive shader storage buffer bindings in resource spec order,
// inputs first, uploads the stage parameters as float uniforms and reads
// the `_out` buffers back after the dispatch. The grid width is available
// to shaders as the float uniform Width.
//
// GPU kernels require cgo. Without it every constructor returns [ErrNoCGO].
package glcompute

import (
	"errors"
	"fmt"

	"github.com/soypat/isodist/pipeline"
)

// ErrNoCGO is returned by constructors when built without cgo or with TinyGo.
var ErrNoCGO = errors.New("glcompute: GPU kernels require CGo and are not supported on TinyGo")

var (
	errZeroInvoc = errors.New("glcompute: invocation size must be at least 1")
	errReleased  = errors.New("glcompute: program released")
)

// ShaderSource formats a compute shader template whose single %d verb is
// the local work group size and appends the NUL terminator GL expects.
func ShaderSource(template string, invocX int) (string, error) {
	if invocX < 1 {
		return "", errZeroInvoc
	}
	return fmt.Sprintf(template, invocX) + "\x00", nil
}

// FloodShader is the GLSL jump flood pass over an RG32F `seed` buffer.
// It matches the CPU pass, including its neighbor order for ties.
const FloodShader = `#version 430

layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

layout(std430, binding = 0) buffer SeedIn {
	vec2 seed_in[];
};

layout(std430, binding = 1) buffer SeedOut {
	vec2 seed_out[];
};

uniform float Width;
uniform float jump;

void main() {
	int w = int(Width);
	int idx = int(gl_GlobalInvocationID.x);
	if (idx >= w*w) {
		return;
	}
	int x = idx %% w;
	int y = idx / w;
	int j = max(1, int(jump));
	vec2 p = vec2(float(x), float(y));
	vec2 best = vec2(-1.0, -1.0);
	float bestD = 3.4e38;
	for (int dy = -j; dy <= j; dy += j) {
		int ny = y + dy;
		if (ny < 0 || ny >= w) {
			continue;
		}
		for (int dx = -j; dx <= j; dx += j) {
			int nx = x + dx;
			if (nx < 0 || nx >= w) {
				continue;
			}
			vec2 s = seed_in[ny*w + nx];
			if (s.x < 0.0) {
				continue;
			}
			vec2 d = s - p;
			float d2 = dot(d, d);
			if (d2 < bestD) {
				bestD = d2;
				best = s;
			}
		}
	}
	seed_out[idx] = best;
}
`

// BlurShader is the GLSL box blur over an R32F `field` buffer with the
// float uniform radius, clamping at the border.
const BlurShader = `#version 430

layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

layout(std430, binding = 0) buffer FieldIn {
	float field_in[];
};

layout(std430, binding = 1) buffer FieldOut {
	float field_out[];
};

uniform float Width;
uniform float radius;

void main() {
	int w = int(Width);
	int idx = int(gl_GlobalInvocationID.x);
	if (idx >= w*w) {
		return;
	}
	int x = idx %% w;
	int y = idx / w;
	int r = max(0, int(radius));
	float sum = 0.0;
	int n = 0;
	for (int yy = max(0, y-r); yy <= min(w-1, y+r); yy++) {
		for (int xx = max(0, x-r); xx <= min(w-1, x+r); xx++) {
			sum += field_in[yy*w + xx];
			n++;
		}
	}
	field_out[idx] = sum / float(n);
}
`

// UDFShader computes, for every sample of a Width×Width grid, the distance
// to the nearest of Count segments packed as vec4(start, end) in normalized
// space. Spacing is the normalized distance between adjacent samples and
// distances are written in sample units.
const UDFShader = `#version 430

layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

layout(std430, binding = 0) buffer SegmentsBuffer {
	vec4 segs[];
};

layout(std430, binding = 1) buffer DistanceOut {
	float dist_out[];
};

uniform float Width;
uniform float Count;
uniform float Spacing;

float segment2(in vec2 p, in vec2 a, in vec2 b) {
	vec2 pa = p-a, ba = b-a;
	float bb = dot(ba, ba);
	float h = bb > 0.0 ? clamp(dot(pa,ba)/bb, 0.0, 1.0) : 0.0;
	vec2 dv = pa - ba*h;
	return dot(dv, dv);
}

void main() {
	int w = int(Width);
	int idx = int(gl_GlobalInvocationID.x);
	if (idx >= w*w) {
		return;
	}
	vec2 p = vec2(float(idx %% w), float(idx / w))*Spacing - 1.0;
	int n = int(Count);
	float d2 = 1.0e23;
	for (int i = 0; i < n; i++) {
		vec4 s = segs[i];
		d2 = min(d2, segment2(p, s.xy, s.zw));
	}
	dist_out[idx] = sqrt(d2) / Spacing;
}
`

var _ pipeline.Kernel = (*Kernel)(nil)
