package pipeline

import "errors"

var (
	// ErrNotInitialized is returned by Dispatch before Init.
	ErrNotInitialized = errors.New("pipeline: dispatch before init")
	// ErrNotConfigured is returned by Init before Configure.
	ErrNotConfigured = errors.New("pipeline: init before configure")
	// ErrBadWidth is returned for non-positive widths.
	ErrBadWidth = errors.New("pipeline: width must be positive")
	// ErrBadResourceSpec is returned for invalid resource specs.
	ErrBadResourceSpec = errors.New("pipeline: invalid resource spec")
	// ErrNilKernel is returned when a stage has no kernel.
	ErrNilKernel = errors.New("pipeline: missing kernel")
	// ErrUnknownKernel is returned when a registry has no kernel by the requested name.
	ErrUnknownKernel = errors.New("pipeline: unknown kernel")
	// ErrInputMismatch is returned when the dispatch input does not match the resource spec.
	ErrInputMismatch = errors.New("pipeline: input does not match resource spec")
	// ErrBadIterations is returned when a stage reports a negative iteration count.
	ErrBadIterations = errors.New("pipeline: negative iteration count")
)
