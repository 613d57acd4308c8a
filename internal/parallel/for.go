package parallel

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is returned by [Pool.For] when a chunk panicked. The panic is
// recovered after the barrier so no chunk is abandoned mid-pass.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("parallel: panic in pass: %v", e.Value)
}

// For splits [0,n) into contiguous chunks of at least grain indices and
// calls fn(start, end) for each chunk concurrently. It blocks until every
// chunk has returned. The error of the lowest failing chunk is returned.
// A grain <= 0 picks a chunk size from the worker count. fn must not call
// For on the same pool.
func (p *Pool) For(n, grain int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	chunks := p.workers * 4
	if grain <= 0 {
		grain = (n + chunks - 1) / chunks
	}
	grain = max(grain, 1)
	chunks = (n + grain - 1) / grain
	if chunks == 1 {
		return protect(fn, 0, n)
	}
	errs := make([]error, chunks)
	work := make([]func(), chunks)
	for c := range chunks {
		start := c * grain
		end := min(start+grain, n)
		work[c] = func() {
			errs[c] = protect(fn, start, end)
		}
	}
	p.Run(work)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// For runs fn over [0,n) on the [Default] pool.
func For(n, grain int, fn func(start, end int) error) error {
	return Default().For(n, grain, fn)
}

func protect(fn func(start, end int) error, start, end int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(start, end)
}

// Tasks runs each task on its own goroutine and waits for all of them. Tasks
// may call For. The error of the lowest-indexed failing task is returned and
// panics are returned as [*PanicError].
func Tasks(tasks ...func() error) error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func() {
			defer wg.Done()
			errs[i] = protect(func(int, int) error { return task() }, 0, 0)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
