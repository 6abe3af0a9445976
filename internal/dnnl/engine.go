package dnnl

import "runtime"

// Engine is a CPU execution engine handle. Row-parallel primitives chunk
// their work across the engine's thread count.
type Engine struct {
	index   int
	threads int
}

func NewCPUEngine(index, threads int) *Engine {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Engine{index: index, threads: threads}
}

func (e *Engine) Index() int {
	return e.index
}

func (e *Engine) Threads() int {
	return e.threads
}

// Stream is the submission context primitives execute on. CPU streams run
// eagerly; the type exists so Execute signatures match the
// primitive/stream split of the library being wrapped.
type Stream struct {
	engine *Engine
}

func NewStream(e *Engine) *Stream {
	return &Stream{engine: e}
}

func (s *Stream) Engine() *Engine {
	return s.engine
}

// Wait is a no-op on eager CPU streams.
func (s *Stream) Wait() {}
