// Package device holds the CPU execution context the op kernels run on:
// the primitive-library engine/stream pair and a pooled allocator for
// output buffers.
package device

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/23skdu/longbow-bodkin/internal/dnnl"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

var allocatedBytes int64

func traceAlloc(delta int64) {
	newVal := atomic.AddInt64(&allocatedBytes, delta)
	metrics.RecordPoolMemory(newVal)
}

func AllocatedBytes() int64 {
	return atomic.LoadInt64(&allocatedBytes)
}

type Context struct {
	numThreads int
	engine     *dnnl.Engine
	stream     *dnnl.Stream

	mu   sync.Mutex
	pool map[int][][]float32
}

func NewContext(numThreads int) *Context {
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	engine := dnnl.NewCPUEngine(0, numThreads)
	return &Context{
		numThreads: numThreads,
		engine:     engine,
		stream:     dnnl.NewStream(engine),
		pool:       make(map[int][][]float32),
	}
}

func (c *Context) Engine() *dnnl.Engine {
	return c.engine
}

func (c *Context) Stream() *dnnl.Stream {
	return c.stream
}

func (c *Context) NumThreads() int {
	return c.numThreads
}

func (c *Context) SetNumThreads(n int) {
	if n <= 0 {
		return
	}
	c.numThreads = n
	c.engine = dnnl.NewCPUEngine(0, n)
	c.stream = dnnl.NewStream(c.engine)
}

// GetBuffer returns a float32 buffer of length n, reusing a pooled one
// when available.
func (c *Context) GetBuffer(n int) []float32 {
	c.mu.Lock()
	free := c.pool[n]
	if len(free) > 0 {
		buf := free[len(free)-1]
		c.pool[n] = free[:len(free)-1]
		c.mu.Unlock()
		metrics.RecordPoolReuse()
		return buf
	}
	c.mu.Unlock()

	traceAlloc(int64(n) * 4)
	return make([]float32, n)
}

// PutBuffer returns a buffer to the pool for reuse.
func (c *Context) PutBuffer(buf []float32) {
	if buf == nil {
		return
	}
	c.mu.Lock()
	c.pool[len(buf)] = append(c.pool[len(buf)], buf)
	c.mu.Unlock()
}

// Free drops every pooled buffer and releases its accounting.
func (c *Context) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bufs := range c.pool {
		for _, b := range bufs {
			traceAlloc(-int64(cap(b)) * 4)
		}
	}
	c.pool = make(map[int][][]float32)
}
