package dnnl

import (
	"fmt"
	"sync"

	"github.com/23skdu/longbow-bodkin/internal/simd"
)

type Algorithm int

const (
	AlgSoftmax Algorithm = iota
	AlgLogSoftmax
)

func (a Algorithm) String() string {
	if a == AlgLogSoftmax {
		return "logsoftmax"
	}
	return "softmax"
}

// SoftmaxForwardDesc describes a softmax forward primitive: the source
// memory descriptor and the canonical dim the softmax runs over.
type SoftmaxForwardDesc struct {
	Src  MemoryDesc
	Axis int
	Alg  Algorithm
}

func (d SoftmaxForwardDesc) Validate() error {
	if err := d.Src.Validate(); err != nil {
		return err
	}
	if d.Axis < 0 || d.Axis >= len(d.Src.Dims) {
		return fmt.Errorf("%w: axis %d, rank %d", ErrAxisOutOfRange, d.Axis, len(d.Src.Dims))
	}
	return nil
}

// SoftmaxForward is a compiled softmax forward primitive. The iteration
// geometry (lane length, lane stride, offsets of each lane for the
// physical format) is resolved once at build time; Execute only rebinds
// the src/dst buffers.
type SoftmaxForward struct {
	desc   SoftmaxForwardDesc
	engine *Engine

	axisN      int
	axisStride int
	laneCount  int

	// outer iteration space: canonical dims excluding the axis
	outerDims    []int
	outerStrides []int

	// packed is set when the axis is physically innermost, so lane i
	// starts at i*axisN
	packed bool
}

// NewSoftmaxForward builds the primitive for a descriptor. This is the
// expensive step the primitive cache exists to avoid repeating.
func NewSoftmaxForward(e *Engine, desc SoftmaxForwardDesc) (*SoftmaxForward, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	strides := desc.Src.Strides()
	p := &SoftmaxForward{
		desc:       desc,
		engine:     e,
		axisN:      desc.Src.Dims[desc.Axis],
		axisStride: strides[desc.Axis],
		laneCount:  1,
	}
	for i, d := range desc.Src.Dims {
		if i == desc.Axis {
			continue
		}
		p.outerDims = append(p.outerDims, d)
		p.outerStrides = append(p.outerStrides, strides[i])
		p.laneCount *= d
	}
	// Every non-axis stride is a multiple of axisN when the axis is
	// innermost, so lanes tile the buffer back to back.
	p.packed = p.axisStride == 1
	return p, nil
}

func (p *SoftmaxForward) Desc() SoftmaxForwardDesc {
	return p.desc
}

// DstDesc mirrors the source descriptor: softmax preserves shape, type
// and layout.
func (p *SoftmaxForward) DstDesc() MemoryDesc {
	return p.desc.Src
}

// Execute runs the primitive on a stream, reading src and writing dst.
// src and dst may alias for in-place execution. Neither slice is retained.
func (p *SoftmaxForward) Execute(s *Stream, src, dst []float32) error {
	n := p.desc.Src.NumElements()
	if len(src) != n || len(dst) != n {
		return fmt.Errorf("%w: want %d elements, src %d, dst %d", ErrBufferSize, n, len(src), len(dst))
	}
	if n == 0 {
		return nil
	}
	if &src[0] != &dst[0] {
		copy(dst, src)
	}

	threads := s.Engine().Threads()
	chunk := (p.laneCount + threads - 1) / threads
	var wg sync.WaitGroup
	for start := 0; start < p.laneCount; start += chunk {
		end := start + chunk
		if end > p.laneCount {
			end = p.laneCount
		}
		wg.Add(1)
		go func(laneStart, laneEnd int) {
			defer wg.Done()
			for lane := laneStart; lane < laneEnd; lane++ {
				off := p.laneOffset(lane)
				p.runLane(dst[off:])
			}
		}(start, end)
	}
	wg.Wait()
	return nil
}

func (p *SoftmaxForward) laneOffset(lane int) int {
	if p.packed {
		return lane * p.axisN
	}
	off := 0
	rem := lane
	for i := len(p.outerDims) - 1; i >= 0; i-- {
		idx := rem % p.outerDims[i]
		rem /= p.outerDims[i]
		off += idx * p.outerStrides[i]
	}
	return off
}

func (p *SoftmaxForward) runLane(x []float32) {
	switch {
	case p.desc.Alg == AlgLogSoftmax && p.axisStride == 1:
		simd.LogSoftmax(x[:p.axisN])
	case p.desc.Alg == AlgLogSoftmax:
		logSoftmaxStrided(x, p.axisN, p.axisStride)
	case p.axisStride == 1:
		simd.Softmax(x[:p.axisN])
	default:
		simd.SoftmaxStrided(x, p.axisN, p.axisStride)
	}
}

// logSoftmaxStrided gathers the lane into a scratch buffer and scatters
// the result back. Strided log-softmax lanes are rare enough that the
// copy does not matter.
func logSoftmaxStrided(x []float32, n, stride int) {
	lane := make([]float32, n)
	for i := 0; i < n; i++ {
		lane[i] = x[i*stride]
	}
	simd.LogSoftmax(lane)
	for i := 0; i < n; i++ {
		x[i*stride] = lane[i]
	}
}
