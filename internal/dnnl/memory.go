// Package dnnl is the primitive-library surface the operator kernels
// delegate to, modeled on the oneDNN descriptor/primitive/stream API. A
// primitive is compiled once per memory descriptor and axis: the build
// step resolves the physical iteration geometry for the tensor's format,
// and Execute only rebinds data buffers before running the vectorized row
// kernels.
package dnnl

import (
	"errors"
	"fmt"
)

type DataType int

const (
	F32 DataType = iota
	F16
)

func (d DataType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	default:
		return "unknown"
	}
}

// Format is the physical memory ordering required for a tensor of a given
// rank: x for 1D, nc for 2D, tnc for 3D, nchw/nhwc for 4D, ncdhw/ndhwc
// for 5D. n = batch, c = channels, t = sequence, h = height, w = width,
// d = depth. Dims in a MemoryDesc are always in canonical (nc...) order;
// the format only states how they are laid out in memory.
type Format int

const (
	FormatAny Format = iota
	FormatX
	FormatNC
	FormatTNC
	FormatNCHW
	FormatNHWC
	FormatNCDHW
	FormatNDHWC
)

func (f Format) String() string {
	switch f {
	case FormatX:
		return "x"
	case FormatNC:
		return "nc"
	case FormatTNC:
		return "tnc"
	case FormatNCHW:
		return "nchw"
	case FormatNHWC:
		return "nhwc"
	case FormatNCDHW:
		return "ncdhw"
	case FormatNDHWC:
		return "ndhwc"
	default:
		return "any"
	}
}

// Rank returns the tensor rank the format applies to.
func (f Format) Rank() int {
	switch f {
	case FormatX:
		return 1
	case FormatNC:
		return 2
	case FormatTNC:
		return 3
	case FormatNCHW, FormatNHWC:
		return 4
	case FormatNCDHW, FormatNDHWC:
		return 5
	default:
		return 0
	}
}

// perm maps physical position to canonical dim index.
func (f Format) perm() []int {
	switch f {
	case FormatX:
		return []int{0}
	case FormatNC:
		return []int{0, 1}
	case FormatTNC:
		return []int{0, 1, 2}
	case FormatNCHW:
		return []int{0, 1, 2, 3}
	case FormatNHWC:
		return []int{0, 2, 3, 1}
	case FormatNCDHW:
		return []int{0, 1, 2, 3, 4}
	case FormatNDHWC:
		return []int{0, 2, 3, 4, 1}
	default:
		return nil
	}
}

var (
	ErrRankUnsupported = errors.New("dnnl: input rank must be >= 1 and <= 5")
	ErrAxisOutOfRange  = errors.New("dnnl: softmax axis out of range")
	ErrEmptyDim        = errors.New("dnnl: dims must all be positive")
	ErrBufferSize      = errors.New("dnnl: buffer length does not match descriptor")
	ErrFormatRank      = errors.New("dnnl: format does not match rank")
)

// FormatForRank is the rank-to-format translation table. Plain engine
// tensors get the row-major default for their rank; tensors already in a
// library-native layout keep the channels-last variant for rank 4 and 5.
func FormatForRank(rank int, native bool) (Format, error) {
	switch rank {
	case 1:
		return FormatX, nil
	case 2:
		return FormatNC, nil
	case 3:
		return FormatTNC, nil
	case 4:
		if native {
			return FormatNHWC, nil
		}
		return FormatNCHW, nil
	case 5:
		if native {
			return FormatNDHWC, nil
		}
		return FormatNCDHW, nil
	default:
		return FormatAny, fmt.Errorf("%w: got %d", ErrRankUnsupported, rank)
	}
}

// MemoryDesc describes a tensor for the primitive library: canonical
// dims, element type, and physical format.
type MemoryDesc struct {
	Dims     []int
	DataType DataType
	Format   Format
}

func NewMemoryDesc(dims []int, dt DataType, f Format) MemoryDesc {
	d := make([]int, len(dims))
	copy(d, dims)
	return MemoryDesc{Dims: d, DataType: dt, Format: f}
}

func (m MemoryDesc) Validate() error {
	rank := len(m.Dims)
	if rank < 1 || rank > 5 {
		return fmt.Errorf("%w: got %d", ErrRankUnsupported, rank)
	}
	if m.Format.Rank() != rank {
		return fmt.Errorf("%w: format %s, rank %d", ErrFormatRank, m.Format, rank)
	}
	for _, d := range m.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: dims %v", ErrEmptyDim, m.Dims)
		}
	}
	return nil
}

func (m MemoryDesc) NumElements() int {
	n := 1
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// Strides returns per-canonical-dim element strides for the physical
// format.
func (m MemoryDesc) Strides() []int {
	perm := m.Format.perm()
	strides := make([]int, len(m.Dims))
	s := 1
	for i := len(perm) - 1; i >= 0; i-- {
		l := perm[i]
		strides[l] = s
		s *= m.Dims[l]
	}
	return strides
}
