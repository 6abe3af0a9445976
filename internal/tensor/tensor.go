// Package tensor is the engine-side generic tensor representation the
// operator kernels consume. Tensors are dense, row-major float32 buffers
// with canonical dims; a tensor may additionally be flagged as carrying a
// library-native layout, which changes the format and axis the softmax
// kernels derive for it.
package tensor

import (
	"fmt"

	"github.com/23skdu/longbow-bodkin/internal/dnnl"
	"github.com/23skdu/longbow-bodkin/internal/simd"
)

type Tensor struct {
	name         string
	dims         []int
	native       bool
	nativeFormat dnnl.Format
	data         []float32
}

// New wraps data as a tensor with the given dims. The buffer length must
// match the dim product.
func New(name string, dims []int, data []float32) (*Tensor, error) {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("tensor %q: invalid dim %d in %v", name, d, dims)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("tensor %q: dims %v need %d elements, buffer has %d", name, dims, n, len(data))
	}
	d := make([]int, len(dims))
	copy(d, dims)
	return &Tensor{name: name, dims: d, data: data}, nil
}

// NewF16 widens half-precision source data on ingestion. The kernels run
// in f32; f16 is a storage format only.
func NewF16(name string, dims []int, half []uint16) (*Tensor, error) {
	data := make([]float32, len(half))
	simd.Fp16ToFp32(half, data)
	return New(name, dims, data)
}

// AsNative marks the tensor as carrying the library's native layout for
// its rank. Softmax over a native tensor runs on axis 1 and keeps the
// native layout on its output.
func (t *Tensor) AsNative() (*Tensor, error) {
	f, err := dnnl.FormatForRank(len(t.dims), true)
	if err != nil {
		return nil, err
	}
	t.native = true
	t.nativeFormat = f
	return t, nil
}

func (t *Tensor) Name() string {
	return t.name
}

func (t *Tensor) Dims() []int {
	return t.dims
}

func (t *Tensor) Rank() int {
	return len(t.dims)
}

func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) Native() bool {
	return t.native
}

func (t *Tensor) NativeFormat() dnnl.Format {
	return t.nativeFormat
}

func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.dims {
		n *= d
	}
	return n
}

// MemoryDesc translates the tensor into the primitive library's
// descriptor form.
func (t *Tensor) MemoryDesc() (dnnl.MemoryDesc, error) {
	f, err := dnnl.FormatForRank(len(t.dims), t.native)
	if err != nil {
		return dnnl.MemoryDesc{}, err
	}
	if t.native {
		f = t.nativeFormat
	}
	return dnnl.NewMemoryDesc(t.dims, dnnl.F32, f), nil
}
