// Package simd holds the vectorized row kernels the primitive layer
// delegates to. Dispatch is resolved once at init time: builds with cgo on
// amd64 route through the AVX2 kernels, everything else uses the scalar
// fallbacks.
package simd

import "math"

var (
	softmaxImpl    func(x []float32)
	logSoftmaxImpl func(x []float32)
	accelerated    bool
)

// Accelerated reports whether the vectorized kernels are in use.
func Accelerated() bool {
	return accelerated
}

func init() {
	softmaxImpl = softmaxScalar
	logSoftmaxImpl = logSoftmaxScalar
}

// Softmax computes softmax in place over a contiguous lane.
func Softmax(x []float32) {
	softmaxImpl(x)
}

// LogSoftmax computes log-softmax in place over a contiguous lane.
func LogSoftmax(x []float32) {
	logSoftmaxImpl(x)
}

// SoftmaxStrided computes softmax in place over n elements of x spaced
// stride apart. The contiguous kernel is the fast path; strided lanes show
// up when the softmax axis is not innermost for the tensor's layout.
func SoftmaxStrided(x []float32, n, stride int) {
	if n == 0 {
		return
	}
	if stride == 1 {
		softmaxImpl(x[:n])
		return
	}

	max := x[0]
	for i := 1; i < n; i++ {
		if v := x[i*stride]; v > max {
			max = v
		}
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		e := float32(math.Exp(float64(x[i*stride] - max)))
		x[i*stride] = e
		sum += float64(e)
	}

	if sum > 0 {
		inv := float32(1.0 / sum)
		for i := 0; i < n; i++ {
			x[i*stride] *= inv
		}
	}
}

func softmaxScalar(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}

	sum := 0.0
	for i := range x {
		e := float32(math.Exp(float64(x[i] - max)))
		x[i] = e
		sum += float64(e)
	}

	if sum > 0 {
		inv := float32(1.0 / sum)
		for i := range x {
			x[i] *= inv
		}
	}
}

func logSoftmaxScalar(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}

	sum := 0.0
	for i := range x {
		sum += math.Exp(float64(x[i] - max))
	}

	logSum := float32(math.Log(sum))
	for i := range x {
		x[i] = x[i] - max - logSum
	}
}
