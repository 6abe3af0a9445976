//go:build amd64 && cgo

package simd

/*
#cgo CFLAGS: -mavx2 -mfma -O2
#include <immintrin.h>
#include <math.h>

static void softmax_avx2(float* x, int n) {
	int i = 0;
	__m256 vmax = _mm256_set1_ps(x[0]);
	for (i = 0; i + 8 <= n; i += 8) {
		vmax = _mm256_max_ps(vmax, _mm256_loadu_ps(x + i));
	}
	float maxbuf[8];
	_mm256_storeu_ps(maxbuf, vmax);
	float max = maxbuf[0];
	for (int j = 1; j < 8; j++) {
		if (maxbuf[j] > max) max = maxbuf[j];
	}
	for (; i < n; i++) {
		if (x[i] > max) max = x[i];
	}

	double sum = 0.0;
	for (i = 0; i < n; i++) {
		float e = expf(x[i] - max);
		x[i] = e;
		sum += e;
	}
	if (sum <= 0.0) return;

	__m256 vinv = _mm256_set1_ps((float)(1.0 / sum));
	for (i = 0; i + 8 <= n; i += 8) {
		_mm256_storeu_ps(x + i, _mm256_mul_ps(_mm256_loadu_ps(x + i), vinv));
	}
	float inv = (float)(1.0 / sum);
	for (; i < n; i++) {
		x[i] *= inv;
	}
}

static void log_softmax_avx2(float* x, int n) {
	float max = x[0];
	for (int i = 1; i < n; i++) {
		if (x[i] > max) max = x[i];
	}
	double sum = 0.0;
	for (int i = 0; i < n; i++) {
		sum += expf(x[i] - max);
	}
	float shift = max + (float)log(sum);
	int i = 0;
	__m256 vshift = _mm256_set1_ps(shift);
	for (; i + 8 <= n; i += 8) {
		_mm256_storeu_ps(x + i, _mm256_sub_ps(_mm256_loadu_ps(x + i), vshift));
	}
	for (; i < n; i++) {
		x[i] -= shift;
	}
}
*/
import "C"
import "unsafe"

func init() {
	softmaxImpl = softmaxAVX2
	logSoftmaxImpl = logSoftmaxAVX2
	accelerated = true
}

func softmaxAVX2(x []float32) {
	if len(x) == 0 {
		return
	}

	// Only use AVX2 for larger lanes where the call overhead is worth it
	if len(x) >= 16 {
		C.softmax_avx2((*C.float)(unsafe.Pointer(&x[0])), C.int(len(x)))
	} else {
		softmaxScalar(x)
	}
}

func logSoftmaxAVX2(x []float32) {
	if len(x) == 0 {
		return
	}

	if len(x) >= 16 {
		C.log_softmax_avx2((*C.float)(unsafe.Pointer(&x[0])), C.int(len(x)))
	} else {
		logSoftmaxScalar(x)
	}
}
