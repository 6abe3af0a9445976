package simd

import (
	"math"
	"math/rand"
	"testing"
)

func TestSoftmax(t *testing.T) {
	testCases := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "simple",
			input:    []float32{1, 2, 3},
			expected: []float32{0.09003057, 0.24472847, 0.66524096},
		},
		{
			name:     "negative",
			input:    []float32{-1, -2, -3},
			expected: []float32{0.66524096, 0.24472847, 0.09003057},
		},
		{
			name:     "uniform",
			input:    []float32{0, 0, 0},
			expected: []float32{0.33333333, 0.33333333, 0.33333333},
		},
		{
			name:     "single",
			input:    []float32{42},
			expected: []float32{1},
		},
		{
			name:     "empty",
			input:    []float32{},
			expected: []float32{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := make([]float32, len(tc.input))
			copy(input, tc.input)
			Softmax(input)
			if len(input) != len(tc.expected) {
				t.Fatalf("expected length %d, got %d", len(tc.expected), len(input))
			}
			for i := range input {
				if math.Abs(float64(input[i]-tc.expected[i])) > 1e-6 {
					t.Errorf("expected %v, got %v", tc.expected, input)
					break
				}
			}
		})
	}
}

func TestSoftmaxLargeValues(t *testing.T) {
	// Max subtraction must keep exp from overflowing
	input := []float32{1000, 1001, 1002}
	Softmax(input)
	sum := 0.0
	for _, v := range input {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite output: %v", input)
		}
		sum += float64(v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("sum mismatch: %f (expected 1.0)", sum)
	}
}

func TestSoftmaxLongLane(t *testing.T) {
	// Exercises the vectorized path on cgo builds
	rng := rand.New(rand.NewSource(1))
	input := make([]float32, 1024)
	for i := range input {
		input[i] = (rng.Float32() - 0.5) * 50.0
	}

	expected := referenceSoftmax(input)
	Softmax(input)

	for i := range input {
		if math.Abs(float64(expected[i]-input[i])) > 1e-5 {
			t.Fatalf("mismatch at index %d: expected %f, got %f", i, expected[i], input[i])
		}
	}
}

func TestSoftmaxStrided(t *testing.T) {
	// Lane of 4 elements spaced 3 apart inside a 12-element buffer
	buf := make([]float32, 12)
	for i := range buf {
		buf[i] = -100 // poison; untouched positions must survive
	}
	lane := []float32{1, 2, 3, 4}
	for i, v := range lane {
		buf[i*3] = v
	}

	expected := referenceSoftmax(lane)
	SoftmaxStrided(buf, 4, 3)

	for i := range lane {
		if math.Abs(float64(expected[i]-buf[i*3])) > 1e-6 {
			t.Errorf("lane mismatch at %d: expected %f, got %f", i, expected[i], buf[i*3])
		}
	}
	for i := range buf {
		if i%3 != 0 && buf[i] != -100 {
			t.Errorf("off-lane element %d was modified: %f", i, buf[i])
		}
	}
}

func TestSoftmaxStridedUnitStride(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{1, 2, 3, 4}
	Softmax(a)
	SoftmaxStrided(b, 4, 1)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("unit stride should match contiguous kernel at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestLogSoftmax(t *testing.T) {
	input := []float32{1, 2, 3}
	probs := make([]float32, len(input))
	copy(probs, input)
	Softmax(probs)

	LogSoftmax(input)
	for i := range input {
		want := math.Log(float64(probs[i]))
		if math.Abs(want-float64(input[i])) > 1e-5 {
			t.Errorf("index %d: expected %f, got %f", i, want, input[i])
		}
	}
}

func TestLogSoftmaxStability(t *testing.T) {
	input := []float32{500, 501, 502}
	LogSoftmax(input)
	for i, v := range input {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite log-softmax at %d: %v", i, input)
		}
		if v > 0 {
			t.Errorf("log-softmax must be <= 0, got %f at %d", v, i)
		}
	}
}

func TestFp16Roundtrip(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, 65504, -65504, 0.000061}
	half := make([]uint16, len(src))
	back := make([]float32, len(src))

	Fp32ToFp16(src, half)
	Fp16ToFp32(half, back)

	for i := range src {
		rel := math.Abs(float64(src[i] - back[i]))
		if src[i] != 0 {
			rel /= math.Abs(float64(src[i]))
		}
		if rel > 1e-3 {
			t.Errorf("roundtrip drift at %d: %f -> %f", i, src[i], back[i])
		}
	}
}

func TestFp16MismatchedLengths(t *testing.T) {
	dst := []float32{7}
	Fp16ToFp32([]uint16{1, 2}, dst)
	if dst[0] != 7 {
		t.Error("mismatched lengths must leave dst untouched")
	}
}

func referenceSoftmax(x []float32) []float32 {
	out := make([]float32, len(x))
	if len(x) == 0 {
		return out
	}
	max := -math.MaxFloat64
	for _, v := range x {
		if float64(v) > max {
			max = float64(v)
		}
	}
	sum := 0.0
	for i, v := range x {
		e := math.Exp(float64(v) - max)
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func BenchmarkSoftmax1K(b *testing.B) {
	x := make([]float32, 1024)
	for i := range x {
		x[i] = float32(i % 97)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Softmax(x)
	}
}
