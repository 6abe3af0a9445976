package dnnl

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func newTestStream(threads int) *Stream {
	return NewStream(NewCPUEngine(0, threads))
}

func refSoftmax(lane []float64) []float64 {
	out := make([]float64, len(lane))
	max := math.Inf(-1)
	for _, v := range lane {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	for i, v := range lane {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func TestSoftmaxForward2D(t *testing.T) {
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{2, 3}, F32, FormatNC),
		Axis: 1,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 2), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	src := []float32{1, 2, 3, -1, -2, -3}
	dst := make([]float32, 6)
	if err := p.Execute(newTestStream(2), src, dst); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	for row := 0; row < 2; row++ {
		lane := make([]float64, 3)
		for i := range lane {
			lane[i] = float64(src[row*3+i])
		}
		want := refSoftmax(lane)
		for i := range want {
			got := float64(dst[row*3+i])
			if math.Abs(got-want[i]) > 1e-6 {
				t.Errorf("row %d index %d: expected %f, got %f", row, i, want[i], got)
			}
		}
	}

	// src must be untouched when executing out of place
	if src[0] != 1 || src[5] != -3 {
		t.Error("execute modified the source buffer")
	}
}

func TestSoftmaxForwardInPlace(t *testing.T) {
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{8}, F32, FormatX),
		Axis: 0,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 1), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	buf := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := p.Execute(newTestStream(1), buf, buf); err != nil {
		t.Fatalf("in-place execute failed: %v", err)
	}

	sum := 0.0
	for _, v := range buf {
		sum += float64(v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("sum mismatch: %f (expected 1.0)", sum)
	}
}

func TestSoftmaxForwardNHWCAxis1(t *testing.T) {
	// Native-layout rank-4 input with softmax over channels (axis 1).
	// Channels are innermost for nhwc, so lanes are packed.
	dims := []int{2, 4, 3, 3} // N,C,H,W
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc(dims, F32, FormatNHWC),
		Axis: 1,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 4), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	n := 2 * 4 * 3 * 3
	src := make([]float32, n)
	for i := range src {
		src[i] = (rng.Float32() - 0.5) * 20
	}
	dst := make([]float32, n)
	if err := p.Execute(newTestStream(4), src, dst); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// Every channel lane must sum to 1
	c := 4
	for off := 0; off < n; off += c {
		sum := 0.0
		for i := 0; i < c; i++ {
			sum += float64(dst[off+i])
		}
		if math.Abs(sum-1.0) > 1e-5 {
			t.Fatalf("lane at %d sums to %f", off, sum)
		}
	}
}

func TestSoftmaxForwardNCHWAxis1Strided(t *testing.T) {
	// Row-major rank-4 input with softmax over channels: channel lanes
	// have stride H*W, exercising the strided kernel path.
	dims := []int{2, 3, 2, 2} // N,C,H,W
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc(dims, F32, FormatNCHW),
		Axis: 1,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 2), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if p.packed {
		t.Fatal("channel axis of nchw must not be treated as packed")
	}

	rng := rand.New(rand.NewSource(11))
	n := 2 * 3 * 2 * 2
	src := make([]float32, n)
	for i := range src {
		src[i] = (rng.Float32() - 0.5) * 10
	}
	dst := make([]float32, n)
	if err := p.Execute(newTestStream(2), src, dst); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// Check each (n,h,w) lane against the float64 reference
	hw := 2 * 2
	for b := 0; b < 2; b++ {
		for pix := 0; pix < hw; pix++ {
			base := b*3*hw + pix
			lane := make([]float64, 3)
			for ch := 0; ch < 3; ch++ {
				lane[ch] = float64(src[base+ch*hw])
			}
			want := refSoftmax(lane)
			for ch := 0; ch < 3; ch++ {
				got := float64(dst[base+ch*hw])
				if math.Abs(got-want[ch]) > 1e-6 {
					t.Errorf("batch %d pix %d ch %d: expected %f, got %f", b, pix, ch, want[ch], got)
				}
			}
		}
	}
}

func TestSoftmaxForwardRank3LastAxis(t *testing.T) {
	dims := []int{2, 3, 5} // T,N,C
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc(dims, F32, FormatTNC),
		Axis: 2,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 3), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	n := 2 * 3 * 5
	src := make([]float32, n)
	for i := range src {
		src[i] = float32(i % 7)
	}
	dst := make([]float32, n)
	if err := p.Execute(newTestStream(3), src, dst); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	for off := 0; off < n; off += 5 {
		sum := 0.0
		for i := 0; i < 5; i++ {
			sum += float64(dst[off+i])
		}
		if math.Abs(sum-1.0) > 1e-5 {
			t.Fatalf("lane at %d sums to %f", off, sum)
		}
	}
}

func TestLogSoftmaxForward(t *testing.T) {
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{2, 4}, F32, FormatNC),
		Axis: 1,
		Alg:  AlgLogSoftmax,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 1), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	src := []float32{1, 2, 3, 4, -1, 0, 1, 2}
	dst := make([]float32, 8)
	if err := p.Execute(newTestStream(1), src, dst); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	for row := 0; row < 2; row++ {
		lane := make([]float64, 4)
		for i := range lane {
			lane[i] = float64(src[row*4+i])
		}
		want := refSoftmax(lane)
		expSum := 0.0
		for i := range want {
			got := float64(dst[row*4+i])
			if math.Abs(got-math.Log(want[i])) > 1e-5 {
				t.Errorf("row %d index %d: expected %f, got %f", row, i, math.Log(want[i]), got)
			}
			expSum += math.Exp(got)
		}
		if math.Abs(expSum-1.0) > 1e-5 {
			t.Errorf("row %d: exp of log-softmax sums to %f", row, expSum)
		}
	}
}

func TestSoftmaxForwardErrors(t *testing.T) {
	engine := NewCPUEngine(0, 1)

	_, err := NewSoftmaxForward(engine, SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{2, 3}, F32, FormatNC),
		Axis: 2,
	})
	if !errors.Is(err, ErrAxisOutOfRange) {
		t.Errorf("expected ErrAxisOutOfRange, got %v", err)
	}

	_, err = NewSoftmaxForward(engine, SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{2, 3}, F32, FormatNC),
		Axis: -1,
	})
	if !errors.Is(err, ErrAxisOutOfRange) {
		t.Errorf("expected ErrAxisOutOfRange for negative axis, got %v", err)
	}

	_, err = NewSoftmaxForward(engine, SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{0}, F32, FormatX),
		Axis: 0,
	})
	if !errors.Is(err, ErrEmptyDim) {
		t.Errorf("expected ErrEmptyDim, got %v", err)
	}

	p, err := NewSoftmaxForward(engine, SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{4}, F32, FormatX),
		Axis: 0,
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	err = p.Execute(newTestStream(1), make([]float32, 3), make([]float32, 4))
	if !errors.Is(err, ErrBufferSize) {
		t.Errorf("expected ErrBufferSize, got %v", err)
	}
}

func TestSoftmaxForwardDstDesc(t *testing.T) {
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{2, 3}, F32, FormatNC),
		Axis: 1,
	}
	p, err := NewSoftmaxForward(NewCPUEngine(0, 1), desc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	dst := p.DstDesc()
	if dst.Format != FormatNC || dst.NumElements() != 6 {
		t.Errorf("dst desc must mirror src: %+v", dst)
	}
}

func BenchmarkSoftmaxForward(b *testing.B) {
	desc := SoftmaxForwardDesc{
		Src:  NewMemoryDesc([]int{64, 1024}, F32, FormatNC),
		Axis: 1,
	}
	engine := NewCPUEngine(0, 4)
	p, err := NewSoftmaxForward(engine, desc)
	if err != nil {
		b.Fatal(err)
	}
	stream := NewStream(engine)
	src := make([]float32, 64*1024)
	for i := range src {
		src[i] = float32(i % 31)
	}
	dst := make([]float32, len(src))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.Execute(stream, src, dst); err != nil {
			b.Fatal(err)
		}
	}
}
