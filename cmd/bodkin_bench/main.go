package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/ops"
	"github.com/23skdu/longbow-bodkin/internal/tensor"
)

var (
	shape       = flag.String("shape", "64x1024", "Tensor shape, e.g. 64x1024 or 2x8x32x32")
	kernelName  = flag.String("kernel", "Softmax", "Kernel to benchmark (Softmax or LogSoftmax)")
	iters       = flag.Int("n", 1000, "Number of iterations")
	threads     = flag.Int("threads", 0, "Worker threads (0 = all CPUs)")
	temperature = flag.Float64("temperature", 0, "Softmax temperature (0 = standard)")
	native      = flag.Bool("native", false, "Treat the tensor as native (channels-last) layout")
	logLevel    = flag.String("log-level", "warn", "Log level")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, "console")

	dims, err := parseShape(*shape)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage: %s -shape <dims> [-kernel <name>] [-n <iters>]\n", os.Args[0])
		log.Fatalf("bad shape: %v", err)
	}

	cfg := config.Default()
	if *threads > 0 {
		cfg.NumThreads = *threads
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("bad config: %v", err)
	}
	ops.Configure(cfg)

	dev := device.NewContext(cfg.NumThreads)
	defer dev.Free()

	n := 1
	for _, d := range dims {
		n *= d
	}
	rng := rand.New(rand.NewSource(42))
	data := make([]float32, n)
	for i := range data {
		data[i] = (rng.Float32() - 0.5) * 20
	}
	in, err := tensor.New("bench", dims, data)
	if err != nil {
		log.Fatalf("bad tensor: %v", err)
	}
	if *native {
		if _, err := in.AsNative(); err != nil {
			log.Fatalf("native layout: %v", err)
		}
	}

	kernel := buildKernel(*kernelName, float32(*temperature))

	fmt.Printf("Benchmarking %s on shape %v (%d elements, %d threads)\n",
		*kernelName, dims, n, cfg.NumThreads)

	// First run compiles the primitive
	warmStart := time.Now()
	octx := &ops.OpContext{Ctx: context.Background(), Device: dev, Input: in}
	if err := kernel.Compute(octx); err != nil {
		log.Fatalf("compute failed: %v", err)
	}
	dev.PutBuffer(octx.Output.Data())
	warmDuration := time.Since(warmStart)

	start := time.Now()
	for i := 0; i < *iters; i++ {
		octx := &ops.OpContext{Ctx: context.Background(), Device: dev, Input: in}
		if err := kernel.Compute(octx); err != nil {
			log.Fatalf("compute failed at iteration %d: %v", i, err)
		}
		dev.PutBuffer(octx.Output.Data())
	}
	elapsed := time.Since(start)

	lanes := n / dims[len(dims)-1]
	perIter := elapsed / time.Duration(*iters)
	fmt.Printf("First call (incl. primitive build): %v\n", warmDuration)
	fmt.Printf("Cached calls: %v/iter, %.2f Melem/s, %.0f lanes/s\n",
		perIter,
		float64(n)*float64(*iters)/elapsed.Seconds()/1e6,
		float64(lanes)*float64(*iters)/elapsed.Seconds())

	stats := ops.CacheStats()
	fmt.Printf("Primitive cache: %d hits, %d misses, %d entries\n",
		stats.Hits, stats.Misses, stats.Size)
}

func buildKernel(name string, temperature float32) ops.Kernel {
	switch name {
	case "Softmax":
		return &ops.SoftmaxOp{Temperature: temperature}
	case "LogSoftmax":
		return &ops.LogSoftmaxOp{}
	default:
		k, err := ops.Lookup(name)
		if err != nil {
			log.Fatalf("unknown kernel %q (registered: %v)", name, ops.Names())
		}
		return k
	}
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, "x")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid dim %q", p)
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("empty shape")
	}
	return dims, nil
}
