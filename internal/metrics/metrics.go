package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalKernelCalls atomic.Int64

var (
	// Primitive cache metrics
	PrimitiveCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "primitive_cache_hits_total",
		Help: "Total number of primitive cache hits",
	}, []string{"op"})

	PrimitiveCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "primitive_cache_misses_total",
		Help: "Total number of primitive cache misses",
	}, []string{"op"})

	PrimitiveCacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "primitive_cache_evictions_total",
		Help: "Total number of primitives evicted from the cache",
	}, []string{"op"})

	PrimitiveCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "primitive_cache_size",
		Help: "Current number of compiled primitives held in the cache",
	})

	PrimitiveBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "primitive_build_duration_seconds",
		Help:    "Time spent compiling a primitive for a new shape key",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// Kernel execution metrics
	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_duration_seconds",
		Help:    "Histogram of kernel execution times",
		Buckets: prometheus.DefBuckets,
	}, []string{"kernel"})

	KernelElements = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_elements",
		Help:    "Distribution of element counts processed per kernel call",
		Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576},
	}, []string{"kernel"})

	KernelErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_errors_total",
		Help: "Total number of kernel executions that returned an error",
	}, []string{"kernel", "error_type"})

	// Numerical audit metrics
	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "numerical_instability_total",
		Help: "Total number of NaN/Inf values detected",
	}, []string{"tensor", "type"})

	SoftmaxSumDeviation = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "softmax_sum_deviation",
		Help:    "Absolute deviation of a softmax lane sum from 1.0",
		Buckets: []float64{1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1},
	})

	// Tensor pool metrics
	PoolAllocatedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tensor_pool_allocated_bytes",
		Help: "Current bytes allocated through the tensor pool",
	})

	PoolReuses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensor_pool_reuses_total",
		Help: "Total number of tensors served from the free list",
	})

	// Flight transport metrics
	FlightTensorsIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_tensors_received_total",
		Help: "Total number of tensors received over Flight",
	})

	FlightTensorsOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_tensors_sent_total",
		Help: "Total number of tensors sent over Flight",
	})

	FlightTransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flight_transfer_duration_seconds",
		Help:    "Duration of Flight DoGet/DoPut calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"})
)

func RecordCacheHit(op string) {
	PrimitiveCacheHits.WithLabelValues(op).Inc()
}

func RecordCacheMiss(op string) {
	PrimitiveCacheMisses.WithLabelValues(op).Inc()
}

func RecordCacheEviction(op string) {
	PrimitiveCacheEvictions.WithLabelValues(op).Inc()
}

func RecordCacheSize(n int) {
	PrimitiveCacheSize.Set(float64(n))
}

func RecordPrimitiveBuild(op string, duration time.Duration) {
	PrimitiveBuildDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordKernelDuration(kernel string, elements int, duration time.Duration) {
	totalKernelCalls.Add(1)
	KernelDuration.WithLabelValues(kernel).Observe(duration.Seconds())
	KernelElements.WithLabelValues(kernel).Observe(float64(elements))
}

func RecordKernelError(kernel, errorType string) {
	KernelErrors.WithLabelValues(kernel, errorType).Inc()
}

func RecordNumericalInstability(tensor string, nanCount, infCount int) {
	if nanCount > 0 {
		NumericalInstability.WithLabelValues(tensor, "nan").Add(float64(nanCount))
	}
	if infCount > 0 {
		NumericalInstability.WithLabelValues(tensor, "inf").Add(float64(infCount))
	}
}

func RecordSoftmaxSumDeviation(dev float64) {
	if dev < 0 {
		dev = -dev
	}
	SoftmaxSumDeviation.Observe(dev)
}

func RecordPoolMemory(bytes int64) {
	PoolAllocatedBytes.Set(float64(bytes))
}

func RecordPoolReuse() {
	PoolReuses.Inc()
}

func RecordFlightTransfer(direction string, tensors int, duration time.Duration) {
	switch direction {
	case "in":
		FlightTensorsIn.Add(float64(tensors))
	case "out":
		FlightTensorsOut.Add(float64(tensors))
	}
	FlightTransferDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// TotalKernelCalls reports the number of kernel executions recorded since
// process start. Used by the monitoring status endpoint.
func TotalKernelCalls() int64 {
	return totalKernelCalls.Load()
}
