package tensor

import (
	"math"

	"github.com/23skdu/longbow-bodkin/internal/metrics"
)

// ActivationStats summarizes a kernel output buffer for the numerical
// audits: value range, RMS, and NaN/Inf counts.
type ActivationStats struct {
	Max    float32
	Min    float32
	Mean   float32
	RMS    float32
	Zeros  int
	NaNs   int
	Infs   int
	Sample []float32
}

func ComputeActivationStats(data []float32, sampleSize int) ActivationStats {
	stats := ActivationStats{}
	if len(data) == 0 {
		return stats
	}

	stats.Max = data[0]
	stats.Min = data[0]
	for _, v := range data {
		if v > stats.Max {
			stats.Max = v
		}
		if v < stats.Min {
			stats.Min = v
		}
		if v == 0 {
			stats.Zeros++
		}
		stats.Mean += v
		stats.RMS += v * v

		if math.IsNaN(float64(v)) {
			stats.NaNs++
		}
		if math.IsInf(float64(v), 0) {
			stats.Infs++
		}
	}

	n := float32(len(data))
	stats.Mean /= n
	stats.RMS = float32(math.Sqrt(float64(stats.RMS / n)))

	if sampleSize > 0 {
		step := len(data) / sampleSize
		if step == 0 {
			step = 1
		}
		for i := 0; i < sampleSize && i*step < len(data); i++ {
			stats.Sample = append(stats.Sample, data[i*step])
		}
	}

	return stats
}

// Audit records a buffer's instability counters against a tensor name.
// Returns true when the buffer is numerically clean.
func Audit(name string, data []float32, sampleSize int) bool {
	stats := ComputeActivationStats(data, sampleSize)
	if stats.NaNs > 0 || stats.Infs > 0 {
		metrics.RecordNumericalInstability(name, stats.NaNs, stats.Infs)
		return false
	}
	return true
}
