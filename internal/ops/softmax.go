package ops

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/dnnl"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/primitive"
	"github.com/23skdu/longbow-bodkin/internal/tensor"
)

const (
	OpSoftmax    = "Softmax"
	OpLogSoftmax = "LogSoftmax"

	keySoftmaxFwd    = "softmax_fwd"
	keyLogSoftmaxFwd = "logsoftmax_fwd"
)

// fwdCache is the process-wide pool of compiled softmax-family forward
// primitives, keyed by op prefix + dims + axis + dtype.
var fwdCache = primitive.NewCache[*dnnl.SoftmaxForward]("softmax_fwd", 1024)

var (
	auditMode   = config.AuditSampled
	auditSample = 8
)

// Configure applies the runtime settings that affect kernel execution:
// primitive cache capacity and the audit mode.
func Configure(cfg config.Config) {
	fwdCache.SetCapacity(cfg.PrimitiveCacheCap)
	auditMode = cfg.AuditMode
	auditSample = cfg.AuditSampleSize
}

// CacheStats exposes the primitive cache counters for the monitoring
// endpoint and the bench tool.
func CacheStats() primitive.Stats {
	return fwdCache.Stats()
}

// PurgePrimitives drops all cached primitives. Tests use this to get a
// cold cache.
func PurgePrimitives() {
	fwdCache.Purge()
}

func init() {
	Register(OpSoftmax, func() Kernel { return &SoftmaxOp{} })
	Register(OpLogSoftmax, func() Kernel { return &LogSoftmaxOp{} })
}

// SoftmaxOp computes softmax forward over the input's softmax axis: the
// last dim for plain tensors, axis 1 for tensors in the library's native
// layout. Temperature 0 or 1 means standard softmax; other positive
// values scale the logits before delegation.
type SoftmaxOp struct {
	Temperature float32
}

func (o *SoftmaxOp) Name() string { return OpSoftmax }

func (o *SoftmaxOp) Compute(octx *OpContext) error {
	return forward(keySoftmaxFwd, dnnl.AlgSoftmax, o.Temperature, octx)
}

// LogSoftmaxOp computes log-softmax forward with the same plumbing.
type LogSoftmaxOp struct{}

func (o *LogSoftmaxOp) Name() string { return OpLogSoftmax }

func (o *LogSoftmaxOp) Compute(octx *OpContext) error {
	return forward(keyLogSoftmaxFwd, dnnl.AlgLogSoftmax, 0, octx)
}

func forward(op string, alg dnnl.Algorithm, temperature float32, octx *OpContext) error {
	if octx.Input == nil {
		metrics.RecordKernelError(op, "no_input")
		return fmt.Errorf("%s: nil input tensor", op)
	}
	if octx.Device == nil {
		metrics.RecordKernelError(op, "no_device")
		return fmt.Errorf("%s: nil device context", op)
	}
	if octx.Ctx != nil {
		if err := octx.Ctx.Err(); err != nil {
			return err
		}
	}
	if temperature < 0 {
		metrics.RecordKernelError(op, "bad_temperature")
		return fmt.Errorf("%s: invalid temperature %f", op, temperature)
	}

	in := octx.Input
	md, err := in.MemoryDesc()
	if err != nil {
		metrics.RecordKernelError(op, errorType(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	// Plain tensors softmax over the innermost dim; native-layout
	// tensors over the channel dim.
	axis := in.Rank() - 1
	if in.Native() {
		axis = 1
	}

	desc := dnnl.SoftmaxForwardDesc{Src: md, Axis: axis, Alg: alg}
	key := (&primitive.KeyBuilder{}).
		AddString(op).
		AddDims(in.Dims()).
		AddInt(axis).
		AddString(md.DataType.String()).
		Key()

	prim, err := fwdCache.GetOrBuild(key, func() (*dnnl.SoftmaxForward, error) {
		return dnnl.NewSoftmaxForward(octx.Device.Engine(), desc)
	})
	if err != nil {
		metrics.RecordKernelError(op, errorType(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	n := in.NumElements()
	buf := octx.Device.GetBuffer(n)
	src := in.Data()

	start := time.Now()
	if temperature > 0 && temperature != 1 {
		inv := 1 / temperature
		for i, v := range src {
			buf[i] = v * inv
		}
		src = buf
	}
	if err := prim.Execute(octx.Device.Stream(), src, buf); err != nil {
		octx.Device.PutBuffer(buf)
		metrics.RecordKernelError(op, errorType(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordKernelDuration(op, n, time.Since(start))

	out, err := tensor.New(in.Name(), in.Dims(), buf)
	if err != nil {
		octx.Device.PutBuffer(buf)
		return fmt.Errorf("%s: %w", op, err)
	}
	// Layout kind propagates: native in, native out.
	if in.Native() {
		if _, err := out.AsNative(); err != nil {
			octx.Device.PutBuffer(buf)
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if auditMode != config.AuditOff {
		tensor.Audit(in.Name(), buf, auditSample)
		if alg == dnnl.AlgSoftmax {
			lanes := n / in.Dims()[axis]
			sum := 0.0
			for _, v := range buf {
				sum += float64(v)
			}
			metrics.RecordSoftmaxSumDeviation(math.Abs(sum/float64(lanes) - 1.0))
		}
	}

	octx.Output = out
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, dnnl.ErrRankUnsupported):
		return "rank_unsupported"
	case errors.Is(err, dnnl.ErrAxisOutOfRange):
		return "axis_out_of_range"
	case errors.Is(err, dnnl.ErrEmptyDim):
		return "empty_dim"
	case errors.Is(err, dnnl.ErrBufferSize):
		return "buffer_mismatch"
	case errors.Is(err, dnnl.ErrFormatRank):
		return "format_mismatch"
	default:
		return "internal"
	}
}
