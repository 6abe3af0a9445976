package flight

import (
	"context"
	"fmt"

	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/ops"
	"github.com/23skdu/longbow-bodkin/internal/tensor"
)

// TensorTransport is the part of the Flight client the worker needs.
// Tests substitute an in-memory transport.
type TensorTransport interface {
	GetTensor(ctx context.Context, ticket string) (*tensor.Tensor, error)
	PutTensor(ctx context.Context, path string, t *tensor.Tensor) error
}

// Worker pulls tensors over a transport, runs a registered kernel on
// them, and pushes the results back.
type Worker struct {
	transport TensorTransport
	dev       *device.Context
	log       *logger.Logger
}

func NewWorker(transport TensorTransport, dev *device.Context) *Worker {
	return &Worker{
		transport: transport,
		dev:       dev,
		log:       logger.Log.With("flight_worker"),
	}
}

// Process fetches the tensor behind ticket, applies the named kernel,
// and sends the result to outPath.
func (w *Worker) Process(ctx context.Context, kernelName, ticket, outPath string) error {
	kernel, err := ops.Lookup(kernelName)
	if err != nil {
		return err
	}

	in, err := w.transport.GetTensor(ctx, ticket)
	if err != nil {
		return fmt.Errorf("fetching %q: %w", ticket, err)
	}

	octx := &ops.OpContext{Ctx: ctx, Device: w.dev, Input: in}
	if err := kernel.Compute(octx); err != nil {
		return fmt.Errorf("%s on %q: %w", kernelName, ticket, err)
	}

	if err := w.transport.PutTensor(ctx, outPath, octx.Output); err != nil {
		return fmt.Errorf("sending result for %q: %w", ticket, err)
	}
	w.dev.PutBuffer(octx.Output.Data())

	w.log.Info("tensor processed", "kernel", kernelName, "ticket", ticket, "dims", in.Dims())
	return nil
}
