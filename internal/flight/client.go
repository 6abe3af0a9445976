// Package flight moves engine tensors over Arrow Flight. The client
// pulls input tensors by ticket and pushes kernel results back; tensors
// travel in the record-batch form defined by the tensor package.
package flight

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/tensor"
)

const DefaultPort = 3000

// Client wraps an Arrow Flight connection for tensor transport.
type Client struct {
	addr    string
	timeout time.Duration
	client  flight.Client
	log     *logger.Logger
}

// NewClient prepares a client for the given endpoint. Connect must be
// called before use.
func NewClient(host string, port int) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	return &Client{
		addr:    fmt.Sprintf("%s:%d", host, port),
		timeout: 30 * time.Second,
		log:     logger.Log.With("flight"),
	}
}

// Connect establishes the Flight connection.
func (c *Client) Connect(ctx context.Context) error {
	cl, err := flight.NewClientWithMiddleware(c.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	c.client = cl
	c.log.Info("connected", "addr", c.addr)
	return nil
}

// Close disconnects from the Flight server.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GetTensor fetches one tensor by ticket.
func (c *Client) GetTensor(ctx context.Context, ticket string) (*tensor.Tensor, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not connected, call Connect() first")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	stream, err := c.client.DoGet(ctx, &flight.Ticket{Ticket: []byte(ticket)})
	if err != nil {
		return nil, fmt.Errorf("DoGet %q: %w", ticket, err)
	}

	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to open record stream: %w", err)
	}
	defer rdr.Release()

	if !rdr.Next() {
		if err := rdr.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading tensor stream: %w", err)
		}
		return nil, fmt.Errorf("ticket %q: empty stream", ticket)
	}

	t, err := tensor.FromRecord(rdr.Record())
	if err != nil {
		return nil, err
	}

	metrics.RecordFlightTransfer("in", 1, time.Since(start))
	c.log.Debug("tensor received", "ticket", ticket, "dims", t.Dims())
	return t, nil
}

// PutTensor sends a tensor to the given descriptor path.
func (c *Client) PutTensor(ctx context.Context, path string, t *tensor.Tensor) error {
	if c.client == nil {
		return fmt.Errorf("client not connected, call Connect() first")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("DoPut %q: %w", path, err)
	}

	rec := t.ToRecord()
	defer rec.Release()

	wr := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	wr.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{path},
	})
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}

	metrics.RecordFlightTransfer("out", 1, time.Since(start))
	c.log.Debug("tensor sent", "path", path, "dims", t.Dims())
	return nil
}
