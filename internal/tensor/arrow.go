package tensor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Arrow interchange: a tensor travels as a single-column float32 record
// batch with dims, name and layout carried in schema metadata. This is
// the wire form the Flight transport moves.

const (
	metaName   = "tensor_name"
	metaDims   = "tensor_dims"
	metaLayout = "tensor_layout"

	layoutPlain  = "plain"
	layoutNative = "native"
)

// ToRecord encodes the tensor as an Arrow record batch. The caller owns
// the returned record and must Release it.
func (t *Tensor) ToRecord() arrow.Record {
	layout := layoutPlain
	if t.native {
		layout = layoutNative
	}
	md := arrow.NewMetadata(
		[]string{metaName, metaDims, metaLayout},
		[]string{t.name, encodeDims(t.dims), layout},
	)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "data", Type: arrow.PrimitiveTypes.Float32},
	}, &md)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Float32Builder).AppendValues(t.data, nil)
	return b.NewRecord()
}

// FromRecord decodes a tensor from its record batch form. The data is
// copied out, so the record may be released afterwards.
func FromRecord(rec arrow.Record) (*Tensor, error) {
	if rec.NumCols() < 1 {
		return nil, fmt.Errorf("tensor record: no columns")
	}
	col, ok := rec.Column(0).(*array.Float32)
	if !ok {
		return nil, fmt.Errorf("tensor record: column 0 is %s, want float32", rec.Column(0).DataType())
	}

	md := rec.Schema().Metadata()
	dimsStr, err := metaValue(md, metaDims)
	if err != nil {
		return nil, err
	}
	dims, err := decodeDims(dimsStr)
	if err != nil {
		return nil, err
	}
	name, _ := metaValue(md, metaName)
	layout, _ := metaValue(md, metaLayout)

	data := make([]float32, col.Len())
	for i := range data {
		data[i] = col.Value(i)
	}

	t, err := New(name, dims, data)
	if err != nil {
		return nil, err
	}
	if layout == layoutNative {
		return t.AsNative()
	}
	return t, nil
}

func metaValue(md arrow.Metadata, key string) (string, error) {
	idx := md.FindKey(key)
	if idx < 0 {
		return "", fmt.Errorf("tensor record: missing %s metadata", key)
	}
	return md.Values()[idx], nil
}

func encodeDims(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}

func decodeDims(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("tensor record: empty dims")
	}
	parts := strings.Split(s, "x")
	dims := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("tensor record: bad dims %q: %w", s, err)
		}
		dims[i] = d
	}
	return dims, nil
}
