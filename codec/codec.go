package codec

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/wippyai/wasm-udf/errors"
)

// ResultField is the name of the single column of a result batch.
const ResultField = "result"

var allocator memory.Allocator = memory.DefaultAllocator

// ArgumentSchema returns the positional schema c0..c(n-1) used for argument
// batches. Fields are non-nullable at the schema level; null values are still
// carried by each column's validity bitmap.
func ArgumentSchema(types []arrow.DataType) *arrow.Schema {
	fields := make([]arrow.Field, len(types))
	for i, t := range types {
		fields[i] = arrow.Field{Name: fmt.Sprintf("c%d", i), Type: t}
	}
	return arrow.NewSchema(fields, nil)
}

// Encode writes rec as one Arrow IPC stream.
func Encode(rec arrow.Record) (out []byte, err error) {
	if rec == nil {
		return nil, errors.Codec(errors.PhaseEncode, "nil record", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = errors.Codec(errors.PhaseEncode, fmt.Sprintf("write record: %v", r), nil)
		}
	}()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(allocator))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, errors.Codec(errors.PhaseEncode, "write record", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Codec(errors.PhaseEncode, "close stream", err)
	}
	return buf.Bytes(), nil
}

// Decode reads exactly one record from an Arrow IPC stream. The caller owns
// the returned record and must Release it.
func Decode(data []byte) (rec arrow.Record, err error) {
	if len(data) == 0 {
		return nil, errors.Codec(errors.PhaseDecode, "empty payload", nil)
	}

	// Corrupt flatbuffers can panic inside the IPC reader.
	defer func() {
		if r := recover(); r != nil {
			if rec != nil {
				rec.Release()
			}
			rec = nil
			err = errors.Codec(errors.PhaseDecode, fmt.Sprintf("malformed batch: %v", r), nil)
		}
	}()

	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(allocator))
	if err != nil {
		return nil, errors.Codec(errors.PhaseDecode, "read schema", err)
	}
	defer rdr.Release()

	if !rdr.Next() {
		if err := rdr.Err(); err != nil {
			return nil, errors.Codec(errors.PhaseDecode, "read record", err)
		}
		return nil, errors.Codec(errors.PhaseDecode, "payload holds no record", nil)
	}

	rec = rdr.Record()
	rec.Retain()

	if rdr.Next() {
		rec.Release()
		return nil, errors.Codec(errors.PhaseDecode, "payload holds more than one record", nil)
	}
	if err := rdr.Err(); err != nil {
		rec.Release()
		return nil, errors.Codec(errors.PhaseDecode, "read stream", err)
	}
	return rec, nil
}

// Pack builds an argument batch from cols using schema. Arity, column types
// and column lengths are checked before the record is built, so a mismatch is
// never silently reinterpreted. The caller must Release the record.
func Pack(schema *arrow.Schema, cols []arrow.Array) (arrow.Record, error) {
	if len(cols) != schema.NumFields() {
		return nil, errors.Arity("", schema.NumFields(), len(cols))
	}

	rows := 0
	for i, col := range cols {
		if col == nil {
			return nil, errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Detail("argument %d is nil", i).
				Build()
		}
		want := schema.Field(i).Type
		if !arrow.TypeEqual(want, col.DataType()) {
			return nil, errors.TypeMismatch("", i, want.String(), col.DataType().String())
		}
		if i == 0 {
			rows = col.Len()
		} else if col.Len() != rows {
			return nil, errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Detail("argument %d has %d rows, want %d", i, col.Len(), rows).
				Build()
		}
	}

	return array.NewRecord(schema, cols, int64(rows)), nil
}

// ResultRecord wraps a single output column into a result batch. The caller
// must Release the record.
func ResultRecord(col arrow.Array) arrow.Record {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: ResultField, Type: col.DataType(), Nullable: true},
	}, nil)
	return array.NewRecord(schema, []arrow.Array{col}, int64(col.Len()))
}

// ResultColumn returns the only column of a result batch. The column is owned
// by rec; Retain it to keep it past rec.Release.
func ResultColumn(rec arrow.Record) (arrow.Array, error) {
	if n := rec.NumCols(); n != 1 {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("result batch has %d columns, want 1", n).
			Value(n).
			Build()
	}
	return rec.Column(0), nil
}
