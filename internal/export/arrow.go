// Package export writes recorded runs as Apache Arrow IPC streams.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/nestsim/internal/store"
)

// BlockColumn and DummyColumn lead every exported schema.
const (
	BlockColumn = "block"
	DummyColumn = "dummy"
)

// Table is the in-memory form of an exported run.
type Table struct {
	Columns  []string
	Rows     []store.Row
	Metadata map[string]string
}

// Schema builds the Arrow schema for the given result columns.
func Schema(columns []string, meta map[string]string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(columns)+2)
	fields = append(fields,
		arrow.Field{Name: BlockColumn, Type: arrow.PrimitiveTypes.Int32},
		arrow.Field{Name: DummyColumn, Type: arrow.FixedWidthTypes.Boolean},
	)
	for _, c := range columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}

	var md *arrow.Metadata
	if len(meta) > 0 {
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = meta[k]
		}
		m := arrow.NewMetadata(keys, vals)
		md = &m
	}
	return arrow.NewSchema(fields, md)
}

// WriteArrow writes rows as a single record batch. Rows shorter than
// columns are padded with nulls; longer rows are an error.
func WriteArrow(w io.Writer, columns []string, rows []store.Row, meta map[string]string) error {
	mem := memory.NewGoAllocator()
	schema := Schema(columns, meta)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	blocks := b.Field(0).(*array.Int32Builder)
	dummies := b.Field(1).(*array.BooleanBuilder)
	for i, row := range rows {
		if len(row.Values) > len(columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(row.Values), len(columns))
		}
		blocks.Append(int32(row.Block))
		dummies.Append(row.Dummy)
		for j := range columns {
			fb := b.Field(j + 2).(*array.Float64Builder)
			if j < len(row.Values) {
				fb.Append(row.Values[j])
			} else {
				fb.AppendNull()
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	wr := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}

// ReadArrow reads a stream written by WriteArrow. Null values read back
// as NaN.
func ReadArrow(r io.Reader) (*Table, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open arrow stream: %w", err)
	}
	defer rdr.Release()

	schema := rdr.Schema()
	if schema.NumFields() < 2 || schema.Field(0).Name != BlockColumn || schema.Field(1).Name != DummyColumn {
		return nil, errors.New("not a nestsim export: missing block and dummy columns")
	}

	t := &Table{Metadata: map[string]string{}}
	for _, f := range schema.Fields()[2:] {
		t.Columns = append(t.Columns, f.Name)
	}
	md := schema.Metadata()
	for i, k := range md.Keys() {
		t.Metadata[k] = md.Values()[i]
	}

	for rdr.Next() {
		rec := rdr.Record()
		blocks, ok := rec.Column(0).(*array.Int32)
		if !ok {
			return nil, errors.New("block column is not int32")
		}
		dummies, ok := rec.Column(1).(*array.Boolean)
		if !ok {
			return nil, errors.New("dummy column is not boolean")
		}
		cols := make([]*array.Float64, len(t.Columns))
		for j := range cols {
			c, ok := rec.Column(j + 2).(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("column %s is not float64", t.Columns[j])
			}
			cols[j] = c
		}

		for i := 0; i < int(rec.NumRows()); i++ {
			row := store.Row{
				Block:  int(blocks.Value(i)),
				Dummy:  dummies.Value(i),
				Values: make([]float64, len(cols)),
			}
			for j, c := range cols {
				if c.IsNull(i) {
					row.Values[j] = math.NaN()
				} else {
					row.Values[j] = c.Value(i)
				}
			}
			t.Rows = append(t.Rows, row)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record batch: %w", err)
	}
	return t, nil
}
