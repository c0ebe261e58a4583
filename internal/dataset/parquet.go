package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"
)

// textRow is the Parquet row shape read for text columns. Parquet datasets
// carry the column under a fixed "text" field name.
type textRow struct {
	Text *string `parquet:"text,optional"`
}

// VectorRecord is one encoded row written to a Parquet output file.
type VectorRecord struct {
	ColumnName string    `parquet:"column_name"`
	RowIndex   int64     `parquet:"row_index"`
	Checkpoint string    `parquet:"checkpoint"`
	Embedding  []float32 `parquet:"embedding"`
}

// readParquetColumn reads the "text" column of a Parquet file.
func readParquetColumn(path, column string) ([]*string, error) {
	if column != "text" {
		return nil, fmt.Errorf("parquet datasets carry the text column as %q, got %q", "text", column)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var values []*string
	for {
		var row textRow
		err := reader.Read(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}
		values = append(values, row.Text)
	}
	return values, nil
}

// WriteVectors writes encoded vectors to a Parquet file, one record per input
// row in input order.
func WriteVectors(path, columnName, checkpoint string, vectors [][]float32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewWriter(file)
	for i, embedding := range vectors {
		record := VectorRecord{
			ColumnName: columnName,
			RowIndex:   int64(i),
			Checkpoint: checkpoint,
			Embedding:  embedding,
		}
		if err := writer.Write(&record); err != nil {
			return fmt.Errorf("failed to write vector record %d: %w", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize Parquet file: %w", err)
	}
	return nil
}
