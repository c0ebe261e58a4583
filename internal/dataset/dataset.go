// Package dataset reads text columns from CSV, Parquet, and JSON-lines files
// and writes encoded vectors back out as Parquet. Missing values stay nil so
// the encoder can apply its own null handling.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileFormat represents supported file formats.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension.
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json") || strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV
	}
}

// ReadColumn reads one nullable text column from a dataset file. Row order is
// preserved; missing cells come back as nil.
func ReadColumn(path, column string) ([]*string, error) {
	switch DetectFileFormat(path) {
	case FormatParquet:
		return readParquetColumn(path, column)
	case FormatJSON:
		return readJSONColumn(path, column)
	default:
		return readCSVColumn(path, column)
	}
}

// readCSVColumn reads a named column from a CSV file with a header row.
// Empty cells are treated as missing.
func readCSVColumn(path, column string) ([]*string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIdx := -1
	for i, name := range header {
		if name == column {
			colIdx = i
			break
		}
	}
	if colIdx == -1 {
		return nil, fmt.Errorf("column %q not found in CSV header %v", column, header)
	}

	var values []*string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if colIdx >= len(record) || record[colIdx] == "" {
			values = append(values, nil)
			continue
		}
		v := record[colIdx]
		values = append(values, &v)
	}
	return values, nil
}

// readJSONColumn reads a named field from a JSON-lines file. Absent fields
// and JSON nulls are both missing.
func readJSONColumn(path, column string) ([]*string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	var values []*string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var row map[string]*string
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON record at line %d: %w", line, err)
		}
		values = append(values, row[column])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	return values, nil
}
