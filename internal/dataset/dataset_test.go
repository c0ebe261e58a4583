package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"data.csv":     FormatCSV,
		"data.parquet": FormatParquet,
		"data.json":    FormatJSON,
		"data.jsonl":   FormatJSON,
		"data":         FormatCSV,
	}
	for name, want := range cases {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestReadCSVColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "id,comment,label\n1,hello world,0\n2,,1\n3,\"a longer, quoted sentence\",0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	values, err := ReadColumn(path, "comment")
	if err != nil {
		t.Fatalf("ReadColumn failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("rows = %d, want 3", len(values))
	}
	if values[0] == nil || *values[0] != "hello world" {
		t.Errorf("row 0 = %v", values[0])
	}
	if values[1] != nil {
		t.Errorf("empty cell should read as missing, got %q", *values[1])
	}
	if values[2] == nil || *values[2] != "a longer, quoted sentence" {
		t.Errorf("row 2 = %v", values[2])
	}

	if _, err := ReadColumn(path, "no_such_column"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestReadJSONColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	content := `{"comment":"hello"}
{"comment":null}
{"other":"x"}
{"comment":"bye"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	values, err := ReadColumn(path, "comment")
	if err != nil {
		t.Fatalf("ReadColumn failed: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("rows = %d, want 4", len(values))
	}
	if values[0] == nil || *values[0] != "hello" {
		t.Errorf("row 0 = %v", values[0])
	}
	if values[1] != nil || values[2] != nil {
		t.Error("null and absent fields should both read as missing")
	}
	if values[3] == nil || *values[3] != "bye" {
		t.Errorf("row 3 = %v", values[3])
	}
}

func TestWriteAndReadParquet(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "vectors.parquet")

	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}
	if err := WriteVectors(out, "comment", "gpt2", vectors); err != nil {
		t.Fatalf("WriteVectors failed: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}
