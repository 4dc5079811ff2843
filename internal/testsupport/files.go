package testsupport

import (
	"bytes"
	"encoding/csv"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	mustWrite(t, path, bytes.Repeat([]byte{0x42}, int(size)))
}

// WriteDirectoryCSV writes a "Name,ID" directory file.
func WriteDirectoryCSV(t testing.TB, path string, rows ...[2]string) {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := [][]string{{"Name", "ID"}}
	for _, row := range rows {
		records = append(records, []string{row[0], row[1]})
	}
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("encode csv: %v", err)
	}
	mustWrite(t, path, buf.Bytes())
}

// WritePNG encodes img to path.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()
	mustWrite(t, path, EncodePNG(t, img))
}

// EncodePNG returns the PNG encoding of img.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func mustWrite(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
