// Package testutil provides helpers shared by package tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/sbinet/npyio/npz"
)

// WriteArrays writes a compressed archive the way numpy.savez does: every
// value is stored as a C-order <name>.npy entry. Nested Go arrays such as
// [2][3][4][5]int32 keep their shape.
func WriteArrays(t *testing.T, path string, arrays map[string]any) {
	t.Helper()

	w, err := npz.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	for name, v := range arrays {
		if err := w.Write(name+".npy", v); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish archive: %v", err)
	}
}

// WriteFortranInt32 writes an archive holding one column-major <i4 array.
// The npyio writer only emits C order, so this entry is assembled by hand.
func WriteFortranInt32(t *testing.T, path, name string, shape []int, data []int32) {
	t.Helper()

	var payload bytes.Buffer
	payload.Write(fortranHeader("<i4", shape))
	binary.Write(&payload, binary.LittleEndian, data)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name + ".npy", Method: zip.Deflate})
	if err != nil {
		t.Fatalf("Failed to add %s: %v", name, err)
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finish archive: %v", err)
	}
}

// fortranHeader renders a version 1.0 .npy header with fortran_order set,
// padded so that the payload starts on a 64-byte boundary.
func fortranHeader(descr string, shape []int) []byte {
	dims := make([]string, len(shape))
	for i, n := range shape {
		dims[i] = fmt.Sprint(n)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': True, 'shape': (%s), }", descr, tuple)

	const preamble = 10 // magic (6) + version (2) + header length (2)
	total := preamble + len(dict) + 1
	if pad := total % 64; pad != 0 {
		dict += strings.Repeat(" ", 64-pad)
	}
	dict += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	return buf.Bytes()
}

// ToFortran reorders a row-major array of the given shape into column-major order
func ToFortran(shape []int, data []int32) []int32 {
	out := make([]int32, len(data))
	idx := make([]int, len(shape))
	for i := range data {
		// decompose the row-major offset
		rem := i
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d] = rem % shape[d]
			rem /= shape[d]
		}
		// compose the column-major offset
		off := 0
		for d := len(shape) - 1; d >= 0; d-- {
			off = off*shape[d] + idx[d]
		}
		out[off] = data[i]
	}
	return out
}
