// Package feature reads and writes feature vectors, matrices and score files.
//
// Vectors and matrices are stored in the "FVEC" binary format:
//
//	"FVEC" | version (uint8) | kind (uint8) | rows (uint32) | cols (uint32) | float64 * rows * cols
//
// in little endian. A vector is a matrix with one row.
package feature

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	xe "github.com/pombredanne/facereclib/pkg/errors"
)

const (
	magic   = "FVEC"
	version = 1

	kindVector = 1
	kindMatrix = 2
)

// Vector is a feature vector, or an enrolled model.
type Vector []float64

// Matrix is a row major matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// MatrixOf stacks vectors of the same length as rows.
func MatrixOf(rows []Vector) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.Cols {
			return Matrix{}, fmt.Errorf("row %d has %d columns, but %d expected", i, len(r), m.Cols)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

func (m Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

func (m Matrix) Set(i, j int, v float64) {
	m.Data[i*m.Cols+j] = v
}

// Row i, sharing its storage with m.
func (m Matrix) Row(i int) Vector {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// WriteFile writes path through a temporary file in the same directory,
// so that readers never see a partial file.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.FileMode(0o755)); err != nil {
		return xe.Wrap(err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return xe.Wrap(err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return xe.Wrap(err)
	}
	if err := f.Close(); err != nil {
		return xe.Wrap(err)
	}
	return xe.Wrap(os.Rename(tmp, path))
}

func WriteVector(path string, v Vector) error {
	return WriteFile(path, func(w io.Writer) error {
		return encode(w, kindVector, 1, len(v), v)
	})
}

func WriteMatrix(path string, m Matrix) error {
	return WriteFile(path, func(w io.Writer) error {
		return encode(w, kindMatrix, m.Rows, m.Cols, m.Data)
	})
}

func ReadVector(path string) (Vector, error) {
	kind, _, _, data, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	if kind != kindVector {
		return nil, fmt.Errorf("%s: not a vector", path)
	}
	return data, nil
}

func ReadMatrix(path string) (Matrix, error) {
	kind, rows, cols, data, err := decodeFile(path)
	if err != nil {
		return Matrix{}, err
	}
	if kind != kindMatrix {
		return Matrix{}, fmt.Errorf("%s: not a matrix", path)
	}
	return Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

type header struct {
	Magic   [4]byte
	Version uint8
	Kind    uint8
	Rows    uint32
	Cols    uint32
}

func encode(w io.Writer, kind uint8, rows, cols int, data []float64) error {
	h := header{Version: version, Kind: kind, Rows: uint32(rows), Cols: uint32(cols)}
	copy(h.Magic[:], magic)
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return xe.Wrap(err)
	}
	buf := make([]byte, 8)
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := w.Write(buf); err != nil {
			return xe.Wrap(err)
		}
	}
	return nil
}

func decodeFile(path string) (kind uint8, rows, cols int, data []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, nil, xe.Wrap(err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h := header{}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, 0, 0, nil, xe.WrapWithNote(path, err)
	}
	if string(h.Magic[:]) != magic || h.Version != version {
		return 0, 0, 0, nil, fmt.Errorf("%s: not a feature file", path)
	}

	n := int(h.Rows) * int(h.Cols)
	data = make([]float64, n)
	buf := make([]byte, 8)
	for i := range data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, 0, 0, nil, xe.WrapWithNote(path, err)
		}
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return h.Kind, int(h.Rows), int(h.Cols), data, nil
}

// Exists tells path is a regular file.
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
