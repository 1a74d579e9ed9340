package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/alwayslove2013/knowhere/index"
)

// readFvecs reads at most limit vectors (0 = all) in the .fvecs layout:
// per vector an int32 dimension followed by that many float32 values.
func readFvecs(r io.Reader, limit int) (*index.Dataset, error) {
	br := bufio.NewReader(r)
	var (
		dim    int
		rows   int
		tensor []float32
		hdr    [4]byte
	)
	for limit == 0 || rows < limit {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("fvecs row %d: %w", rows, err)
		}
		d := int(int32(binary.LittleEndian.Uint32(hdr[:])))
		if d <= 0 || (dim != 0 && d != dim) {
			return nil, fmt.Errorf("fvecs row %d: %w", rows, &index.ErrDimensionMismatch{Expected: dim, Actual: d})
		}
		dim = d

		buf := make([]byte, 4*dim)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("fvecs row %d: %w", rows, err)
		}
		for i := 0; i < dim; i++ {
			tensor = append(tensor, math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}
		rows++
	}
	return index.NewDataset(rows, dim, tensor)
}

func writeFvecs(w io.Writer, ds *index.Dataset) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 4+4*ds.Dim())
	for i := 0; i < ds.Rows(); i++ {
		binary.LittleEndian.PutUint32(buf, uint32(ds.Dim()))
		for j, v := range ds.Row(i) {
			binary.LittleEndian.PutUint32(buf[4+4*j:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func loadFvecs(path string, limit int) (*index.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFvecs(f, limit)
}

// randomDataset returns rows uniform vectors in [0, 1) for seed.
func randomDataset(rows, dim int, seed int64) (*index.Dataset, error) {
	rng := rand.New(rand.NewSource(seed))
	tensor := make([]float32, rows*dim)
	for i := range tensor {
		tensor[i] = rng.Float32()
	}
	return index.NewDataset(rows, dim, tensor)
}

// dataset loads path when set, otherwise generates random vectors.
func dataset(path string, rows, dim int, seed int64) (*index.Dataset, error) {
	if path != "" {
		return loadFvecs(path, rows)
	}
	return randomDataset(rows, dim, seed)
}
