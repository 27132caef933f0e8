package matvec

import (
	"fmt"
	"math/bits"

	"github.com/tuneinsight/gemini-rlwe/utils"
)

// Meta is the logical shape of a row-major NumRows x NumCols matrix M.
// If Transposed is true, the protocol computes M^T * v instead of M * v.
type Meta struct {
	Transposed bool
	NumRows    int
	NumCols    int
}

// VecLen returns the length of the vector operand.
func (m Meta) VecLen() int {
	if m.Transposed {
		return m.NumRows
	}
	return m.NumCols
}

// OutLen returns the length of the output vector.
func (m Meta) OutLen() int {
	if m.Transposed {
		return m.NumCols
	}
	return m.NumRows
}

// Validate returns an error if the shape is empty.
func (m Meta) Validate() error {
	if m.NumRows <= 0 || m.NumCols <= 0 {
		return fmt.Errorf("invalid matrix shape %dx%d", m.NumRows, m.NumCols)
	}
	return nil
}

// index returns the position in the row-major buffer of the entry (r, c) of the operand matrix.
func (m Meta) index(r, c int) int {
	if m.Transposed {
		return c*m.NumCols + r
	}
	return r*m.NumCols + c
}

// SubMatrixShape returns the shape of the tiles of the operand matrix packed in a
// polynomial of degree N: cols = min(N, VecLen) and rows is the largest power of two
// such that rows * cols <= N, capped by the smallest power of two not smaller than OutLen.
func SubMatrixShape(meta Meta, N int) (rows, cols int) {
	cols = utils.Min(N, meta.VecLen())
	rows = 1 << (bits.Len(uint(N/cols)) - 1)
	rows = utils.Min(int(utils.BitCeil(uint64(meta.OutLen()))), rows)
	return
}
