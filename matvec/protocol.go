// Package matvec implements the product of a plaintext matrix of Z_{2^k} by a vector
// encrypted under RLWE, returning one LWE ciphertext per entry of the output.
//
// The matrix is split in tiles of rows x cols entries that fit in a polynomial of
// degree N. A tile is encoded row-major with the forward layout, the matching chunk of
// the vector with the backward layout, such that the coefficient r*cols of their
// product is the inner product of the r-th row of the tile with the chunk.
package matvec

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/tuneinsight/gemini-rlwe/encoding"
	"github.com/tuneinsight/gemini-rlwe/lwe"
	"github.com/tuneinsight/gemini-rlwe/modswitch"
	"github.com/tuneinsight/gemini-rlwe/utils"
	"github.com/tuneinsight/gemini-rlwe/utils/sampling"
)

// MinHeadroom is the minimum number of bits of log2(Q) - (2k + logN) required
// for the rounding of the products to 2^k to absorb the encryption noise.
const MinHeadroom = 6

// Stats reports the tiles processed by the last call to [Protocol.MatVec].
type Stats struct {
	RowTiles     int
	Tiles        int
	SkippedTiles int
}

type config struct {
	logger zerolog.Logger
}

// Option configures a [Protocol].
type Option func(*config)

// WithLogger sets the logger used to report the tiling of the products.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Protocol computes products between plaintext matrices and encrypted vectors.
// A [Protocol] is not safe for concurrent use, see [Protocol.ShallowCopy].
type Protocol[T utils.Word] struct {
	params  rlwe.Parameters
	bridge  *modswitch.Bridge
	encoder *encoding.Encoder[T]
	logger  zerolog.Logger
	stats   Stats
}

// NewProtocol instantiates a new [Protocol].
// The method returns an error if the bridge does not match params, if T cannot store
// values of the bridge bit-width or if the headroom of the bridge is smaller than [MinHeadroom].
func NewProtocol[T utils.Word](params rlwe.Parameters, bridge *modswitch.Bridge, opts ...Option) (*Protocol[T], error) {

	encoder, err := encoding.NewEncoder[T](params, bridge)
	if err != nil {
		return nil, fmt.Errorf("cannot NewProtocol: %w", err)
	}

	if h := bridge.Headroom(); h < MinHeadroom {
		return nil, fmt.Errorf("cannot NewProtocol: headroom log2(Q) - (2k + logN) = %.2f < %d", h, MinHeadroom)
	}

	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Protocol[T]{
		params:  params,
		bridge:  bridge,
		encoder: encoder,
		logger:  cfg.logger,
	}, nil
}

// ShallowCopy creates a shallow copy of [Protocol] in which all the read-only data-structures are
// shared with the receiver and the temporary buffers are reallocated. The receiver and the returned
// [Protocol] can be used concurrently.
func (p Protocol[T]) ShallowCopy() *Protocol[T] {
	return &Protocol[T]{
		params:  p.params,
		bridge:  p.bridge,
		encoder: p.encoder.ShallowCopy(),
		logger:  p.logger,
	}
}

// Bridge returns the [modswitch.Bridge] of the protocol.
func (p Protocol[T]) Bridge() *modswitch.Bridge {
	return p.bridge
}

// LastStats returns the tiling statistics of the last call to [Protocol.MatVec].
func (p Protocol[T]) LastStats() Stats {
	return p.stats
}

// EncodeVector splits vec in ceil(VecLen/cols) chunks of cols elements, with cols given by
// [SubMatrixShape], and encodes each chunk with the backward layout scaled by Q/2^k.
// The plaintexts are in the coefficient domain and are meant to be encrypted before
// being given to [Protocol.MatVec].
// The method returns an error if meta is invalid or if len(vec) != meta.VecLen().
func (p Protocol[T]) EncodeVector(vec []T, meta Meta) (pts []*rlwe.Plaintext, err error) {

	if err = meta.Validate(); err != nil {
		return nil, fmt.Errorf("cannot EncodeVector: %w", err)
	}

	if len(vec) != meta.VecLen() {
		return nil, fmt.Errorf("cannot EncodeVector: len(vec)=%d != %d", len(vec), meta.VecLen())
	}

	_, cols := SubMatrixShape(meta, p.params.N())

	pts = make([]*rlwe.Plaintext, utils.CeilDiv(len(vec), cols))

	for i := range pts {

		start := i * cols
		end := utils.Min(start+cols, len(vec))

		if pts[i], err = p.encoder.BackwardNew(vec[start:end], true); err != nil {
			return nil, fmt.Errorf("cannot EncodeVector: %w", err)
		}
	}

	return
}

// MatVec computes the product of the plaintext row-major matrix mat of shape meta by the
// vector encrypted in vec, as produced by the encryption of [Protocol.EncodeVector], and
// returns one LWE ciphertext per output entry, each encrypting Q/2^k times the entry.
// The tiles of the matrix that contain only zeros are skipped.
//
// The method returns an error if meta is invalid, if len(mat) != NumRows*NumCols, if vec
// does not have one ciphertext per chunk of the vector, if a ciphertext of vec is not of
// degree one or not at the level of the bridge, or if a row of tiles contains only zeros.
// Ciphertexts in the coefficient domain are accepted and left unchanged.
func (p *Protocol[T]) MatVec(mat []T, meta Meta, vec []*rlwe.Ciphertext) (out []*lwe.Ciphertext, err error) {

	if err = meta.Validate(); err != nil {
		return nil, fmt.Errorf("cannot MatVec: %w", err)
	}

	if len(mat) != meta.NumRows*meta.NumCols {
		return nil, fmt.Errorf("cannot MatVec: len(mat)=%d != %d*%d", len(mat), meta.NumRows, meta.NumCols)
	}

	params := p.params
	level := p.bridge.Level()
	ringQ := params.RingQ().AtLevel(level)

	rows, cols := SubMatrixShape(meta, params.N())
	vecLen, outLen := meta.VecLen(), meta.OutLen()

	if n := utils.CeilDiv(vecLen, cols); len(vec) != n {
		return nil, fmt.Errorf("cannot MatVec: len(vec)=%d != %d", len(vec), n)
	}

	vecNTT := make([]*rlwe.Ciphertext, len(vec))
	for i, ct := range vec {

		if ct == nil {
			return nil, fmt.Errorf("cannot MatVec: vec[%d] is nil", i)
		}

		if ct.Degree() != 1 {
			return nil, fmt.Errorf("cannot MatVec: vec[%d] degree must be 1 but is %d", i, ct.Degree())
		}

		if ct.Level() != level {
			return nil, fmt.Errorf("cannot MatVec: vec[%d] level %d != bridge level %d", i, ct.Level(), level)
		}

		if ct.IsNTT {
			vecNTT[i] = ct
		} else {
			vecNTT[i] = ct.CopyNew()
			ringQ.NTT(vecNTT[i].Value[0], vecNTT[i].Value[0])
			ringQ.NTT(vecNTT[i].Value[1], vecNTT[i].Value[1])
			vecNTT[i].IsNTT = true
		}
	}

	p.stats = Stats{}

	block := make([]T, rows*cols)
	defer utils.Zeroize(block)

	pt := rlwe.NewPlaintext(params, level)
	acc := rlwe.NewCiphertext(params, 1, level)

	out = make([]*lwe.Ciphertext, outLen)

	for rStart := 0; rStart < outLen; rStart += rows {

		rExtent := utils.Min(outLen, rStart+rows) - rStart

		zero(acc)

		var tiles int

		for cStart := 0; cStart < vecLen; cStart += cols {

			cExtent := utils.Min(vecLen, cStart+cols) - cStart

			if !p.concatSubMatrix(mat, meta, rStart, cStart, rExtent, cExtent, cols, block) {
				p.stats.SkippedTiles++
				continue
			}

			if err = p.encoder.Forward(block, false, pt); err != nil {
				return nil, fmt.Errorf("cannot MatVec: %w", err)
			}

			ringQ.NTT(pt.Value, pt.Value)
			ringQ.MForm(pt.Value, pt.Value)

			ct := vecNTT[cStart/cols]
			ringQ.MulCoeffsMontgomeryThenAdd(ct.Value[0], pt.Value, acc.Value[0])
			ringQ.MulCoeffsMontgomeryThenAdd(ct.Value[1], pt.Value, acc.Value[1])

			tiles++
		}

		p.stats.RowTiles++
		p.stats.Tiles += tiles

		p.logger.Debug().
			Int("row", rStart).
			Int("rows", rExtent).
			Int("tiles", tiles).
			Msg("row tile")

		if tiles == 0 {
			return nil, fmt.Errorf("cannot MatVec: all zero matrix is not supported")
		}

		ringQ.INTT(acc.Value[0], acc.Value[0])
		ringQ.INTT(acc.Value[1], acc.Value[1])
		acc.IsNTT = false

		for r := 0; r < rExtent; r++ {
			if out[rStart+r], err = lwe.ExtractNew(params, acc, r*cols); err != nil {
				return nil, fmt.Errorf("cannot MatVec: %w", err)
			}
		}
	}

	p.logger.Debug().
		Int("rows", rows).
		Int("cols", cols).
		Int("tiles", p.stats.Tiles).
		Int("skipped", p.stats.SkippedTiles).
		Msg("matvec")

	return
}

// MatVecRandomMat samples a uniform matrix of Z_{2^k} of shape meta from prng, computes
// its product with vec (see [Protocol.MatVec]) and returns the result along with the matrix.
func (p *Protocol[T]) MatVecRandomMat(meta Meta, vec []*rlwe.Ciphertext, prng sampling.PRNG) (out []*lwe.Ciphertext, mat []T, err error) {

	if err = meta.Validate(); err != nil {
		return nil, nil, fmt.Errorf("cannot MatVecRandomMat: %w", err)
	}

	mat = make([]T, meta.NumRows*meta.NumCols)

	if err = sampling.RandomWords(prng, p.bridge.BitWidth(), mat); err != nil {
		return nil, nil, fmt.Errorf("cannot MatVecRandomMat: %w", err)
	}

	if out, err = p.MatVec(mat, meta, vec); err != nil {
		return nil, nil, fmt.Errorf("cannot MatVecRandomMat: %w", err)
	}

	return
}

// MatVecPlain returns the product of the row-major matrix mat of shape meta by vec modulo 2^k.
// The method returns an error if meta is invalid, if len(mat) != NumRows*NumCols or if
// len(vec) != meta.VecLen().
func (p Protocol[T]) MatVecPlain(mat []T, meta Meta, vec []T) (out []T, err error) {
	return MatVecPlain(mat, meta, vec, p.bridge.BitWidth())
}

// MatVecPlain returns the product of the row-major matrix mat of shape meta by vec modulo 2^bitWidth.
func MatVecPlain[T utils.Word](mat []T, meta Meta, vec []T, bitWidth int) (out []T, err error) {

	if err = meta.Validate(); err != nil {
		return nil, fmt.Errorf("cannot MatVecPlain: %w", err)
	}

	if len(mat) != meta.NumRows*meta.NumCols {
		return nil, fmt.Errorf("cannot MatVecPlain: len(mat)=%d != %d*%d", len(mat), meta.NumRows, meta.NumCols)
	}

	if len(vec) != meta.VecLen() {
		return nil, fmt.Errorf("cannot MatVecPlain: len(vec)=%d != %d", len(vec), meta.VecLen())
	}

	out = make([]T, meta.OutLen())

	for r := range out {
		var acc T
		for c := range vec {
			acc = utils.AddMod(acc, utils.MulMod(mat[meta.index(r, c)], vec[c], bitWidth), bitWidth)
		}
		out[r] = acc
	}

	return
}

// concatSubMatrix writes on block, row-major with stride cols, the sub-matrix of the operand matrix
// starting at (rStart, cStart) of shape rExtent x cExtent, zero-padded.
// It returns false if all the entries of the sub-matrix are zero.
func (p Protocol[T]) concatSubMatrix(mat []T, meta Meta, rStart, cStart, rExtent, cExtent, cols int, block []T) (nonZero bool) {

	utils.Zeroize(block)

	for r := 0; r < rExtent; r++ {
		dst := block[r*cols : r*cols+cExtent]
		if meta.Transposed {
			for c := range dst {
				dst[c] = mat[meta.index(rStart+r, cStart+c)]
			}
		} else {
			start := meta.index(rStart+r, cStart)
			copy(dst, mat[start:start+cExtent])
		}
	}

	for i := range block {
		if !utils.IsZeroWord(block[i]) {
			return true
		}
	}

	return false
}

func zero(ct *rlwe.Ciphertext) {
	for i := range ct.Value {
		for _, coeffs := range ct.Value[i].Coeffs {
			utils.Zeroize(coeffs)
		}
	}
	ct.IsNTT = true
}
