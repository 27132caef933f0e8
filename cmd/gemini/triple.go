package main

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/tuneinsight/gemini-rlwe/lwe"
	"github.com/tuneinsight/gemini-rlwe/matvec"
	"github.com/tuneinsight/gemini-rlwe/modswitch"
	"github.com/tuneinsight/gemini-rlwe/sharing"
	"github.com/tuneinsight/gemini-rlwe/utils"
	"github.com/tuneinsight/gemini-rlwe/utils/sampling"
)

const prngLabel = "gemini/triple"

// party is one of the two holders of a share (M_i, v_i) of the triple.
type party[T utils.Word] struct {
	name   string
	prng   *sampling.KeyedPRNG
	enc    *rlwe.Encryptor
	lweDec *lwe.Decryptor
	prot   *matvec.Protocol[T]
	sc     *sharing.ShareConverter[T]

	vec []T
	mat []T

	cts      []*rlwe.Ciphertext
	cross    []*lwe.Ciphertext
	revealed []T
	z        []T
}

func newParty[T utils.Word](params rlwe.Parameters, bridge *modswitch.Bridge, seed []byte, run, index int, logger zerolog.Logger) (p *party[T], err error) {

	p = &party[T]{name: strconv.Itoa(index)}

	if p.prng, err = sampling.NewDerivedPRNG(seed, prngLabel, uint64(run), uint64(index)); err != nil {
		return nil, errors.Wrap(err, "cannot derive prng")
	}

	sk := rlwe.NewKeyGenerator(params).GenSecretKeyNew()
	p.enc = rlwe.NewEncryptor(params, sk)
	p.lweDec = lwe.NewDecryptor(params, sk)

	if p.prot, err = matvec.NewProtocol[T](params, bridge, matvec.WithLogger(logger.With().Str("party", p.name).Logger())); err != nil {
		return nil, errors.Wrap(err, "cannot create protocol")
	}

	if p.sc, err = sharing.NewShareConverter[T](params, bridge); err != nil {
		return nil, errors.Wrap(err, "cannot create share converter")
	}

	return
}

// runTriples generates cfg.Runs triples and returns the duration of each.
func runTriples[T utils.Word](ctx context.Context, cfg Config, seed []byte, m *metrics, logger zerolog.Logger) (durations []time.Duration, err error) {

	params, err := cfg.Parameters()
	if err != nil {
		return
	}

	bridge, err := modswitch.NewBridge(params, cfg.BitWidth)
	if err != nil {
		return nil, errors.Wrap(err, "invalid bit-width")
	}

	if h := bridge.Headroom(); h < matvec.MinHeadroom {
		return nil, errors.Errorf("logq too small for bitwidth=%d and logn=%d: headroom %.2f < %d", cfg.BitWidth, cfg.LogN, h, matvec.MinHeadroom)
	}

	id := bridge.ID()

	logger.Info().
		Int("logn", params.LogN()).
		Float64("logq", bridge.LogQ()).
		Int("bitwidth", bridge.BitWidth()).
		Float64("headroom", bridge.Headroom()).
		Hex("params_id", id[:8]).
		Int("rows", cfg.Rows).
		Int("cols", cfg.Cols).
		Bool("transposed", cfg.Transposed).
		Msg("starting")

	for run := 0; run < cfg.Runs; run++ {

		if err = ctx.Err(); err != nil {
			return
		}

		session := uuid.New()
		runLogger := logger.With().Str("session", session.String()).Int("run", run).Logger()

		start := time.Now()
		err = runTriple[T](ctx, params, bridge, cfg.Meta(), seed, run, m, runLogger)
		m.run(err)

		if err != nil {
			return nil, errors.Wrapf(err, "run %d (session %s)", run, session)
		}

		d := time.Since(start)
		durations = append(durations, d)

		runLogger.Info().Dur("duration", d).Msg("triple verified")
	}

	return
}

// runTriple runs the two parties of the generation of a triple and checks that
// z_0 + z_1 = (M_0 + M_1) * (v_0 + v_1) mod 2^k.
func runTriple[T utils.Word](ctx context.Context, params rlwe.Parameters, bridge *modswitch.Bridge, meta matvec.Meta, seed []byte, run int, m *metrics, logger zerolog.Logger) (err error) {

	k := bridge.BitWidth()

	var parties [2]*party[T]
	for i := range parties {
		if parties[i], err = newParty[T](params, bridge, seed, run, i, logger); err != nil {
			return
		}
		parties[i].vec = make([]T, meta.VecLen())
		if err = sampling.RandomWords(parties[i].prng, k, parties[i].vec); err != nil {
			return errors.Wrap(err, "cannot sample vector")
		}
	}

	// each party encrypts its vector under its own key
	if err = forEachParty(ctx, parties, func(p, _ *party[T]) (err error) {

		defer m.observe("encrypt", p.name, time.Now())

		pts, err := p.prot.EncodeVector(p.vec, meta)
		if err != nil {
			return
		}

		p.cts = make([]*rlwe.Ciphertext, len(pts))
		for i := range pts {
			if p.cts[i], err = p.enc.EncryptNew(pts[i]); err != nil {
				return
			}
		}

		return
	}); err != nil {
		return errors.Wrap(err, "encrypt")
	}

	// each party multiplies a random matrix with the vector of the other and blinds the result
	if err = forEachParty(ctx, parties, func(p, other *party[T]) (err error) {

		start := time.Now()
		if p.cross, p.mat, err = p.prot.MatVecRandomMat(meta, other.cts, p.prng); err != nil {
			return
		}
		m.observe("matvec", p.name, start)
		m.addStats(p.prot.LastStats())

		defer m.observe("h2a", p.name, time.Now())
		p.revealed, err = p.sc.H2AVector(p.cross, p.prng)
		return
	}); err != nil {
		return errors.Wrap(err, "matvec")
	}

	// each party decrypts its share of the product of the other and adds its local product
	if err = forEachParty(ctx, parties, func(p, other *party[T]) (err error) {

		defer m.observe("decrypt", p.name, time.Now())

		local, err := p.sc.DecryptVectorToShares(p.lweDec, other.cross)
		if err != nil {
			return
		}

		if p.z, err = p.prot.MatVecPlain(p.mat, meta, p.vec); err != nil {
			return
		}

		for r := range p.z {
			p.z[r] = utils.AddMod(p.z[r], utils.AddMod(p.revealed[r], local[r], k), k)
		}

		return
	}); err != nil {
		return errors.Wrap(err, "decrypt")
	}

	return verify(parties, meta, k)
}

// forEachParty runs f concurrently for both parties, f receiving the party and its peer.
func forEachParty[T utils.Word](ctx context.Context, parties [2]*party[T], f func(p, other *party[T]) error) error {

	g, ctx := errgroup.WithContext(ctx)

	for i := range parties {
		p, other := parties[i], parties[1-i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.Wrapf(f(p, other), "party %s", p.name)
		})
	}

	return g.Wait()
}

func verify[T utils.Word](parties [2]*party[T], meta matvec.Meta, k int) error {

	mat := make([]T, len(parties[0].mat))
	for i := range mat {
		mat[i] = utils.AddMod(parties[0].mat[i], parties[1].mat[i], k)
	}

	vec := make([]T, len(parties[0].vec))
	for i := range vec {
		vec[i] = utils.AddMod(parties[0].vec[i], parties[1].vec[i], k)
	}

	want, err := matvec.MatVecPlain(mat, meta, vec, k)
	if err != nil {
		return err
	}

	for r := range want {
		if have := utils.AddMod(parties[0].z[r], parties[1].z[r], k); have != want[r] {
			return errors.Errorf("invalid triple: row %d: have %v, want %v", r, have, want[r])
		}
	}

	return nil
}
