package riskmodel

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/quantfold/quantfold/internal/domain"
)

// diagFloor is the hard lower bound on every variance diagonal entry. It
// guards against a singular matrix when the universe has no covariance
// mapping or all sensitivities vanish.
const diagFloor = 1e-4

// Params tunes the risk model transform. Zero-value fields fall back to
// DefaultParams values at construction.
type Params struct {
	// BaseDrift is the annualized drift applied to every underlying when
	// projecting expected spot moves.
	BaseDrift float64 `yaml:"base_drift"`
	// ExpectedVolChange is the annualized expected change in implied vol
	// points; it feeds the vega term of the PnL projection.
	ExpectedVolChange float64 `yaml:"expected_vol_change"`
	// DefaultUnderlyingPrice stands in when neither the position nor its
	// legs carry a usable price.
	DefaultUnderlyingPrice float64 `yaml:"default_underlying_price"`
	// FallbackVariance scales the identity matrix used when the covariance
	// universe is empty or the built matrix had to be discarded.
	FallbackVariance float64 `yaml:"fallback_variance"`
	// RidgeBase and RidgeVegaCoeff shape the idiosyncratic diagonal:
	// base + coeff * |vega/collateral| per position.
	RidgeBase      float64 `yaml:"ridge_base"`
	RidgeVegaCoeff float64 `yaml:"ridge_vega_coeff"`

	DebitCollateralFloor     float64 `yaml:"debit_collateral_floor"`
	CreditCollateralFallback float64 `yaml:"credit_collateral_fallback"`
	CollateralSafetyFloor    float64 `yaml:"collateral_safety_floor"`
}

// DefaultParams returns the standard transform parameters.
func DefaultParams() Params {
	return Params{
		BaseDrift:                0.05,
		ExpectedVolChange:        0.0,
		DefaultUnderlyingPrice:   100.0,
		FallbackVariance:         0.05,
		RidgeBase:                0.01,
		RidgeVegaCoeff:           0.1,
		DebitCollateralFloor:     500.0,
		CreditCollateralFallback: 1000.0,
		CollateralSafetyFloor:    100.0,
	}
}

// Model is the risk transform output: one entry per position, in input
// order. Sigma is always finite and positive semidefinite, and nil for an
// empty universe (gonum rejects zero-dimension matrices); Sanitation records
// the repair applied when the raw build was not.
type Model struct {
	Symbols    []string
	Mu         []float64
	Sigma      *mat.SymDense
	Coskew     CoskewTensor
	Collateral []float64
	Sanitation string
}

// Builder maps position Greeks plus underlying covariance into the
// per-asset (mu, sigma, coskew, collateral) inputs the optimizer consumes.
type Builder struct {
	params Params
	log    zerolog.Logger
}

// NewBuilder constructs a Builder. A nil params uses DefaultParams.
func NewBuilder(params *Params) *Builder {
	p := DefaultParams()
	if params != nil {
		p = withParamDefaults(*params)
	}
	return &Builder{
		params: p,
		log:    log.With().Str("component", "riskmodel").Logger(),
	}
}

func withParamDefaults(p Params) Params {
	d := DefaultParams()
	if p.DefaultUnderlyingPrice <= 0 {
		p.DefaultUnderlyingPrice = d.DefaultUnderlyingPrice
	}
	if p.FallbackVariance <= 0 {
		p.FallbackVariance = d.FallbackVariance
	}
	if p.DebitCollateralFloor <= 0 {
		p.DebitCollateralFloor = d.DebitCollateralFloor
	}
	if p.CreditCollateralFallback <= 0 {
		p.CreditCollateralFallback = d.CreditCollateralFallback
	}
	if p.CollateralSafetyFloor <= 0 {
		p.CollateralSafetyFloor = d.CollateralSafetyFloor
	}
	return p
}

// Build runs the transform over a position snapshot. An empty universe
// returns an empty model; a negative horizon is the only error.
func (b *Builder) Build(positions []domain.SpreadPosition, cov domain.CovarianceInput, horizonDays int) (*Model, error) {
	if horizonDays < 0 {
		return nil, fmt.Errorf("horizon_days %d is negative", horizonDays)
	}
	if err := cov.Validate(); err != nil {
		return nil, fmt.Errorf("covariance input: %w", err)
	}

	n := len(positions)
	model := &Model{
		Symbols:    make([]string, n),
		Mu:         make([]float64, n),
		Collateral: make([]float64, n),
		Coskew:     NewZeroCoskew(n),
	}
	if n == 0 {
		return model, nil
	}

	dt := float64(horizonDays) / 365.0
	for i, pos := range positions {
		c := b.CollateralEstimate(pos)
		s := b.underlyingPrice(pos)

		expectedSpotMove := s * b.params.BaseDrift * dt
		expectedVolMove := b.params.ExpectedVolChange * dt
		thetaPnL := pos.Greeks.Theta * float64(horizonDays)
		expectedPnL := pos.Greeks.Delta*expectedSpotMove + pos.Greeks.Vega*expectedVolMove + thetaPnL

		model.Symbols[i] = pos.Symbol()
		model.Collateral[i] = c
		model.Mu[i] = expectedPnL / c

		b.log.Debug().
			Str("symbol", model.Symbols[i]).
			Float64("collateral", c).
			Float64("expected_pnl", expectedPnL).
			Float64("mu", model.Mu[i]).
			Msg("position transformed")
	}

	sigma := b.buildSigma(positions, cov, model.Collateral)
	sigma, sanitation := SanitizeSigma(sigma, b.params.FallbackVariance)
	if sanitation != SanitationNone {
		b.log.Warn().Str("repair", sanitation).Msg("covariance matrix sanitized")
	}
	model.Sigma = sigma
	model.Sanitation = sanitation
	return model, nil
}

// buildSigma assembles J * Cov * J^T plus the idiosyncratic ridge. With no
// covariance universe at all it returns the identity fallback directly.
func (b *Builder) buildSigma(positions []domain.SpreadPosition, cov domain.CovarianceInput, collateral []float64) *mat.SymDense {
	n := len(positions)
	m := len(cov.Tickers)
	if m == 0 {
		return scaledIdentity(n, b.params.FallbackVariance)
	}

	index := cov.IndexMap()
	jac := mat.NewDense(n, m, nil)
	for i, pos := range positions {
		col, ok := index[pos.Underlying]
		if !ok {
			// Unknown underlying: zero row, variance comes from the ridge.
			b.log.Debug().Str("underlying", pos.Underlying).Msg("underlying absent from covariance input")
			continue
		}
		s := b.underlyingPrice(pos)
		jac.Set(i, col, pos.Greeks.Delta*s/collateral[i])
	}

	covDense := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			covDense.Set(i, j, cov.Matrix[i][j])
		}
	}

	var jc, systematic mat.Dense
	jc.Mul(jac, covDense)
	systematic.Mul(&jc, jac.T())

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// Average the two off-diagonal estimates in case the input
			// matrix was slightly asymmetric.
			v := 0.5 * (systematic.At(i, j) + systematic.At(j, i))
			sigma.SetSym(i, j, v)
		}
	}

	for i, pos := range positions {
		ridge := b.params.RidgeBase + b.params.RidgeVegaCoeff*math.Abs(pos.Greeks.Vega/collateral[i])
		d := sigma.At(i, i) + ridge
		if d < diagFloor {
			d = diagFloor
		}
		sigma.SetSym(i, i, d)
	}
	return sigma
}

// CollateralEstimate computes the capital-at-risk denominator for one
// position. Debit structures risk the premium paid; credit structures risk
// the widest strike distance less the credit received.
func (b *Builder) CollateralEstimate(pos domain.SpreadPosition) float64 {
	qty := float64(pos.AbsQuantity())
	var c float64

	if pos.IsCreditStructure() {
		if lo, hi, ok := pos.StrikeRange(); ok {
			width := hi - lo
			c = width*100*qty + pos.NetCost*qty
		}
		if c <= 0 {
			c = b.params.CreditCollateralFallback
		}
	} else {
		if pos.NetCost > 0 {
			c = pos.NetCost * qty
		}
		if c <= 0 {
			c = pos.CurrentValue
		}
		if c <= 0 {
			c = b.params.DebitCollateralFloor
		}
	}

	if c <= 0.01 {
		c = b.params.CollateralSafetyFloor
	}
	return c
}

// underlyingPrice resolves the spot price used in drift and sensitivity
// terms: the position's quoted underlying price, else the first leg strike
// as a proxy, else the configured default.
func (b *Builder) underlyingPrice(pos domain.SpreadPosition) float64 {
	if pos.UnderlyingPrice > 0 {
		return pos.UnderlyingPrice
	}
	for _, leg := range pos.Legs {
		if leg.Kind != domain.KindEquity && leg.Strike > 0 {
			return leg.Strike
		}
	}
	return b.params.DefaultUnderlyingPrice
}
