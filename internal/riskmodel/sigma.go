package riskmodel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sanitation tags describe what, if anything, had to be repaired before the
// covariance matrix was safe to optimize against.
const (
	SanitationNone        = ""
	SanitationNonFinite   = "nonfinite_fallback"
	SanitationNonPSD      = "nonpsd_diagonal"
	SanitationEigenFailed = "eigen_failed_diagonal"
)

// psdTolerance is how negative the smallest eigenvalue may be before the
// matrix counts as indefinite. Small negative values are numerical noise.
const psdTolerance = -1e-8

// SanitizeSigma repairs a covariance matrix so downstream optimization never
// sees NaN, Inf, or an indefinite matrix. Any non-finite cell replaces the
// whole matrix with fallbackVar * I; an indefinite matrix is reduced to its
// diagonal. The returned tag records which repair ran.
func SanitizeSigma(sigma *mat.SymDense, fallbackVar float64) (*mat.SymDense, string) {
	n := sigma.SymmetricDim()
	if n == 0 {
		return sigma, SanitationNone
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := sigma.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return scaledIdentity(n, fallbackVar), SanitationNonFinite
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sigma, false) {
		return diagonalOf(sigma), SanitationEigenFailed
	}
	values := eig.Values(nil)
	for _, v := range values {
		if v < psdTolerance {
			return diagonalOf(sigma), SanitationNonPSD
		}
	}
	return sigma, SanitationNone
}

func scaledIdentity(n int, scale float64) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, scale)
	}
	return out
}

func diagonalOf(sigma *mat.SymDense) *mat.SymDense {
	n := sigma.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		d := sigma.At(i, i)
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			d = diagFloor
		}
		out.SetSym(i, i, d)
	}
	return out
}
