package domain

import "fmt"

// CovarianceInput is an n x n matrix of annualized underlying-return
// covariances plus the ticker list indexing it. It may omit tickers that
// positions reference; the risk model treats those as independent.
type CovarianceInput struct {
	Tickers []string    `json:"tickers" yaml:"tickers"`
	Matrix  [][]float64 `json:"matrix" yaml:"matrix"`
}

// Validate checks dimensions only. Non-finite or asymmetric cells are not
// rejected here; the risk model sanitizes them instead of failing.
func (c CovarianceInput) Validate() error {
	n := len(c.Tickers)
	if len(c.Matrix) != n {
		return fmt.Errorf("covariance matrix has %d rows for %d tickers", len(c.Matrix), n)
	}
	for i, row := range c.Matrix {
		if len(row) != n {
			return fmt.Errorf("covariance matrix row %d has %d columns, want %d", i, len(row), n)
		}
	}
	return nil
}

// IndexMap builds a ticker -> column index lookup. Later duplicates of a
// ticker are ignored so the mapping stays deterministic.
func (c CovarianceInput) IndexMap() map[string]int {
	idx := make(map[string]int, len(c.Tickers))
	for i, t := range c.Tickers {
		if _, seen := idx[t]; !seen {
			idx[t] = i
		}
	}
	return idx
}
