package riskmodel

// CoskewTensor is the n x n x n third-moment risk tensor. It is a reserved
// extension point: the builder always emits zeros, but the contraction is
// real so a future skew model plugs in without optimizer changes.
type CoskewTensor [][][]float64

// NewZeroCoskew allocates an all-zero n x n x n tensor.
func NewZeroCoskew(n int) CoskewTensor {
	t := make(CoskewTensor, n)
	for i := range t {
		t[i] = make([][]float64, n)
		for j := range t[i] {
			t[i][j] = make([]float64, n)
		}
	}
	return t
}

// Dim returns the tensor's edge length.
func (t CoskewTensor) Dim() int {
	return len(t)
}

// IsZero reports whether every cell is exactly zero.
func (t CoskewTensor) IsZero() bool {
	for i := range t {
		for j := range t[i] {
			for k := range t[i][j] {
				if t[i][j][k] != 0 {
					return false
				}
			}
		}
	}
	return true
}

// Contract evaluates the trilinear form sum_ijk t[i][j][k] w_i w_j w_k.
func (t CoskewTensor) Contract(w []float64) float64 {
	var total float64
	for i := range t {
		wi := w[i]
		if wi == 0 {
			continue
		}
		for j := range t[i] {
			wij := wi * w[j]
			if wij == 0 {
				continue
			}
			for k, c := range t[i][j] {
				if c != 0 {
					total += c * wij * w[k]
				}
			}
		}
	}
	return total
}

// AddContractGradient accumulates the gradient of Contract into grad, scaled
// by coeff. The tensor is treated as symmetric in its indices, so the
// derivative in w_i is 3 * sum_jk t[i][j][k] w_j w_k.
func (t CoskewTensor) AddContractGradient(grad, w []float64, coeff float64) {
	for i := range t {
		var partial float64
		for j := range t[i] {
			wj := w[j]
			if wj == 0 {
				continue
			}
			for k, c := range t[i][j] {
				if c != 0 {
					partial += c * wj * w[k]
				}
			}
		}
		grad[i] += coeff * 3 * partial
	}
}
