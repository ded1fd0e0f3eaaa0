package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NewDenseFromRows builds an m by n matrix from m rows of n values
func NewDenseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyRows
	}
	n := len(rows[0])
	data := make([]float64, 0, len(rows)*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d columns instead of %d, %w", i, len(row), n, ErrRaggedRows)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), n, data), nil
}

// NewDenseFromColumns builds an m by n matrix from n columns of m values
func NewDenseFromColumns(cols [][]float64) (*mat.Dense, error) {
	if len(cols) == 0 || len(cols[0]) == 0 {
		return nil, ErrEmptyRows
	}
	m := len(cols[0])
	x := mat.NewDense(m, len(cols), nil)
	for j, col := range cols {
		if len(col) != m {
			return nil, fmt.Errorf("column %d has %d rows instead of %d, %w", j, len(col), m, ErrRaggedRows)
		}
		x.SetCol(j, col)
	}
	return x, nil
}

// withIntercept prepends a constant 1.0 column to x
func withIntercept(x mat.Matrix) mat.Matrix {
	m, n := x.Dims()
	out := mat.NewDense(m, n+1, nil)
	for i := 0; i < m; i++ {
		out.Set(i, 0, 1.0)
		for j := 0; j < n; j++ {
			out.Set(i, j+1, x.At(i, j))
		}
	}
	return out
}

func checkTarget(x, y mat.Matrix) error {
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, _ := x.Dims()
	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}
	return nil
}

func predict(x mat.Matrix, intercept float64, coef []float64, fitIntercept bool) ([]float64, error) {
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	m, n := x.Dims()
	if n != len(coef) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(coef), ErrFeatureLenMismatch)
	}

	var res mat.VecDense
	res.MulVec(x, mat.NewVecDense(n, append([]float64(nil), coef...)))
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = res.AtVec(i)
		if fitIntercept {
			out[i] += intercept
		}
	}
	return out, nil
}
