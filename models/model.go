// Package models is a collection of linear regression fitting implementations shared by the
// forecasting back-ends.
package models

import (
	"gonum.org/v1/gonum/mat"
)

// Model is a linear regression fit on a design matrix x with m observations by n features and a
// target column vector y of m observations.
type Model interface {
	Fit(x, y mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Score(x, y mat.Matrix) (float64, error)
	Intercept() float64
	Coef() []float64
}
