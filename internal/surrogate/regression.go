package surrogate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("regression training data is singular")

// Model is an ordinary least squares fit with an intercept.
type Model struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

func (m Model) Predict(x []float64) float64 {
	y := m.Intercept
	for i, w := range m.Weights {
		y += w * x[i]
	}
	return y
}

// Fit solves the least squares problem through a QR factorisation. Rank
// deficient or ill-conditioned designs are reported as ErrSingular.
func Fit(x [][]float64, y []float64) (Model, error) {
	if len(x) == 0 {
		return Model{}, fmt.Errorf("no training rows")
	}
	if len(x) != len(y) {
		return Model{}, fmt.Errorf("training rows %d and targets %d differ", len(x), len(y))
	}
	features := len(x[0])
	cols := features + 1
	if len(x) < cols {
		return Model{}, fmt.Errorf("%w: %d rows for %d coefficients", ErrSingular, len(x), cols)
	}

	design := mat.NewDense(len(x), cols, nil)
	for i, row := range x {
		if len(row) != features {
			return Model{}, fmt.Errorf("training row %d has %d features, want %d", i, len(row), features)
		}
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	target := mat.NewVecDense(len(y), append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, target); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return Model{}, fmt.Errorf("%w: condition number %g", ErrSingular, float64(cond))
		}
		return Model{}, err
	}

	model := Model{Intercept: beta.AtVec(0), Weights: make([]float64, features)}
	for j := range model.Weights {
		model.Weights[j] = beta.AtVec(j + 1)
	}
	return model, nil
}
