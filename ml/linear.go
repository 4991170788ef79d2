package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
)

// Ridge solves the L2-penalized normal equations with gonum; the
// intercept column is not penalized.
type Ridge struct {
	Alpha   float64   `json:"alpha"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

func (r *Ridge) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("invalid training set")
	}
	n := len(X)
	d := len(X[0])

	a := mat.NewDense(n, d+1, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for j := 1; j <= d; j++ {
		ata.Set(j, j, ata.At(j, j)+r.Alpha)
	}
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var w mat.VecDense
	if err := w.SolveVec(&ata, &atb); err != nil {
		return fmt.Errorf("ridge solve: %w", err)
	}

	r.Bias = w.AtVec(0)
	r.Weights = make([]float64, d)
	for j := 0; j < d; j++ {
		r.Weights[j] = w.AtVec(j + 1)
	}
	return nil
}

func (r *Ridge) Predict(x []float64) (float64, error) {
	return linearPredict(r.Bias, r.Weights, x)
}

// ElasticNet minimizes 1/(2n)·||y−Xw||² + α·(l1·||w||₁ + (1−l1)/2·||w||²)
// by cyclic coordinate descent. L1Ratio 1 is the lasso.
type ElasticNet struct {
	Alpha   float64   `json:"alpha"`
	L1Ratio float64   `json:"l1_ratio"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func NewLasso(alpha float64) *ElasticNet {
	return &ElasticNet{Alpha: alpha, L1Ratio: 1}
}

func NewElasticNet(alpha, l1Ratio float64) *ElasticNet {
	return &ElasticNet{Alpha: alpha, L1Ratio: l1Ratio}
}

func (e *ElasticNet) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("invalid training set")
	}
	n := len(X)
	d := len(X[0])

	e.Weights = make([]float64, d)
	e.Bias = mean(y)

	colNorm := make([]float64, d)
	for j := 0; j < d; j++ {
		for i := range X {
			colNorm[j] += X[i][j] * X[i][j]
		}
	}

	residual := make([]float64, n)
	for i := range residual {
		residual[i] = y[i] - e.Bias
	}

	l1 := e.Alpha * e.L1Ratio
	l2 := e.Alpha * (1 - e.L1Ratio)

	const iterations = 500
	const tol = 1e-6
	for it := 0; it < iterations; it++ {
		maxDelta := 0.0
		for j := 0; j < d; j++ {
			if colNorm[j] == 0 {
				continue
			}
			old := e.Weights[j]
			rho := 0.0
			for i := range X {
				rho += X[i][j] * (residual[i] + old*X[i][j])
			}
			rho /= float64(n)
			w := softThreshold(rho, l1) / (colNorm[j]/float64(n) + l2)
			if w != old {
				delta := w - old
				for i := range X {
					residual[i] -= delta * X[i][j]
				}
				e.Weights[j] = w
				if math.Abs(delta) > maxDelta {
					maxDelta = math.Abs(delta)
				}
			}
		}
		biasDelta := mean(residual)
		e.Bias += biasDelta
		for i := range residual {
			residual[i] -= biasDelta
		}
		if maxDelta < tol && math.Abs(biasDelta) < tol {
			break
		}
	}
	return nil
}

func (e *ElasticNet) Predict(x []float64) (float64, error) {
	return linearPredict(e.Bias, e.Weights, x)
}

// OLS wraps the sajari least-squares fitter as the plain linear baseline.
// Near-collinear one-hot blocks occasionally make the solve fail; the
// fallback is an effectively unpenalized ridge on the same data.
type OLS struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (o *OLS) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("invalid training set")
	}

	var r regression.Regression
	r.SetObserved("price")
	for j := range X[0] {
		r.SetVar(j, fmt.Sprintf("f%d", j))
	}
	for i, row := range X {
		r.Train(regression.DataPoint(y[i], row))
	}

	if err := r.Run(); err != nil {
		fallback := NewRidge(1e-8)
		if ferr := fallback.Fit(X, y); ferr != nil {
			return fmt.Errorf("ols: %w", err)
		}
		o.Bias = fallback.Bias
		o.Weights = fallback.Weights
		return nil
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) != len(X[0])+1 {
		return fmt.Errorf("ols: unexpected coefficient count %d", len(coeffs))
	}
	o.Bias = coeffs[0]
	o.Weights = append([]float64(nil), coeffs[1:]...)
	return nil
}

func (o *OLS) Predict(x []float64) (float64, error) {
	return linearPredict(o.Bias, o.Weights, x)
}

func linearPredict(bias float64, weights, x []float64) (float64, error) {
	if weights == nil {
		return 0, errors.New("model not trained")
	}
	if len(x) != len(weights) {
		return 0, fmt.Errorf("expected %d features, got %d", len(weights), len(x))
	}
	out := bias
	for j, w := range weights {
		out += w * x[j]
	}
	return out, nil
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}
