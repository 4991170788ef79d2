package ml

import (
	"errors"
	"math"
	"math/rand"
)

type SVRConfig struct {
	C       float64 `json:"c"`
	Epsilon float64 `json:"epsilon"`
	Gamma   float64 `json:"gamma"` // 0 means 1/(d·var(X))
	Epochs  int     `json:"epochs"`
	Seed    int64   `json:"seed"`
}

// SVR is an epsilon-insensitive support vector regressor with an RBF
// kernel, trained by stochastic subgradient steps on the dual
// coefficients. Points whose coefficient stays zero are dropped from the
// stored support set.
type SVR struct {
	Config  SVRConfig   `json:"config"`
	Support [][]float64 `json:"support"`
	Beta    []float64   `json:"beta"`
	Bias    float64     `json:"bias"`
	Gamma   float64     `json:"gamma"`
	Trained bool        `json:"trained"`
}

func NewSVR(config SVRConfig) *SVR {
	if config.C <= 0 {
		config.C = 100
	}
	if config.Epsilon <= 0 {
		config.Epsilon = 0.1
	}
	if config.Epochs <= 0 {
		config.Epochs = 20
	}
	return &SVR{Config: config}
}

func (s *SVR) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("invalid training set")
	}
	n := len(X)
	d := len(X[0])

	s.Gamma = s.Config.Gamma
	if s.Gamma <= 0 {
		v := featureVariance(X)
		if v == 0 {
			v = 1
		}
		s.Gamma = 1 / (float64(d) * v)
	}

	s.Bias = mean(y)
	beta := make([]float64, n)
	rng := rand.New(rand.NewSource(s.Config.Seed))

	step := 0
	for epoch := 0; epoch < s.Config.Epochs; epoch++ {
		for k := 0; k < n; k++ {
			i := rng.Intn(n)
			step++
			f := s.Bias
			for j, b := range beta {
				if b != 0 {
					f += b * rbf(X[j], X[i], s.Gamma)
				}
			}
			diff := y[i] - f
			if math.Abs(diff) <= s.Config.Epsilon {
				continue
			}
			eta := s.Config.C / math.Sqrt(float64(step))
			if diff > 0 {
				beta[i] += eta
			} else {
				beta[i] -= eta
			}
		}
	}

	s.Support = s.Support[:0]
	s.Beta = s.Beta[:0]
	for i, b := range beta {
		if b != 0 {
			s.Support = append(s.Support, append([]float64(nil), X[i]...))
			s.Beta = append(s.Beta, b)
		}
	}
	// With no support vectors the fit collapses to the target mean.
	s.Trained = true
	return nil
}

func (s *SVR) Predict(x []float64) (float64, error) {
	if !s.Trained {
		return 0, errors.New("model not trained")
	}
	out := s.Bias
	for i, sv := range s.Support {
		out += s.Beta[i] * rbf(sv, x, s.Gamma)
	}
	return out, nil
}

func rbf(a, b []float64, gamma float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Exp(-gamma * sum)
}

func featureVariance(X [][]float64) float64 {
	var all []float64
	for _, row := range X {
		all = append(all, row...)
	}
	if len(all) < 2 {
		return 0
	}
	m := mean(all)
	sum := 0.0
	for _, v := range all {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(all))
}
