package ml

import "errors"

type BoostingConfig struct {
	Stages          int     `json:"stages"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	Seed            int64   `json:"seed"`
}

// GradientBoosting fits shallow regression trees to the running residual,
// starting from the mean target.
type GradientBoosting struct {
	Config BoostingConfig    `json:"config"`
	Base   float64           `json:"base"`
	Trees  []*RegressionTree `json:"trees"`
}

func NewGradientBoosting(config BoostingConfig) *GradientBoosting {
	if config.Stages <= 0 {
		config.Stages = 100
	}
	if config.LearningRate <= 0 {
		config.LearningRate = 0.05
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = 4
	}
	return &GradientBoosting{Config: config}
}

func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("invalid training set")
	}
	g.Base = mean(y)
	g.Trees = g.Trees[:0]

	residual := make([]float64, len(y))
	current := make([]float64, len(y))
	for i := range current {
		current[i] = g.Base
	}

	for stage := 0; stage < g.Config.Stages; stage++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		tree := NewRegressionTree(TreeConfig{
			MaxDepth:        g.Config.MaxDepth,
			MinSamplesSplit: g.Config.MinSamplesSplit,
			MinSamplesLeaf:  g.Config.MinSamplesLeaf,
			Seed:            g.Config.Seed + int64(stage),
		})
		if err := tree.Fit(X, residual); err != nil {
			return err
		}
		g.Trees = append(g.Trees, tree)
		for i, x := range X {
			v, err := tree.Predict(x)
			if err != nil {
				return err
			}
			current[i] += g.Config.LearningRate * v
		}
	}
	return nil
}

func (g *GradientBoosting) Predict(x []float64) (float64, error) {
	if len(g.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	out := g.Base
	for _, tree := range g.Trees {
		v, err := tree.Predict(x)
		if err != nil {
			return 0, err
		}
		out += g.Config.LearningRate * v
	}
	return out, nil
}
