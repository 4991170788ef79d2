package ml

import (
	"errors"
	"math"
	"math/rand"
)

type ForestConfig struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Bootstrap       bool  `json:"bootstrap"`
	RandomThreshold bool  `json:"random_threshold"`
	Seed            int64 `json:"seed"`
}

// RandomForest averages bootstrap-trained regression trees, each split on
// a random sqrt-sized feature subset.
type RandomForest struct {
	Config ForestConfig      `json:"config"`
	Trees  []*RegressionTree `json:"trees"`
}

func NewRandomForest(config ForestConfig) *RandomForest {
	if config.Trees <= 0 {
		config.Trees = 50
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = 12
	}
	config.Bootstrap = true
	return &RandomForest{Config: config}
}

// NewExtraTrees builds the extremely-randomized variant: no bootstrap,
// random split thresholds.
func NewExtraTrees(config ForestConfig) *RandomForest {
	if config.Trees <= 0 {
		config.Trees = 50
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = 12
	}
	config.Bootstrap = false
	config.RandomThreshold = true
	return &RandomForest{Config: config}
}

func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("invalid training set")
	}
	rng := rand.New(rand.NewSource(f.Config.Seed))
	maxFeatures := int(math.Sqrt(float64(len(X[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	f.Trees = make([]*RegressionTree, f.Config.Trees)
	for i := range f.Trees {
		sampleX, sampleY := X, y
		if f.Config.Bootstrap {
			sampleX = make([][]float64, len(X))
			sampleY = make([]float64, len(y))
			for j := range sampleX {
				pick := rng.Intn(len(X))
				sampleX[j] = X[pick]
				sampleY[j] = y[pick]
			}
		}
		tree := NewRegressionTree(TreeConfig{
			MaxDepth:        f.Config.MaxDepth,
			MinSamplesSplit: f.Config.MinSamplesSplit,
			MinSamplesLeaf:  f.Config.MinSamplesLeaf,
			MaxFeatures:     maxFeatures,
			RandomThreshold: f.Config.RandomThreshold,
			Seed:            rng.Int63(),
		})
		if err := tree.Fit(sampleX, sampleY); err != nil {
			return err
		}
		f.Trees[i] = tree
	}
	return nil
}

func (f *RandomForest) Predict(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	sum := 0.0
	for _, tree := range f.Trees {
		v, err := tree.Predict(x)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}
