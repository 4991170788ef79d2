package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

type TreeConfig struct {
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"`
	RandomThreshold bool  `json:"random_threshold"`
	Seed            int64 `json:"seed"`
}

// RegressionTree is a CART-style tree stored as a flat node slice. Splits
// use the per-feature median (or a uniform random cut when
// RandomThreshold is set) and minimize weighted squared error; leaves
// predict the mean target of their samples.
type RegressionTree struct {
	Nodes  []TreeNode `json:"nodes"`
	Config TreeConfig `json:"config"`

	rng *rand.Rand
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewRegressionTree(config TreeConfig) *RegressionTree {
	if config.MaxDepth <= 0 {
		config.MaxDepth = 8
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if config.MinSamplesLeaf < 1 {
		config.MinSamplesLeaf = 1
	}
	return &RegressionTree{Config: config}
}

func (t *RegressionTree) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(y) == 0 {
		return errors.New("features or targets empty")
	}
	if len(X) != len(y) {
		return errors.New("features and targets size mismatch")
	}
	t.rng = rand.New(rand.NewSource(t.Config.Seed))
	t.Nodes = t.buildNode(X, y, 0)
	return nil
}

func (t *RegressionTree) Predict(x []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(x) {
			return 0, errors.New("feature index out of range")
		}
		if x[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (t *RegressionTree) buildNode(X [][]float64, y []float64, depth int) []TreeNode {
	leaf := []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      mean(y),
		IsLeaf:     true,
	}}

	if depth >= t.Config.MaxDepth || len(y) < t.Config.MinSamplesSplit || isConstant(y) {
		return leaf
	}

	bestFeature, threshold, ok := t.findBestSplit(X, y)
	if !ok {
		return leaf
	}

	leftX, leftY, rightX, rightY := splitSamples(X, y, bestFeature, threshold)
	if len(leftY) < t.Config.MinSamplesLeaf || len(rightY) < t.Config.MinSamplesLeaf {
		return leaf
	}

	leftNodes := t.buildNode(leftX, leftY, depth+1)
	rightNodes := t.buildNode(rightX, rightY, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      mean(y),
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func (t *RegressionTree) findBestSplit(X [][]float64, y []float64) (int, float64, bool) {
	featureCount := len(X[0])
	candidates := t.candidateFeatures(featureCount)

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.MaxFloat64

	values := make([]float64, len(X))
	for _, featureIdx := range candidates {
		for i := range X {
			values[i] = X[i][featureIdx]
		}
		threshold := t.candidateThreshold(values)
		leftY, rightY := splitTargets(X, y, featureIdx, threshold)
		if len(leftY) == 0 || len(rightY) == 0 {
			continue
		}
		score := weightedSSE(leftY, rightY)
		if score < bestScore {
			bestScore = score
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (t *RegressionTree) candidateFeatures(featureCount int) []int {
	if t.Config.MaxFeatures <= 0 || t.Config.MaxFeatures >= featureCount {
		all := make([]int, featureCount)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := t.rng.Perm(featureCount)
	picked := append([]int(nil), perm[:t.Config.MaxFeatures]...)
	sort.Ints(picked)
	return picked
}

func (t *RegressionTree) candidateThreshold(values []float64) float64 {
	if !t.Config.RandomThreshold {
		return median(values)
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return lo
	}
	return lo + t.rng.Float64()*(hi-lo)
}

func splitSamples(X [][]float64, y []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for i, x := range X {
		if x[featureIdx] <= threshold {
			leftX = append(leftX, x)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, x)
			rightY = append(rightY, y[i])
		}
	}
	return leftX, leftY, rightX, rightY
}

func splitTargets(X [][]float64, y []float64, featureIdx int, threshold float64) ([]float64, []float64) {
	var leftY, rightY []float64
	for i, x := range X {
		if x[featureIdx] <= threshold {
			leftY = append(leftY, y[i])
		} else {
			rightY = append(rightY, y[i])
		}
	}
	return leftY, rightY
}

func weightedSSE(leftY, rightY []float64) float64 {
	return sse(leftY) + sse(rightY)
}

func sse(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	m := mean(y)
	sum := 0.0
	for _, v := range y {
		d := v - m
		sum += d * d
	}
	return sum
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func isConstant(y []float64) bool {
	if len(y) == 0 {
		return true
	}
	first := y[0]
	for _, v := range y[1:] {
		if v != first {
			return false
		}
	}
	return true
}
