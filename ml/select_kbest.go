package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// KBestSelector keeps the K columns with the highest univariate
// F-statistic against the target, F = r²/(1-r²)·(n-2) with r the Pearson
// correlation. Constant columns score zero.
type KBestSelector struct {
	K       int       `json:"k"`
	Indices []int     `json:"indices"`
	Scores  []float64 `json:"scores"`
}

func NewKBestSelector(k int) *KBestSelector {
	return &KBestSelector{K: k}
}

func (s *KBestSelector) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.New("no samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("sample/target length mismatch: %d vs %d", len(X), len(y))
	}
	n := len(X)
	width := len(X[0])

	s.Scores = make([]float64, width)
	column := make([]float64, n)
	for j := 0; j < width; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		r := stat.Correlation(column, y, nil)
		r2 := r * r
		if r2 >= 1 {
			r2 = 1 - 1e-12
		}
		if r2 > 0 && n > 2 {
			s.Scores[j] = r2 / (1 - r2) * float64(n-2)
		}
	}

	k := s.K
	if k <= 0 || k > width {
		k = width
	}
	order := make([]int, width)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Scores[order[a]] > s.Scores[order[b]]
	})
	s.Indices = append([]int(nil), order[:k]...)
	sort.Ints(s.Indices)
	return nil
}

func (s *KBestSelector) Transform(x []float64) ([]float64, error) {
	if s.Indices == nil {
		return nil, errors.New("selector not fitted")
	}
	out := make([]float64, len(s.Indices))
	for i, j := range s.Indices {
		if j >= len(x) {
			return nil, fmt.Errorf("selected index %d out of range for width %d", j, len(x))
		}
		out[i] = x[j]
	}
	return out, nil
}

func (s *KBestSelector) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		vec, err := s.Transform(x)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
