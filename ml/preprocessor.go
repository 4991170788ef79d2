package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Preprocessor fits once on training data and then applies the exact same
// transform to every future row: numeric columns get median imputation and
// robust (median/IQR) scaling, categorical columns get constant "unknown"
// fill and one-hot encoding. Categories never seen during fitting encode to
// an all-zero block instead of failing.
type Preprocessor struct {
	Medians []float64  `json:"medians"`
	Centers []float64  `json:"centers"`
	Scales  []float64  `json:"scales"`
	Vocab   [][]string `json:"vocab"`
}

const unknownCategory = "unknown"

func (p *Preprocessor) Fit(rows []FeatureSet) error {
	if len(rows) == 0 {
		return errors.New("no rows to fit")
	}

	numCols := len(rows[0].Numericals())
	catCols := len(rows[0].Categoricals())

	p.Medians = make([]float64, numCols)
	p.Centers = make([]float64, numCols)
	p.Scales = make([]float64, numCols)

	column := make([]float64, 0, len(rows))
	for j := 0; j < numCols; j++ {
		column = column[:0]
		for _, row := range rows {
			v := row.Numericals()[j]
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				column = append(column, v)
			}
		}
		if len(column) == 0 {
			return fmt.Errorf("numeric column %d has no finite values", j)
		}
		p.Medians[j] = quantile(column, 0.5)

		// Impute, then center/scale on the imputed column.
		imputed := make([]float64, len(rows))
		for i, row := range rows {
			v := row.Numericals()[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = p.Medians[j]
			}
			imputed[i] = v
		}
		p.Centers[j] = quantile(imputed, 0.5)
		iqr := quantile(imputed, 0.75) - quantile(imputed, 0.25)
		if iqr == 0 {
			iqr = 1
		}
		p.Scales[j] = iqr
	}

	p.Vocab = make([][]string, catCols)
	for j := 0; j < catCols; j++ {
		seen := make(map[string]bool)
		for _, row := range rows {
			v := row.Categoricals()[j]
			if v == "" {
				v = unknownCategory
			}
			seen[v] = true
		}
		vocab := make([]string, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)
		p.Vocab[j] = vocab
	}

	return nil
}

// Transform encodes one row into the fitted vector layout:
// scaled numerics first, then the one-hot blocks in column order.
func (p *Preprocessor) Transform(row FeatureSet) ([]float64, error) {
	if p.Vocab == nil {
		return nil, errors.New("preprocessor not fitted")
	}

	nums := row.Numericals()
	if len(nums) != len(p.Medians) {
		return nil, fmt.Errorf("expected %d numeric columns, got %d", len(p.Medians), len(nums))
	}
	cats := row.Categoricals()
	if len(cats) != len(p.Vocab) {
		return nil, fmt.Errorf("expected %d categorical columns, got %d", len(p.Vocab), len(cats))
	}

	out := make([]float64, 0, p.Width())
	for j, v := range nums {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = p.Medians[j]
		}
		out = append(out, (v-p.Centers[j])/p.Scales[j])
	}

	for j, v := range cats {
		if v == "" {
			v = unknownCategory
		}
		block := make([]float64, len(p.Vocab[j]))
		for k, known := range p.Vocab[j] {
			if known == v {
				block[k] = 1
				break
			}
		}
		out = append(out, block...)
	}

	return out, nil
}

func (p *Preprocessor) TransformAll(rows []FeatureSet) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		vec, err := p.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Width is the encoded vector length.
func (p *Preprocessor) Width() int {
	w := len(p.Medians)
	for _, vocab := range p.Vocab {
		w += len(vocab)
	}
	return w
}

// Labels names each encoded column, numerics first then cat=value pairs.
func (p *Preprocessor) Labels() []string {
	labels := append([]string(nil), NumericalNames()...)
	catNames := CategoricalNames()
	for j, vocab := range p.Vocab {
		for _, v := range vocab {
			labels = append(labels, catNames[j]+"="+v)
		}
	}
	return labels
}

func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
