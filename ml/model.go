package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"
)

// Regressor fits on encoded feature vectors and produces a price estimate
// for one vector.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) (float64, error)
}

// PriceEstimator produces a price estimate from a derived feature set.
// Concrete variants are a single fitted Pipeline and a VotingEnsemble.
type PriceEstimator interface {
	Estimate(fs FeatureSet) (float64, error)
	Type() string
}

// Pipeline chains the fitted preprocessing transform, the feature
// selector, and one regressor.
type Pipeline struct {
	ModelType    string
	Preprocessor *Preprocessor
	Selector     *KBestSelector
	Model        Regressor
}

func (p *Pipeline) Fit(rows []FeatureSet, y []float64) error {
	if p.Preprocessor == nil || p.Selector == nil || p.Model == nil {
		return errors.New("pipeline is missing a stage")
	}
	encoded, err := p.Preprocessor.TransformAll(rows)
	if err != nil {
		return err
	}
	selected, err := p.Selector.TransformAll(encoded)
	if err != nil {
		return err
	}
	return p.Model.Fit(selected, y)
}

func (p *Pipeline) Estimate(fs FeatureSet) (float64, error) {
	encoded, err := p.Preprocessor.Transform(fs)
	if err != nil {
		return 0, err
	}
	selected, err := p.Selector.Transform(encoded)
	if err != nil {
		return 0, err
	}
	return p.Model.Predict(selected)
}

func (p *Pipeline) Type() string { return p.ModelType }

// VotingEnsemble averages the estimates of its member pipelines.
type VotingEnsemble struct {
	MemberNames []string
	Members     []*Pipeline
}

func (e *VotingEnsemble) Estimate(fs FeatureSet) (float64, error) {
	if len(e.Members) == 0 {
		return 0, errors.New("ensemble has no members")
	}
	sum := 0.0
	for _, m := range e.Members {
		v, err := m.Estimate(fs)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(e.Members)), nil
}

func (e *VotingEnsemble) Type() string { return "Ensemble" }

type ModelMetadata struct {
	ModelType           string `json:"model_type"`
	FeaturesUsed        int    `json:"features_used"`
	PredictionTimestamp string `json:"prediction_timestamp"`
}

type PredictionResult struct {
	PredictedPrice     float64       `json:"predicted_price"`
	ConfidenceInterval []float64     `json:"confidence_interval"`
	Currency           string        `json:"currency"`
	ModelMetadata      ModelMetadata `json:"model_metadata"`
}

// Predict derives features for one input, runs the estimator, and wraps
// the point estimate with the fixed ±10% envelope. The band is a heuristic
// convention, not a statistical interval.
func Predict(est PriceEstimator, in Input) (PredictionResult, error) {
	if est == nil {
		return PredictionResult{}, errors.New("no estimator loaded")
	}
	fs := DeriveFeatures(in)
	price, err := est.Estimate(fs)
	if err != nil {
		return PredictionResult{}, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return PredictionResult{}, fmt.Errorf("estimator produced a non-finite price")
	}
	if price < 0 {
		price = 0
	}
	return PredictionResult{
		PredictedPrice:     Round2(price),
		ConfidenceInterval: []float64{Round2(price * 0.9), Round2(price * 1.1)},
		Currency:           "INR",
		ModelMetadata: ModelMetadata{
			ModelType:           est.Type(),
			FeaturesUsed:        len(NumericalNames()) + len(CategoricalNames()),
			PredictionTimestamp: time.Now().Format(time.RFC3339),
		},
	}, nil
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type pipelineArtifact struct {
	ModelType    string          `json:"model_type"`
	Preprocessor *Preprocessor   `json:"preprocessor"`
	Selector     *KBestSelector  `json:"selector"`
	Model        json.RawMessage `json:"model"`
}

type ensembleArtifact struct {
	MemberNames []string           `json:"member_names"`
	Members     []pipelineArtifact `json:"members"`
}

func (p *Pipeline) artifact() (pipelineArtifact, error) {
	payload, err := json.Marshal(p.Model)
	if err != nil {
		return pipelineArtifact{}, err
	}
	return pipelineArtifact{
		ModelType:    p.ModelType,
		Preprocessor: p.Preprocessor,
		Selector:     p.Selector,
		Model:        payload,
	}, nil
}

func (p *Pipeline) Save(path string) error {
	art, err := p.artifact()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(art)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (e *VotingEnsemble) Save(path string) error {
	art := ensembleArtifact{MemberNames: e.MemberNames}
	for _, m := range e.Members {
		ma, err := m.artifact()
		if err != nil {
			return err
		}
		art.Members = append(art.Members, ma)
	}
	payload, err := json.Marshal(art)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
