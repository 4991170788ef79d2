package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

type TrainerConfig struct {
	TestRatio    float64
	TopK         int
	EnsembleSize int
	Seed         int64
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		TestRatio:    0.2,
		TopK:         15,
		EnsembleSize: 3,
		Seed:         42,
	}
}

type CandidateScore struct {
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
}

// TrainingReport records every candidate's held-out scores. BestModel is
// the single best candidate by R². The served artifact is the top-N voting
// ensemble, whose membership follows the same ranking.
type TrainingReport struct {
	ModelPerformance  map[string]CandidateScore `json:"model_performance"`
	BestModel         string                    `json:"best_model"`
	ServedModel       string                    `json:"served_model"`
	EnsembleMembers   []string                  `json:"ensemble_members"`
	EnsembleScore     CandidateScore            `json:"ensemble_score"`
	TrainRows         int                       `json:"train_rows"`
	TestRows          int                       `json:"test_rows"`
	TrainingTimestamp string                    `json:"training_timestamp"`
}

type Trainer struct {
	Config TrainerConfig

	Candidates map[string]*Pipeline
	Ensemble   *VotingEnsemble
	Report     *TrainingReport
}

func NewTrainer(config TrainerConfig) *Trainer {
	if config.TestRatio <= 0 || config.TestRatio >= 1 {
		config.TestRatio = 0.2
	}
	if config.TopK <= 0 {
		config.TopK = 15
	}
	if config.EnsembleSize <= 0 {
		config.EnsembleSize = 3
	}
	return &Trainer{Config: config}
}

// candidateNames is the fixed candidate set, in a stable order.
func candidateNames() []string {
	return []string{
		"RandomForest",
		"GradientBoosting",
		"ExtraTrees",
		"Ridge",
		"Lasso",
		"ElasticNet",
		"SVR",
		"Linear",
	}
}

func newCandidate(name string, seed int64) (Regressor, error) {
	switch name {
	case "RandomForest":
		return NewRandomForest(ForestConfig{
			Trees:           200,
			MaxDepth:        15,
			MinSamplesSplit: 5,
			MinSamplesLeaf:  2,
			Seed:            seed,
		}), nil
	case "GradientBoosting":
		return NewGradientBoosting(BoostingConfig{
			Stages:          300,
			LearningRate:    0.05,
			MaxDepth:        8,
			MinSamplesSplit: 10,
			MinSamplesLeaf:  4,
			Seed:            seed,
		}), nil
	case "ExtraTrees":
		return NewExtraTrees(ForestConfig{
			Trees:           200,
			MaxDepth:        15,
			MinSamplesSplit: 5,
			MinSamplesLeaf:  2,
			Seed:            seed,
		}), nil
	case "Ridge":
		return NewRidge(1.0), nil
	case "Lasso":
		return NewLasso(0.1), nil
	case "ElasticNet":
		return NewElasticNet(0.1, 0.5), nil
	case "SVR":
		return NewSVR(SVRConfig{C: 100, Seed: seed}), nil
	case "Linear":
		return &OLS{}, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", name)
	}
}

// Train fits every candidate on an 80/20 split stratified by crop, scores
// each on the held-out rows, and assembles the voting ensemble from the
// top candidates by R².
func (t *Trainer) Train(obs []Observation) error {
	if len(obs) < 10 {
		return fmt.Errorf("training table too small: %d rows", len(obs))
	}

	features := DeriveTrainingFeatures(obs)
	prices := make([]float64, len(obs))
	crops := make([]string, len(obs))
	for i, o := range obs {
		prices[i] = o.Price
		crops[i] = o.Crop
	}

	trainIdx, testIdx := stratifiedSplit(crops, t.Config.TestRatio, t.Config.Seed)
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return errors.New("split produced an empty partition")
	}

	trainRows := pick(features, trainIdx)
	testRows := pick(features, testIdx)
	trainY := pickFloats(prices, trainIdx)
	testY := pickFloats(prices, testIdx)

	pre := &Preprocessor{}
	if err := pre.Fit(trainRows); err != nil {
		return fmt.Errorf("fit preprocessor: %w", err)
	}
	encoded, err := pre.TransformAll(trainRows)
	if err != nil {
		return err
	}
	selector := NewKBestSelector(t.Config.TopK)
	if err := selector.Fit(encoded, trainY); err != nil {
		return fmt.Errorf("fit feature selector: %w", err)
	}

	t.Candidates = make(map[string]*Pipeline)
	t.Report = &TrainingReport{
		ModelPerformance:  make(map[string]CandidateScore),
		TrainRows:         len(trainRows),
		TestRows:          len(testRows),
		TrainingTimestamp: time.Now().Format(time.RFC3339),
	}

	for _, name := range candidateNames() {
		model, err := newCandidate(name, t.Config.Seed)
		if err != nil {
			return err
		}
		p := &Pipeline{
			ModelType:    name,
			Preprocessor: pre,
			Selector:     selector,
			Model:        model,
		}
		if err := p.Fit(trainRows, trainY); err != nil {
			return fmt.Errorf("fit %s: %w", name, err)
		}
		score, err := scorePipeline(p, testRows, testY)
		if err != nil {
			return fmt.Errorf("score %s: %w", name, err)
		}
		t.Candidates[name] = p
		t.Report.ModelPerformance[name] = score
	}

	ranked := t.rankByR2()
	t.Report.BestModel = ranked[0]

	n := t.Config.EnsembleSize
	if n > len(ranked) {
		n = len(ranked)
	}
	t.Ensemble = &VotingEnsemble{}
	for _, name := range ranked[:n] {
		t.Ensemble.MemberNames = append(t.Ensemble.MemberNames, name)
		t.Ensemble.Members = append(t.Ensemble.Members, t.Candidates[name])
	}
	t.Report.ServedModel = "ensemble"
	t.Report.EnsembleMembers = t.Ensemble.MemberNames

	ensembleScore, err := scoreEstimator(t.Ensemble, testRows, testY)
	if err != nil {
		return err
	}
	t.Report.EnsembleScore = ensembleScore
	return nil
}

func (t *Trainer) rankByR2() []string {
	names := candidateNames()
	sort.SliceStable(names, func(a, b int) bool {
		return t.Report.ModelPerformance[names[a]].R2 > t.Report.ModelPerformance[names[b]].R2
	})
	return names
}

// SaveModels writes the serving ensemble, every individual candidate, and
// the score metadata into dir.
func (t *Trainer) SaveModels(dir string) error {
	if t.Ensemble == nil || t.Report == nil {
		return errors.New("trainer has not run")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := t.Ensemble.Save(filepath.Join(dir, EnsembleFile)); err != nil {
		return err
	}
	for name, p := range t.Candidates {
		if err := p.Save(filepath.Join(dir, candidateFile(name))); err != nil {
			return err
		}
	}
	payload, err := json.MarshalIndent(t.Report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetadataFile), payload, 0o600)
}

func scorePipeline(p *Pipeline, rows []FeatureSet, y []float64) (CandidateScore, error) {
	return scoreEstimator(p, rows, y)
}

func scoreEstimator(est PriceEstimator, rows []FeatureSet, y []float64) (CandidateScore, error) {
	predicted := make([]float64, len(rows))
	for i, row := range rows {
		v, err := est.Estimate(row)
		if err != nil {
			return CandidateScore{}, err
		}
		predicted[i] = v
	}

	mae := 0.0
	mse := 0.0
	for i := range y {
		d := y[i] - predicted[i]
		mae += math.Abs(d)
		mse += d * d
	}
	mae /= float64(len(y))
	mse /= float64(len(y))

	return CandidateScore{
		MAE:  mae,
		RMSE: math.Sqrt(mse),
		R2:   stat.RSquaredFrom(predicted, y, nil),
	}, nil
}

// stratifiedSplit partitions row indices so each crop keeps roughly the
// same train/test proportion.
func stratifiedSplit(labels []string, testRatio float64, seed int64) (train, test []int) {
	groups := make(map[string][]int)
	order := make([]string, 0)
	for i, label := range labels {
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], i)
	}
	sort.Strings(order)

	rng := rand.New(rand.NewSource(seed))
	for _, label := range order {
		idx := groups[label]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		cut := int(math.Round(float64(len(idx)) * testRatio))
		if cut == 0 && len(idx) > 1 {
			cut = 1
		}
		test = append(test, idx[:cut]...)
		train = append(train, idx[cut:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func pick(rows []FeatureSet, idx []int) []FeatureSet {
	out := make([]FeatureSet, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func pickFloats(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
