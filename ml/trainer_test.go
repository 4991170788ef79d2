package ml

import (
	"math"
	"testing"
	"time"
)

// syntheticTable builds a deterministic table where price follows the
// previous-year price with a seasonal bump, enough structure for every
// candidate to learn from.
func syntheticTable() []Observation {
	crops := []string{"Rice", "Wheat", "Cotton"}
	states := []string{"Punjab", "Gujarat"}
	base := map[string]float64{"Rice": 1800, "Wheat": 2000, "Cotton": 5800}

	var obs []Observation
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 24; d++ {
		date := start.AddDate(0, 0, d*15)
		month := int(date.Month())
		for _, state := range states {
			for _, crop := range crops {
				price := base[crop] * (1 + 0.02*float64(month))
				if state == "Punjab" {
					price *= 1.1
				}
				obs = append(obs, Observation{
					Date:          date,
					Year:          date.Year(),
					Month:         month,
					State:         state,
					Crop:          crop,
					SoilType:      "Alluvial",
					Temperature:   20 + float64(month),
					Rainfall:      30 + 10*float64(month%4),
					Humidity:      60,
					PrevYearPrice: price * 0.95,
					Price:         Round2(price),
				})
			}
		}
	}
	return obs
}

func TestTrainerScoresEveryCandidate(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig())
	if err := trainer.Train(syntheticTable()); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	report := trainer.Report
	for _, name := range []string{"RandomForest", "GradientBoosting", "ExtraTrees", "Ridge", "Lasso", "ElasticNet", "SVR", "Linear"} {
		score, ok := report.ModelPerformance[name]
		if !ok {
			t.Fatalf("missing score for %s", name)
		}
		if math.IsNaN(score.MAE) || math.IsNaN(score.R2) || math.IsNaN(score.RMSE) {
			t.Fatalf("%s produced NaN scores: %+v", name, score)
		}
		if score.MAE < 0 || score.RMSE < 0 {
			t.Fatalf("%s produced negative error: %+v", name, score)
		}
	}

	if _, ok := report.ModelPerformance[report.BestModel]; !ok {
		t.Fatalf("best model %q not among candidates", report.BestModel)
	}
	if report.ServedModel != "ensemble" {
		t.Fatalf("served model must be the ensemble, got %q", report.ServedModel)
	}
	if len(report.EnsembleMembers) != 3 {
		t.Fatalf("expected 3 ensemble members, got %v", report.EnsembleMembers)
	}
	// The reported best candidate leads the ensemble ranking.
	if report.EnsembleMembers[0] != report.BestModel {
		t.Fatalf("ensemble must be led by the best candidate: %v vs %s", report.EnsembleMembers, report.BestModel)
	}
	if report.TrainRows == 0 || report.TestRows == 0 {
		t.Fatalf("empty split: train=%d test=%d", report.TrainRows, report.TestRows)
	}
}

func TestEnsembleAveragesMembers(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig())
	if err := trainer.Train(syntheticTable()); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	fs := DeriveFeatures(sampleInput())
	sum := 0.0
	for _, name := range trainer.Ensemble.MemberNames {
		v, err := trainer.Candidates[name].Estimate(fs)
		if err != nil {
			t.Fatalf("member %s failed: %v", name, err)
		}
		sum += v
	}
	want := sum / float64(len(trainer.Ensemble.Members))

	got, err := trainer.Ensemble.Estimate(fs)
	if err != nil {
		t.Fatalf("ensemble estimate failed: %v", err)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("ensemble is not the member average: %v vs %v", got, want)
	}
}

func TestSaveModelsRoundTrip(t *testing.T) {
	trainer := NewTrainer(DefaultTrainerConfig())
	if err := trainer.Train(syntheticTable()); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	dir := t.TempDir()
	if err := trainer.SaveModels(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	est, err := LoadServingModel(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if est.Type() != "Ensemble" {
		t.Fatalf("expected Ensemble, got %s", est.Type())
	}

	fs := DeriveFeatures(sampleInput())
	want, err := trainer.Ensemble.Estimate(fs)
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	got, err := est.Estimate(fs)
	if err != nil {
		t.Fatalf("reloaded estimate failed: %v", err)
	}
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("reloaded ensemble diverged: %v vs %v", got, want)
	}

	report, err := LoadReport(dir)
	if err != nil {
		t.Fatalf("report load failed: %v", err)
	}
	if len(report.ModelPerformance) != 8 {
		t.Fatalf("expected 8 candidate scores, got %d", len(report.ModelPerformance))
	}
}

func TestStratifiedSplitKeepsEveryCrop(t *testing.T) {
	labels := []string{
		"Rice", "Rice", "Rice", "Rice", "Rice",
		"Wheat", "Wheat", "Wheat", "Wheat", "Wheat",
		"Cotton", "Cotton", "Cotton", "Cotton", "Cotton",
	}
	train, test := stratifiedSplit(labels, 0.2, 42)
	if len(train)+len(test) != len(labels) {
		t.Fatalf("split lost rows: %d + %d != %d", len(train), len(test), len(labels))
	}

	testCrops := make(map[string]bool)
	for _, i := range test {
		testCrops[labels[i]] = true
	}
	for _, crop := range []string{"Rice", "Wheat", "Cotton"} {
		if !testCrops[crop] {
			t.Fatalf("crop %s missing from the held-out split", crop)
		}
	}
}
