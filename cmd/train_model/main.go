package main

import (
	"flag"
	"fmt"
	"log"

	"agriquant/ml"
	"agriquant/pipeline"
)

func main() {
	dataPath := flag.String("data", "data/crop_prices.csv", "training table path")
	modelDir := flag.String("model_dir", "models", "model output directory")
	testRatio := flag.Float64("test_ratio", 0.2, "held-out split ratio")
	topK := flag.Int("top_k", 15, "features kept by univariate selection")
	ensembleSize := flag.Int("ensemble_size", 3, "candidates in the voting ensemble")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	obs, err := pipeline.ReadCSV(*dataPath)
	if err != nil {
		log.Fatalf("failed to load training data: %v", err)
	}
	log.Printf("loaded %d observations from %s", len(obs), *dataPath)

	trainer := ml.NewTrainer(ml.TrainerConfig{
		TestRatio:    *testRatio,
		TopK:         *topK,
		EnsembleSize: *ensembleSize,
		Seed:         *seed,
	})
	if err := trainer.Train(obs); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	report := trainer.Report
	for _, name := range []string{"RandomForest", "GradientBoosting", "ExtraTrees", "Ridge", "Lasso", "ElasticNet", "SVR", "Linear"} {
		score := report.ModelPerformance[name]
		log.Printf("%-16s mae=%.2f rmse=%.2f r2=%.4f", name, score.MAE, score.RMSE, score.R2)
	}
	log.Printf("best candidate by r2: %s", report.BestModel)
	log.Printf("serving ensemble of %v (r2=%.4f)", report.EnsembleMembers, report.EnsembleScore.R2)

	if err := trainer.SaveModels(*modelDir); err != nil {
		log.Fatalf("failed to save models: %v", err)
	}
	fmt.Printf("models saved to %s\n", *modelDir)
}
