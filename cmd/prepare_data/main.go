package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"agriquant/pipeline"
)

func main() {
	days := flag.Int("days", 365*5, "days of history to synthesize")
	out := flag.String("out", "data/crop_prices.csv", "output path")
	missingRate := flag.Float64("missing_rate", 0.05, "fraction of rows with prev_year_price gaps")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg := pipeline.GeneratorConfig{
		Days:        *days,
		End:         time.Now(),
		MissingRate: *missingRate,
		Seed:        *seed,
	}
	obs := pipeline.Generate(cfg)
	log.Printf("generated %d observations", len(obs))

	if err := pipeline.WriteCSV(*out, obs); err != nil {
		log.Fatalf("failed to write training table: %v", err)
	}
	fmt.Printf("training data written to %s\n", *out)
}
