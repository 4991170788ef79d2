// Package pipeline produces and stores the labeled training table the
// offline trainer consumes.
package pipeline

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"agriquant/market"
	"agriquant/ml"
)

// GeneratorConfig controls the synthetic observation generator. One
// observation is produced per (day, state, crop) triple.
type GeneratorConfig struct {
	Days        int
	End         time.Time
	MissingRate float64
	Seed        int64
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Days:        365 * 5,
		End:         time.Now(),
		MissingRate: 0.05,
		Seed:        42,
	}
}

// Generate builds the synthetic table: base price per crop shifted by a
// stable per-state factor, a seasonal factor (winter crops peak
// Oct–Feb, kharif crops peak Jun–Sep), a mild yearly drift, and
// noise; weather is sampled per season. A small share of
// prev_year_price values is "lost" and backfilled with 90% of the mean
// price, mirroring how the real feed behaves.
func Generate(config GeneratorConfig) []ml.Observation {
	if config.Days <= 0 {
		config.Days = 365
	}
	if config.End.IsZero() {
		config.End = time.Now()
	}
	rng := rand.New(rand.NewSource(config.Seed))

	start := config.End.AddDate(0, 0, -(config.Days - 1))
	obs := make([]ml.Observation, 0, config.Days*len(market.States())*len(market.Crops()))

	for d := 0; d < config.Days; d++ {
		date := start.AddDate(0, 0, d)
		month := int(date.Month())
		for _, state := range market.States() {
			stateFactor := 0.9 + float64(stableHash(state)%20)*0.02
			for _, crop := range market.Crops() {
				seasonFactor := 1.0
				switch {
				case isWinterCrop(crop):
					if month >= 10 || month <= 2 {
						seasonFactor = 1.2
					} else {
						seasonFactor = 0.9
					}
				case isKharifCrop(crop):
					if month >= 6 && month <= 9 {
						seasonFactor = 1.2
					} else {
						seasonFactor = 0.9
					}
				}
				yearFactor := 1 + float64(date.Year()-2020)*0.05

				price := market.BasePrice(crop) * stateFactor * seasonFactor * yearFactor * uniform(rng, 0.9, 1.1)

				var temp, rain float64
				switch {
				case month >= 4 && month <= 6: // summer
					temp = rng.NormFloat64()*3 + 35
					rain = gamma(rng, 2, 10)
				case month >= 7 && month <= 9: // monsoon
					temp = rng.NormFloat64()*2 + 30
					rain = gamma(rng, 10, 15)
				default: // winter
					temp = rng.NormFloat64()*3 + 25
					rain = gamma(rng, 3, 5)
				}
				if rain < 0 {
					rain = 0
				}

				obs = append(obs, ml.Observation{
					Date:          date,
					Year:          date.Year(),
					Month:         month,
					State:         state,
					Crop:          crop,
					SoilType:      market.SoilTypes()[rng.Intn(len(market.SoilTypes()))],
					Temperature:   round1(temp),
					Rainfall:      round1(rain),
					Humidity:      round1(uniform(rng, 40, 90)),
					PrevYearPrice: ml.Round2(price * uniform(rng, 0.85, 1.15)),
					Price:         ml.Round2(price),
				})
			}
		}
	}

	backfillMissing(obs, rng, config.MissingRate)
	return obs
}

// backfillMissing drops prev_year_price for a random slice of rows and
// refills it with 90% of the mean price across the table.
func backfillMissing(obs []ml.Observation, rng *rand.Rand, rate float64) {
	if rate <= 0 || len(obs) == 0 {
		return
	}
	total := 0.0
	for _, o := range obs {
		total += o.Price
	}
	fill := ml.Round2(total / float64(len(obs)) * 0.9)
	for i := range obs {
		if rng.Float64() < rate {
			obs[i].PrevYearPrice = fill
		}
	}
}

func stableHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func isWinterCrop(crop string) bool {
	return crop == "Wheat" || crop == "Potato"
}

func isKharifCrop(crop string) bool {
	return crop == "Rice" || crop == "Cotton"
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// gamma draws from Gamma(shape, scale) with Marsaglia–Tsang; shape<1 is
// boosted and corrected with the standard power-of-uniform trick.
func gamma(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1 {
		return gamma(rng, shape+1, scale) * math.Pow(rng.Float64(), 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / (3 * math.Sqrt(d))
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
