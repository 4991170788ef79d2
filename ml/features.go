package ml

import (
	"math"
	"time"
)

// Observation is one labeled row of the training table.
type Observation struct {
	Date          time.Time
	Year          int
	Month         int
	State         string
	Crop          string
	SoilType      string
	Temperature   float64
	Rainfall      float64
	Humidity      float64
	PrevYearPrice float64
	Price         float64
}

// Input is a single raw prediction request. Date is optional; when absent
// the calendar features fall back to month-based approximations so the
// prediction path stays aligned with training.
type Input struct {
	Crop          string
	State         string
	SoilType      string
	Month         int
	Temperature   float64
	Rainfall      float64
	Humidity      float64
	PrevYearPrice float64
	Date          *time.Time
}

type FeatureSet struct {
	State        string
	Crop         string
	SoilType     string
	Season       string
	CropCategory string

	Month                   float64
	DayOfYear               float64
	Quarter                 float64
	IsWeekend               float64
	Temperature             float64
	Rainfall                float64
	Humidity                float64
	PrevYearPrice           float64
	TempRainfallRatio       float64
	HumidityTempInteraction float64
	WeatherStress           float64
	PriceVolatility         float64
	PriceTrend              float64
	PrevYearPriceRatio      float64
	StateEconomicFactor     float64
	SoilProductivity        float64
	CropDemandScore         float64
	StateCropSpecialization float64
}

// Stand-ins for the crop×state aggregates that need a full training table.
// Fixed approximations, not estimates; single-row prediction uses these.
const (
	defaultPriceVolatility = 100.0
	defaultPriceTrend      = 0.0
	defaultDemandScore     = 2000.0
	defaultSpecialization  = 100.0
)

var cropCategories = map[string]string{
	"Rice": "Cereal", "Wheat": "Cereal", "Maize": "Cereal", "Jowar": "Cereal",
	"Bajra": "Cereal", "Ragi": "Cereal",
	"Cotton": "Fiber", "Sugarcane": "Sugar",
	"Soybean": "Oilseed", "Groundnut": "Oilseed",
	"Potato": "Vegetable", "Onion": "Vegetable",
	"Turmeric": "Spice", "Arhar": "Pulse",
}

var stateEconomicFactors = map[string]float64{
	"Punjab": 1.2, "Maharashtra": 1.1, "Karnataka": 1.0, "Uttar Pradesh": 0.9,
	"Madhya Pradesh": 0.95, "Andhra Pradesh": 1.05, "West Bengal": 0.9,
	"Gujarat": 1.1, "Rajasthan": 0.85, "Haryana": 1.15,
}

var soilProductivityFactors = map[string]float64{
	"Alluvial": 1.2, "Black": 1.1, "Red": 1.0, "Laterite": 0.9,
	"Arid": 0.8, "Mountain": 0.7,
}

func Season(month int) string {
	switch month {
	case 12, 1, 2:
		return "Winter"
	case 3, 4, 5:
		return "Spring"
	case 6, 7, 8:
		return "Summer"
	default:
		return "Autumn"
	}
}

func CropCategory(crop string) string {
	if c, ok := cropCategories[crop]; ok {
		return c
	}
	return "Other"
}

func StateEconomicFactor(state string) float64 {
	if f, ok := stateEconomicFactors[state]; ok {
		return f
	}
	return 1.0
}

func SoilProductivity(soil string) float64 {
	if p, ok := soilProductivityFactors[soil]; ok {
		return p
	}
	return 1.0
}

// DeriveFeatures computes the feature set for a single prediction input.
func DeriveFeatures(in Input) FeatureSet {
	fs := FeatureSet{
		State:        in.State,
		Crop:         in.Crop,
		SoilType:     in.SoilType,
		Season:       Season(in.Month),
		CropCategory: CropCategory(in.Crop),

		Month:         float64(in.Month),
		Temperature:   in.Temperature,
		Rainfall:      in.Rainfall,
		Humidity:      in.Humidity,
		PrevYearPrice: in.PrevYearPrice,

		PriceVolatility:         defaultPriceVolatility,
		PriceTrend:              defaultPriceTrend,
		PrevYearPriceRatio:      1,
		CropDemandScore:         defaultDemandScore,
		StateCropSpecialization: defaultSpecialization,

		StateEconomicFactor: StateEconomicFactor(in.State),
		SoilProductivity:    SoilProductivity(in.SoilType),
	}

	if in.Date != nil {
		fs.DayOfYear = float64(in.Date.YearDay())
		fs.Quarter = float64((int(in.Date.Month())-1)/3 + 1)
		if wd := in.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			fs.IsWeekend = 1
		}
	} else {
		fs.DayOfYear = float64(in.Month * 30)
		fs.Quarter = float64((in.Month-1)/3 + 1)
	}

	fs.TempRainfallRatio = in.Temperature / (in.Rainfall + 1)
	fs.HumidityTempInteraction = in.Humidity * in.Temperature
	if in.Temperature > 35 || in.Rainfall < 10 {
		fs.WeatherStress = 1
	}

	return fs
}

// DeriveTrainingFeatures derives one feature set per observation, with the
// crop×state aggregates computed from the whole table. Rows keep their
// input order; price_trend is the row-over-row percentage change within a
// crop×state group, zero for the first row of a group.
func DeriveTrainingFeatures(obs []Observation) []FeatureSet {
	type groupKey struct{ crop, state string }

	groupPrices := make(map[groupKey][]float64)
	cropPrices := make(map[string][]float64)
	for _, o := range obs {
		k := groupKey{o.Crop, o.State}
		groupPrices[k] = append(groupPrices[k], o.Price)
		cropPrices[o.Crop] = append(cropPrices[o.Crop], o.Price)
	}

	volatility := make(map[groupKey]float64, len(groupPrices))
	for k, prices := range groupPrices {
		volatility[k] = sampleStd(prices)
	}
	demand := make(map[string]float64, len(cropPrices))
	for crop, prices := range cropPrices {
		demand[crop] = mean(prices)
	}

	lastPrice := make(map[groupKey]float64)
	out := make([]FeatureSet, len(obs))
	for i, o := range obs {
		date := o.Date
		fs := DeriveFeatures(Input{
			Crop:          o.Crop,
			State:         o.State,
			SoilType:      o.SoilType,
			Month:         o.Month,
			Temperature:   o.Temperature,
			Rainfall:      o.Rainfall,
			Humidity:      o.Humidity,
			PrevYearPrice: o.PrevYearPrice,
			Date:          &date,
		})

		k := groupKey{o.Crop, o.State}
		fs.PriceVolatility = volatility[k]
		fs.CropDemandScore = demand[o.Crop]
		fs.StateCropSpecialization = float64(len(groupPrices[k]))
		if prev, ok := lastPrice[k]; ok && prev != 0 {
			fs.PriceTrend = (o.Price - prev) / prev
		}
		lastPrice[k] = o.Price
		fs.PrevYearPriceRatio = o.Price / (o.PrevYearPrice + 1)

		out[i] = fs
	}
	return out
}

func (fs FeatureSet) Categoricals() []string {
	return []string{fs.State, fs.Crop, fs.SoilType, fs.Season, fs.CropCategory}
}

func (fs FeatureSet) Numericals() []float64 {
	return []float64{
		fs.Month,
		fs.DayOfYear,
		fs.Quarter,
		fs.IsWeekend,
		fs.Temperature,
		fs.Rainfall,
		fs.Humidity,
		fs.PrevYearPrice,
		fs.TempRainfallRatio,
		fs.HumidityTempInteraction,
		fs.WeatherStress,
		fs.PriceVolatility,
		fs.PriceTrend,
		fs.PrevYearPriceRatio,
		fs.StateEconomicFactor,
		fs.SoilProductivity,
		fs.CropDemandScore,
		fs.StateCropSpecialization,
	}
}

func CategoricalNames() []string {
	return []string{"state", "crop", "soil_type", "season", "crop_category"}
}

func NumericalNames() []string {
	return []string{
		"month",
		"day_of_year",
		"quarter",
		"is_weekend",
		"temperature",
		"rainfall",
		"humidity",
		"prev_year_price",
		"temp_rainfall_ratio",
		"humidity_temp_interaction",
		"weather_stress",
		"price_volatility",
		"price_trend",
		"prev_year_price_ratio",
		"state_economic_factor",
		"soil_productivity",
		"crop_demand_score",
		"state_crop_specialization",
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
