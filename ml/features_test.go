package ml

import (
	"math"
	"testing"
	"time"
)

func sampleInput() Input {
	return Input{
		Crop:          "Rice",
		State:         "Punjab",
		SoilType:      "Alluvial",
		Month:         10,
		Temperature:   28.5,
		Rainfall:      120.0,
		Humidity:      65.0,
		PrevYearPrice: 2000.0,
	}
}

func TestSeasonExhaustive(t *testing.T) {
	expected := map[int]string{
		1: "Winter", 2: "Winter", 3: "Spring", 4: "Spring",
		5: "Spring", 6: "Summer", 7: "Summer", 8: "Summer",
		9: "Autumn", 10: "Autumn", 11: "Autumn", 12: "Winter",
	}
	for month := 1; month <= 12; month++ {
		if got := Season(month); got != expected[month] {
			t.Fatalf("month %d: expected %s, got %s", month, expected[month], got)
		}
	}
}

func TestDeriveFeaturesRatios(t *testing.T) {
	in := sampleInput()
	fs := DeriveFeatures(in)

	want := in.Temperature / (in.Rainfall + 1)
	if fs.TempRainfallRatio != want {
		t.Fatalf("temp_rainfall_ratio: expected %v, got %v", want, fs.TempRainfallRatio)
	}
	if fs.HumidityTempInteraction != in.Humidity*in.Temperature {
		t.Fatalf("unexpected humidity_temp_interaction: %v", fs.HumidityTempInteraction)
	}
}

func TestWeatherStressBoundaries(t *testing.T) {
	cases := []struct {
		temp, rain float64
		want       float64
	}{
		{35.0, 50, 0},
		{35.1, 50, 1},
		{30, 10.0, 0},
		{30, 9.9, 1},
		{40, 5, 1},
	}
	for _, tc := range cases {
		in := sampleInput()
		in.Temperature = tc.temp
		in.Rainfall = tc.rain
		fs := DeriveFeatures(in)
		if fs.WeatherStress != tc.want {
			t.Fatalf("temp=%v rain=%v: expected stress %v, got %v", tc.temp, tc.rain, tc.want, fs.WeatherStress)
		}
	}
}

func TestDeriveFeaturesDeterministic(t *testing.T) {
	in := sampleInput()
	a := DeriveFeatures(in)
	b := DeriveFeatures(in)
	if a != b {
		t.Fatalf("same input produced different feature sets: %+v vs %+v", a, b)
	}
}

func TestDeriveFeaturesCalendarFallbacks(t *testing.T) {
	in := sampleInput()
	fs := DeriveFeatures(in)

	if fs.DayOfYear != float64(in.Month*30) {
		t.Fatalf("expected day_of_year fallback %d, got %v", in.Month*30, fs.DayOfYear)
	}
	if fs.Quarter != 4 {
		t.Fatalf("expected quarter 4, got %v", fs.Quarter)
	}
	if fs.IsWeekend != 0 {
		t.Fatalf("expected is_weekend default 0, got %v", fs.IsWeekend)
	}

	// A Saturday in October.
	date := time.Date(2023, 10, 14, 0, 0, 0, 0, time.UTC)
	in.Date = &date
	fs = DeriveFeatures(in)
	if fs.DayOfYear != float64(date.YearDay()) {
		t.Fatalf("expected day_of_year %d, got %v", date.YearDay(), fs.DayOfYear)
	}
	if fs.IsWeekend != 1 {
		t.Fatalf("expected weekend flag for %s", date.Weekday())
	}
}

func TestDeriveFeaturesGroupDefaults(t *testing.T) {
	fs := DeriveFeatures(sampleInput())
	if fs.PriceVolatility != 100 || fs.PriceTrend != 0 {
		t.Fatalf("unexpected aggregate defaults: volatility=%v trend=%v", fs.PriceVolatility, fs.PriceTrend)
	}
	if fs.CropDemandScore != 2000 || fs.StateCropSpecialization != 100 {
		t.Fatalf("unexpected aggregate defaults: demand=%v specialization=%v", fs.CropDemandScore, fs.StateCropSpecialization)
	}
}

func TestLookupDefaults(t *testing.T) {
	if got := CropCategory("Quinoa"); got != "Other" {
		t.Fatalf("expected Other for unknown crop, got %s", got)
	}
	if got := StateEconomicFactor("Goa"); got != 1.0 {
		t.Fatalf("expected 1.0 for unknown state, got %v", got)
	}
	if got := SoilProductivity("Peaty"); got != 1.0 {
		t.Fatalf("expected 1.0 for unknown soil, got %v", got)
	}
}

func TestDeriveTrainingFeaturesAggregates(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := []Observation{
		{Date: base, Year: 2023, Month: 1, State: "Punjab", Crop: "Rice", SoilType: "Alluvial", Temperature: 20, Rainfall: 30, Humidity: 60, PrevYearPrice: 1800, Price: 2000},
		{Date: base.AddDate(0, 0, 1), Year: 2023, Month: 1, State: "Punjab", Crop: "Rice", SoilType: "Alluvial", Temperature: 21, Rainfall: 20, Humidity: 55, PrevYearPrice: 1900, Price: 2200},
		{Date: base, Year: 2023, Month: 1, State: "Gujarat", Crop: "Cotton", SoilType: "Black", Temperature: 25, Rainfall: 15, Humidity: 50, PrevYearPrice: 5500, Price: 5800},
	}

	rows := DeriveTrainingFeatures(obs)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Sample std of {2000, 2200}.
	wantVol := math.Sqrt(20000)
	if math.Abs(rows[0].PriceVolatility-wantVol) > 1e-9 {
		t.Fatalf("expected volatility %v, got %v", wantVol, rows[0].PriceVolatility)
	}
	if rows[0].CropDemandScore != 2100 {
		t.Fatalf("expected demand score 2100, got %v", rows[0].CropDemandScore)
	}
	if rows[0].StateCropSpecialization != 2 {
		t.Fatalf("expected specialization 2, got %v", rows[0].StateCropSpecialization)
	}

	if rows[0].PriceTrend != 0 {
		t.Fatalf("first row of a group must have zero trend, got %v", rows[0].PriceTrend)
	}
	wantTrend := (2200.0 - 2000.0) / 2000.0
	if math.Abs(rows[1].PriceTrend-wantTrend) > 1e-9 {
		t.Fatalf("expected trend %v, got %v", wantTrend, rows[1].PriceTrend)
	}

	wantRatio := 2000.0 / (1800.0 + 1)
	if math.Abs(rows[0].PrevYearPriceRatio-wantRatio) > 1e-9 {
		t.Fatalf("expected ratio %v, got %v", wantRatio, rows[0].PrevYearPriceRatio)
	}

	// Singleton group falls back to zero volatility, not the default.
	if rows[2].PriceVolatility != 0 {
		t.Fatalf("expected zero volatility for singleton group, got %v", rows[2].PriceVolatility)
	}
}
