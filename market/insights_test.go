package market

import (
	"strings"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(16, 1)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}
	return e
}

func TestCatalogLookups(t *testing.T) {
	if got := BasePrice("Turmeric"); got != 7000 {
		t.Fatalf("expected 7000 for Turmeric, got %v", got)
	}
	if got := BasePrice("Dragonfruit"); got != 2000 {
		t.Fatalf("expected default 2000 for unknown crop, got %v", got)
	}
	if !KnownCrop("Rice") || KnownCrop("Dragonfruit") {
		t.Fatal("KnownCrop misclassified")
	}
	if len(Crops()) != 14 || len(States()) != 10 || len(SoilTypes()) != 6 {
		t.Fatalf("catalog sizes changed: %d crops, %d states, %d soils",
			len(Crops()), len(States()), len(SoilTypes()))
	}
}

func TestInsightsCropRules(t *testing.T) {
	e := newTestEngine(t)

	rice := e.Lookup("Rice", "Punjab", InsightPriceTrend)
	if rice.PriceTrend != "Stable with seasonal variations" {
		t.Fatalf("unexpected rice trend: %s", rice.PriceTrend)
	}
	if rice.DemandForecast != "Consistent high demand" {
		t.Fatalf("unexpected rice demand: %s", rice.DemandForecast)
	}

	cotton := e.Lookup("cotton", "", InsightPriceTrend)
	if cotton.MarketVolatility != "High" {
		t.Fatalf("unexpected cotton volatility: %s", cotton.MarketVolatility)
	}

	onion := e.Lookup("Onion", "Maharashtra", InsightPriceTrend)
	if onion.MarketVolatility != "Very high" {
		t.Fatalf("unexpected onion volatility: %s", onion.MarketVolatility)
	}
	found := false
	for _, action := range onion.RecommendedActions {
		if strings.Contains(action, "cold storage") {
			found = true
		}
	}
	if !found {
		t.Fatalf("onion advice missing cold storage: %v", onion.RecommendedActions)
	}

	other := e.Lookup("Maize", "", InsightPriceTrend)
	if other.PriceTrend != "Stable to increasing" {
		t.Fatalf("baseline trend not applied: %s", other.PriceTrend)
	}
	if other.DemandScore != nil || other.WeatherScore != nil {
		t.Fatal("price_trend lookups must not carry extra scores")
	}
}

func TestInsightTypeEnrichment(t *testing.T) {
	e := newTestEngine(t)

	demand := e.Lookup("Rice", "", InsightDemandForecast)
	if demand.DemandScore == nil || demand.SupplyScore == nil {
		t.Fatal("demand_forecast must carry demand and supply scores")
	}
	if *demand.DemandScore < 0.6 || *demand.DemandScore > 1.0 {
		t.Fatalf("demand score out of range: %v", *demand.DemandScore)
	}
	if *demand.SupplyScore < 0.5 || *demand.SupplyScore > 0.9 {
		t.Fatalf("supply score out of range: %v", *demand.SupplyScore)
	}

	weather := e.Lookup("Rice", "", InsightWeatherImpact)
	if weather.WeatherScore == nil || len(weather.RiskFactors) != 2 {
		t.Fatal("weather_impact must carry a score and risk factors")
	}
}

func TestInsightsCached(t *testing.T) {
	e := newTestEngine(t)
	a := e.Lookup("Rice", "Punjab", InsightDemandForecast)
	b := e.Lookup("Rice", "Punjab", InsightDemandForecast)
	if *a.DemandScore != *b.DemandScore {
		t.Fatal("repeated lookups must come from the cache")
	}
}

func TestRecommendationsRuleTable(t *testing.T) {
	high := Recommendations(RecommendationInput{PredictedPrice: 3500, Temperature: 30, Rainfall: 100, Month: 4})
	if len(high) != 1 || !strings.Contains(high[0], "selling soon") {
		t.Fatalf("unexpected advice for high price: %v", high)
	}

	low := Recommendations(RecommendationInput{PredictedPrice: 1200, Temperature: 30, Rainfall: 100, Month: 4})
	if len(low) != 1 || !strings.Contains(low[0], "holding") {
		t.Fatalf("unexpected advice for low price: %v", low)
	}

	stressed := Recommendations(RecommendationInput{PredictedPrice: 2000, Temperature: 38, Rainfall: 20, Month: 7})
	joined := strings.Join(stressed, " | ")
	for _, want := range []string{"High temperature", "Low rainfall", "Monsoon season"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %v", want, stressed)
		}
	}

	winter := Recommendations(RecommendationInput{PredictedPrice: 2000, Temperature: 25, Rainfall: 80, Month: 12})
	if len(winter) != 1 || !strings.Contains(winter[0], "Winter season") {
		t.Fatalf("unexpected winter advice: %v", winter)
	}

	clamped := Recommendations(RecommendationInput{PredictedPrice: 0, Temperature: 30, Rainfall: 100, Month: 4})
	if len(clamped) != 1 || !strings.Contains(clamped[0], "holding") {
		t.Fatalf("zero price must get the low-price advice: %v", clamped)
	}
}

func TestFormatINR(t *testing.T) {
	got := FormatINR(2500)
	if !strings.Contains(got, "2,500") {
		t.Fatalf("expected grouped rupee amount, got %q", got)
	}
}
