// Package market carries the domain catalog for Indian crop markets:
// the crops, states and soil types the service knows about, reference
// prices, and the rule engine behind market insights.
package market

// Base wholesale prices in INR per quintal, approximate mandi rates.
var basePrices = map[string]float64{
	"Rice": 1800, "Wheat": 2000, "Maize": 1700, "Cotton": 5800, "Sugarcane": 300,
	"Soybean": 3900, "Potato": 1200, "Onion": 2000, "Groundnut": 5500,
	"Turmeric": 7000, "Jowar": 2800, "Bajra": 2200, "Ragi": 3500, "Arhar": 6500,
}

const defaultBasePrice = 2000

var crops = []string{
	"Rice", "Wheat", "Maize", "Cotton", "Sugarcane", "Soybean",
	"Potato", "Onion", "Groundnut", "Turmeric", "Jowar", "Bajra",
	"Ragi", "Arhar",
}

var states = []string{
	"Punjab", "Maharashtra", "Karnataka", "Uttar Pradesh",
	"Madhya Pradesh", "Andhra Pradesh", "West Bengal", "Gujarat",
	"Rajasthan", "Haryana",
}

var soilTypes = []string{"Alluvial", "Black", "Red", "Laterite", "Arid", "Mountain"}

var cropCategories = []string{"Cereal", "Fiber", "Sugar", "Oilseed", "Vegetable", "Spice", "Pulse"}

// Crops returns the supported crops in catalog order.
func Crops() []string {
	out := make([]string, len(crops))
	copy(out, crops)
	return out
}

// States returns the supported states in catalog order.
func States() []string {
	out := make([]string, len(states))
	copy(out, states)
	return out
}

// SoilTypes returns the recognised soil classifications.
func SoilTypes() []string {
	out := make([]string, len(soilTypes))
	copy(out, soilTypes)
	return out
}

// CropCategories returns the category labels used by the feature tables.
func CropCategories() []string {
	out := make([]string, len(cropCategories))
	copy(out, cropCategories)
	return out
}

// BasePrice returns the reference price for a crop in INR per quintal,
// falling back to a generic rate for crops outside the catalog.
func BasePrice(crop string) float64 {
	if p, ok := basePrices[crop]; ok {
		return p
	}
	return defaultBasePrice
}

// KnownCrop reports whether the crop is part of the catalog.
func KnownCrop(crop string) bool {
	_, ok := basePrices[crop]
	return ok
}
