// Package pricing computes the suggested sale price of a customization from
// its engineering effort and quoted supply cost.
package pricing

import "math"

// Rates are the pricing inputs taken from the workflow configuration.
type Rates struct {
	EngineeringRate    float64
	ContingencyPercent float64
}

// Quote is the breakdown shown to the PM at the final stage.
type Quote struct {
	EngineeringHours float64 `json:"engineering_hours"`
	SupplyCost       float64 `json:"supply_cost"`
	EngineeringCost  float64 `json:"engineering_cost"`
	TechnicalCost    float64 `json:"technical_cost"`
	CostWithMargin   float64 `json:"cost_with_margin"`
	SuggestedPrice   float64 `json:"suggested_price"`
}

// Calculate returns the quote for the given inputs. It is a pure function:
// the same inputs and rates always produce the same quote.
func Calculate(engineeringHours, supplyCost float64, rates Rates) Quote {
	engineeringCost := engineeringHours * rates.EngineeringRate
	technicalCost := engineeringCost + supplyCost
	costWithMargin := roundCents(technicalCost * (1 + rates.ContingencyPercent/100))

	return Quote{
		EngineeringHours: engineeringHours,
		SupplyCost:       supplyCost,
		EngineeringCost:  engineeringCost,
		TechnicalCost:    technicalCost,
		CostWithMargin:   costWithMargin,
		SuggestedPrice:   math.Ceil(costWithMargin/1000) * 1000,
	}
}

// roundCents drops float noise such as 11000.000000000002 so that exact
// thousands are not rounded up to the next thousand.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
