// Package planner defines the travel-plan and travel-guide pipelines: stage
// prompts, stage parsers, and assembly of the final documents.
package planner

// Request defaults
const (
	DefaultDuration    = 7
	DefaultBudget      = "medium"
	DefaultTravelStyle = "culture"
	DefaultCurrency    = "USD"
)

// Request describes the trip to plan. It is not modified once a run starts.
type Request struct {
	CityID              string   `json:"cityId"`
	CityName            string   `json:"cityName"`
	CityImage           string   `json:"cityImage,omitempty"`
	Duration            int      `json:"duration"`
	Budget              string   `json:"budget"`
	TravelStyle         string   `json:"travelStyle"`
	Interests           []string `json:"interests"`
	DepartureLocation   string   `json:"departureLocation,omitempty"`
	DepartureDate       *Date    `json:"departureDate,omitempty"`
	CustomBudget        string   `json:"customBudget,omitempty"`
	Currency            string   `json:"currency,omitempty"`
	SelectedAttractions []string `json:"selectedAttractions,omitempty"`
}

// WithDefaults fills empty fields with their defaults
func (r Request) WithDefaults() Request {
	if r.Duration <= 0 {
		r.Duration = DefaultDuration
	}
	if r.Budget == "" {
		r.Budget = DefaultBudget
	}
	if r.TravelStyle == "" {
		r.TravelStyle = DefaultTravelStyle
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if r.Interests == nil {
		r.Interests = []string{}
	}
	return r
}

// GuideRequest names the city a travel guide is generated for
type GuideRequest struct {
	CityID   string `json:"cityId"`
	CityName string `json:"cityName"`
}

// BudgetDescription renders a budget level for prompts
func BudgetDescription(level string) string {
	switch level {
	case "low":
		return "budget ($50-100 per day)"
	case "high":
		return "luxury ($200+ per day)"
	default:
		return "mid-range ($100-200 per day)"
	}
}

// StyleDescription renders a travel style for prompts
func StyleDescription(style string) string {
	switch style {
	case "adventure":
		return "adventure and exploration"
	case "relaxation":
		return "rest and relaxation"
	case "nightlife":
		return "nightlife and entertainment"
	default:
		return "cultural exploration"
	}
}
