package planner

import "time"

// TravelPlan is the assembled multi-day plan
type TravelPlan struct {
	ID               string           `json:"id"`
	CityID           string           `json:"cityId"`
	CityName         string           `json:"cityName"`
	CityImage        string           `json:"cityImage"`
	CreatedAt        time.Time        `json:"createdAt"`
	Duration         int              `json:"duration"`
	Budget           string           `json:"budget"`
	TravelStyle      string           `json:"travelStyle"`
	Interests        []string         `json:"interests"`
	Transportation   Transportation   `json:"transportation"`
	Accommodation    Accommodation    `json:"accommodation"`
	DailyItineraries []DailyItinerary `json:"dailyItineraries"`
	Attractions      []Attraction     `json:"attractions"`
	Restaurants      []Restaurant     `json:"restaurants"`
	Tips             []string         `json:"tips"`
	BudgetBreakdown  BudgetBreakdown  `json:"budgetBreakdown"`
}

type Transportation struct {
	ArrivalMethod         string  `json:"arrivalMethod"`
	ArrivalDetails        string  `json:"arrivalDetails"`
	EstimatedCost         float64 `json:"estimatedCost"`
	LocalTransport        string  `json:"localTransport"`
	LocalTransportDetails string  `json:"localTransportDetails"`
	DailyTransportCost    float64 `json:"dailyTransportCost"`
}

type Accommodation struct {
	Type           string   `json:"type"`
	Recommendation string   `json:"recommendation"`
	Area           string   `json:"area"`
	PricePerNight  float64  `json:"pricePerNight"`
	Amenities      []string `json:"amenities"`
	BookingTips    string   `json:"bookingTips"`
}

type DailyItinerary struct {
	Day        int        `json:"day"`
	Theme      string     `json:"theme"`
	Activities []Activity `json:"activities"`
	Notes      string     `json:"notes"`
}

// Activity is one itinerary entry; Duration is in minutes
type Activity struct {
	Time          string  `json:"time"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Location      string  `json:"location"`
	EstimatedCost float64 `json:"estimatedCost"`
	Duration      int     `json:"duration"`
}

type Attraction struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"`
	Location    string  `json:"location"`
	EntryFee    float64 `json:"entryFee"`
	BestTime    string  `json:"bestTime"`
	Image       string  `json:"image"`
}

type Restaurant struct {
	Name        string  `json:"name"`
	Cuisine     string  `json:"cuisine"`
	Description string  `json:"description"`
	Rating      float64 `json:"rating"`
	PriceRange  string  `json:"priceRange"`
	Location    string  `json:"location"`
	Specialty   string  `json:"specialty"`
	Image       string  `json:"image"`
}

// BudgetBreakdown line items always add up to Total
type BudgetBreakdown struct {
	Transportation float64 `json:"transportation"`
	Accommodation  float64 `json:"accommodation"`
	Food           float64 `json:"food"`
	Activities     float64 `json:"activities"`
	Miscellaneous  float64 `json:"miscellaneous"`
	Total          float64 `json:"total"`
	Currency       string  `json:"currency"`
}

// TravelGuide is a city guide for long-stay remote workers
type TravelGuide struct {
	CityID                   string            `json:"cityId"`
	CityName                 string            `json:"cityName"`
	Overview                 string            `json:"overview"`
	VisaInfo                 VisaInfo          `json:"visaInfo"`
	BestAreas                []BestArea        `json:"bestAreas"`
	WorkspaceRecommendations []string          `json:"workspaceRecommendations"`
	Tips                     []string          `json:"tips"`
	EssentialInfo            map[string]string `json:"essentialInfo"`
}

// VisaInfo Duration is in days, Cost in USD
type VisaInfo struct {
	Type         string  `json:"type"`
	Duration     int     `json:"duration"`
	Requirements string  `json:"requirements"`
	Cost         float64 `json:"cost"`
	Process      string  `json:"process"`
}

// BestArea scores run from 1 to 5; for economy, 1 is cheapest
type BestArea struct {
	Name                     string  `json:"name"`
	Description              string  `json:"description"`
	EntertainmentScore       float64 `json:"entertainmentScore"`
	EntertainmentDescription string  `json:"entertainmentDescription"`
	TourismScore             float64 `json:"tourismScore"`
	TourismDescription       string  `json:"tourismDescription"`
	EconomyScore             float64 `json:"economyScore"`
	EconomyDescription       string  `json:"economyDescription"`
	CultureScore             float64 `json:"cultureScore"`
	CultureDescription       string  `json:"cultureDescription"`
}
