package planner

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/tinfoilsh/confidential-planner/jsonfix"
	"github.com/tinfoilsh/confidential-planner/pipeline"
)

// Stage names
const (
	StageBasics     = "basics"
	StageHighlights = "highlights"
	StageBudget     = "budget"
	StageGuide      = "guide"
)

// DayStage names the itinerary stage for day n
func DayStage(n int) string {
	return fmt.Sprintf("day-%d", n)
}

var (
	basicsRange     = pipeline.ProgressRange{Start: 15, End: 25}
	daysRange       = pipeline.ProgressRange{Start: 30, End: 60}
	highlightsRange = pipeline.ProgressRange{Start: 65, End: 75}
	budgetRange     = pipeline.ProgressRange{Start: 80, End: 85}
	guideRange      = pipeline.ProgressRange{Start: 30, End: 80}
)

type basics struct {
	Transportation Transportation
	Accommodation  Accommodation
}

type highlights struct {
	Attractions []Attraction
	Restaurants []Restaurant
}

type budgetAndTips struct {
	Food          float64
	Miscellaneous float64
	Currency      string
	Tips          []string
}

// TravelPlanStages declares the travel-plan pipeline for req: basics, one
// stage per day, highlights, then budget. Only basics aborts the run.
func TravelPlanStages(req Request) []pipeline.Stage {
	req = req.WithDefaults()

	stages := []pipeline.Stage{{
		Name:        StageBasics,
		Kind:        StageBasics,
		MaxTokens:   1500,
		Progress:    basicsRange,
		Policy:      pipeline.Abort,
		Message:     "Planning transportation and accommodation...",
		DoneMessage: "Transportation and accommodation ready",
		Prompt:      func(pipeline.Accumulator) string { return basicsPrompt(req) },
		Parse:       parseBasics,
	}}

	for i, r := range daysRange.Split(req.Duration) {
		day := i + 1
		stages = append(stages, pipeline.Stage{
			Name:        DayStage(day),
			Kind:        "day",
			MaxTokens:   1000,
			Progress:    r,
			Policy:      pipeline.SubstituteDefault,
			Message:     fmt.Sprintf("Planning day %d/%d...", day, req.Duration),
			DoneMessage: fmt.Sprintf("Day %d/%d planned", day, req.Duration),
			Prompt: func(acc pipeline.Accumulator) string {
				return dayPrompt(req, day, acc.Seen())
			},
			Parse: func(doc gjson.Result, acc pipeline.Accumulator) (any, pipeline.Accumulator) {
				return parseDay(doc, day, acc)
			},
			Default: func() any {
				return DailyItinerary{Day: day, Activities: []Activity{}}
			},
		})
	}

	stages = append(stages,
		pipeline.Stage{
			Name:        StageHighlights,
			Kind:        StageHighlights,
			MaxTokens:   3000,
			Progress:    highlightsRange,
			Policy:      pipeline.SubstituteDefault,
			Message:     "Recommending attractions and restaurants...",
			DoneMessage: "Attractions and restaurants ready",
			Prompt:      func(pipeline.Accumulator) string { return highlightsPrompt(req) },
			Parse:       parseHighlights,
			Default: func() any {
				return highlights{Attractions: []Attraction{}, Restaurants: []Restaurant{}}
			},
		},
		pipeline.Stage{
			Name:        StageBudget,
			Kind:        StageBudget,
			MaxTokens:   1200,
			Progress:    budgetRange,
			Policy:      pipeline.SubstituteDefault,
			Message:     "Calculating budget and preparing tips...",
			DoneMessage: "Budget and tips ready",
			Prompt: func(acc pipeline.Accumulator) string {
				return budgetPrompt(req, knownCosts(req, acc))
			},
			Parse: parseBudget,
			Default: func() any {
				return budgetAndTips{Tips: []string{}}
			},
		},
	)
	return stages
}

// GuideStages declares the single-stage travel-guide pipeline
func GuideStages(req GuideRequest) []pipeline.Stage {
	return []pipeline.Stage{{
		Name:        StageGuide,
		Kind:        StageGuide,
		MaxTokens:   2000,
		Progress:    guideRange,
		Policy:      pipeline.Abort,
		Message:     "Generating travel guide...",
		DoneMessage: "Travel guide ready",
		Prompt:      func(pipeline.Accumulator) string { return guidePrompt(req) },
		Parse:       parseGuide,
	}}
}

func parseBasics(doc gjson.Result, acc pipeline.Accumulator) (any, pipeline.Accumulator) {
	t := doc.Get("transportation")
	a := doc.Get("accommodation")
	return basics{
		Transportation: Transportation{
			ArrivalMethod:         jsonfix.String(t, "arrivalMethod"),
			ArrivalDetails:        jsonfix.String(t, "arrivalDetails"),
			EstimatedCost:         jsonfix.Float(t, "estimatedCost"),
			LocalTransport:        jsonfix.Joined(t, "localTransport", ", "),
			LocalTransportDetails: jsonfix.String(t, "localTransportDetails"),
			DailyTransportCost:    jsonfix.Float(t, "dailyTransportCost"),
		},
		Accommodation: Accommodation{
			Type:           jsonfix.String(a, "type"),
			Recommendation: jsonfix.String(a, "recommendation"),
			Area:           jsonfix.String(a, "area"),
			PricePerNight:  jsonfix.Float(a, "pricePerNight"),
			Amenities:      jsonfix.Strings(a, "amenities"),
			BookingTips:    jsonfix.String(a, "bookingTips"),
		},
	}, acc
}

// parseDay numbers the itinerary by its position in the run, whatever day
// the model reports, and adds its locations to the seen set
func parseDay(doc gjson.Result, day int, acc pipeline.Accumulator) (any, pipeline.Accumulator) {
	it := DailyItinerary{
		Day:        day,
		Theme:      jsonfix.String(doc, "theme"),
		Activities: []Activity{},
		Notes:      jsonfix.String(doc, "notes"),
	}
	for _, item := range jsonfix.Array(doc, "activities") {
		if !item.IsObject() {
			continue
		}
		act := Activity{
			Time:          jsonfix.String(item, "time"),
			Name:          jsonfix.String(item, "name"),
			Description:   jsonfix.String(item, "description"),
			Location:      jsonfix.String(item, "location"),
			EstimatedCost: jsonfix.Float(item, "estimatedCost"),
			Duration:      jsonfix.Int(item, "duration"),
		}
		it.Activities = append(it.Activities, act)
		acc = acc.WithSeen(act.Location)
	}
	return it, acc
}

func parseHighlights(doc gjson.Result, acc pipeline.Accumulator) (any, pipeline.Accumulator) {
	h := highlights{Attractions: []Attraction{}, Restaurants: []Restaurant{}}
	for _, item := range jsonfix.Array(doc, "attractions") {
		if !item.IsObject() {
			continue
		}
		h.Attractions = append(h.Attractions, Attraction{
			Name:        jsonfix.String(item, "name"),
			Description: jsonfix.String(item, "description"),
			Category:    jsonfix.String(item, "category"),
			Rating:      jsonfix.Float(item, "rating"),
			Location:    jsonfix.String(item, "location"),
			EntryFee:    jsonfix.Float(item, "entryFee"),
			BestTime:    jsonfix.String(item, "bestTime"),
			Image:       jsonfix.String(item, "image"),
		})
	}
	for _, item := range jsonfix.Array(doc, "restaurants") {
		if !item.IsObject() {
			continue
		}
		h.Restaurants = append(h.Restaurants, Restaurant{
			Name:        jsonfix.String(item, "name"),
			Cuisine:     jsonfix.String(item, "cuisine"),
			Description: jsonfix.String(item, "description"),
			Rating:      jsonfix.Float(item, "rating"),
			PriceRange:  jsonfix.String(item, "priceRange"),
			Location:    jsonfix.String(item, "location"),
			Specialty:   jsonfix.String(item, "specialty"),
			Image:       jsonfix.String(item, "image"),
		})
	}
	return h, acc
}

func parseBudget(doc gjson.Result, acc pipeline.Accumulator) (any, pipeline.Accumulator) {
	b := doc.Get("budgetBreakdown")
	return budgetAndTips{
		Food:          jsonfix.Float(b, "food"),
		Miscellaneous: jsonfix.Float(b, "miscellaneous"),
		Currency:      jsonfix.String(b, "currency"),
		Tips:          jsonfix.Strings(doc, "tips"),
	}, acc
}

func parseGuide(doc gjson.Result, acc pipeline.Accumulator) (any, pipeline.Accumulator) {
	v := doc.Get("visaInfo")
	g := TravelGuide{
		Overview: jsonfix.String(doc, "overview"),
		VisaInfo: VisaInfo{
			Type:         jsonfix.String(v, "type"),
			Duration:     jsonfix.Int(v, "duration"),
			Requirements: jsonfix.String(v, "requirements"),
			Cost:         jsonfix.Float(v, "cost"),
			Process:      jsonfix.String(v, "process"),
		},
		BestAreas:                []BestArea{},
		WorkspaceRecommendations: jsonfix.Strings(doc, "workspaceRecommendations"),
		Tips:                     jsonfix.Strings(doc, "tips"),
		EssentialInfo:            jsonfix.Map(doc, "essentialInfo"),
	}
	for _, item := range jsonfix.Array(doc, "bestAreas") {
		if !item.IsObject() {
			continue
		}
		g.BestAreas = append(g.BestAreas, BestArea{
			Name:                     jsonfix.String(item, "name"),
			Description:              jsonfix.String(item, "description"),
			EntertainmentScore:       jsonfix.Float(item, "entertainmentScore"),
			EntertainmentDescription: jsonfix.String(item, "entertainmentDescription"),
			TourismScore:             jsonfix.Float(item, "tourismScore"),
			TourismDescription:       jsonfix.String(item, "tourismDescription"),
			EconomyScore:             jsonfix.Float(item, "economyScore"),
			EconomyDescription:       jsonfix.String(item, "economyDescription"),
			CultureScore:             jsonfix.Float(item, "cultureScore"),
			CultureDescription:       jsonfix.String(item, "cultureDescription"),
		})
	}
	return g, acc
}
