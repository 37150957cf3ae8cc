package planner

import (
	"fmt"
	"strings"
	"time"
)

// SystemPrompt is sent with every planner request
const SystemPrompt = "You are a professional travel planning assistant. Respond with one valid JSON object and no other text."

func basicsPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan transportation and accommodation for a trip to %s.\n\n", req.CityName)
	b.WriteString("Trip details:\n")
	fmt.Fprintf(&b, "- Destination: %s\n", req.CityName)
	fmt.Fprintf(&b, "- Duration: %d days\n", req.Duration)
	fmt.Fprintf(&b, "- Budget: %s\n", budgetLine(req))
	if req.DepartureLocation != "" {
		fmt.Fprintf(&b, "- Departing from: %s\n", req.DepartureLocation)
	}
	if req.DepartureDate != nil {
		fmt.Fprintf(&b, "- Departure date: %s\n", req.DepartureDate.Format(time.DateOnly))
	}
	fmt.Fprintf(&b, "- Currency: %s\n", req.Currency)
	b.WriteString(`
Return JSON with two sections:

{
  "transportation": {
    "arrivalMethod": "flight, train or bus",
    "arrivalDetails": "details",
    "estimatedCost": number,
    "localTransport": "local options separated by commas, e.g. metro, bus, taxi",
    "localTransportDetails": "details",
    "dailyTransportCost": number
  },
  "accommodation": {
    "type": "hotel",
    "recommendation": "why this option",
    "area": "recommended area",
    "pricePerNight": number,
    "amenities": ["amenity 1", "amenity 2"],
    "bookingTips": "booking advice"
  }
}

All numeric fields must be JSON numbers, not strings. localTransport must be a single string.`)
	return b.String()
}

func dayPrompt(req Request, day int, seen []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan day %d of a %d-day trip to %s.\n\n", day, req.Duration, req.CityName)
	fmt.Fprintf(&b, "Travel style: %s\n", StyleDescription(req.TravelStyle))
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(req.Interests, ", "))
	}
	if day == 1 {
		b.WriteString("Day 1: the traveler has just arrived, keep activities light.\n")
	}
	if day == req.Duration {
		b.WriteString("Final day: plan activities before departure and leave time to travel out.\n")
	}
	if pending := unvisited(req.SelectedAttractions, seen); len(pending) > 0 {
		fmt.Fprintf(&b, "The traveler wants to visit: %s\n", strings.Join(pending, ", "))
	}
	if len(seen) > 0 {
		fmt.Fprintf(&b, "\nIMPORTANT: these places were already visited on days 1-%d, choose different ones:\n- %s\n",
			day-1, strings.Join(seen, "\n- "))
	}
	fmt.Fprintf(&b, `
Return JSON (3-4 activities, short descriptions):

{
  "day": %d,
  "theme": "theme of the day",
  "activities": [
    {
      "time": "09:00",
      "name": "activity name",
      "description": "short description (under 20 words)",
      "location": "place",
      "estimatedCost": number,
      "duration": minutes as a number
    }
  ],
  "notes": "short tips"
}

Requirements:
1. 3-4 different activities
2. No location repeated from earlier days
3. All numbers as JSON numbers`, day)
	return b.String()
}

func highlightsPrompt(req Request) string {
	return fmt.Sprintf(`Recommend 5-8 attractions and 3-5 restaurants in %s for a traveler interested in %s.

Return JSON (short descriptions):

{
  "attractions": [
    {
      "name": "name",
      "description": "under 30 words",
      "category": "category",
      "rating": number,
      "location": "location",
      "entryFee": number,
      "bestTime": "best time to visit",
      "image": ""
    }
  ],
  "restaurants": [
    {
      "name": "name",
      "cuisine": "cuisine",
      "description": "under 20 words",
      "rating": number,
      "priceRange": "$$ or $$$",
      "location": "location",
      "specialty": "signature dish",
      "image": ""
    }
  ]
}`, req.CityName, StyleDescription(req.TravelStyle))
}

func budgetPrompt(req Request, known costs) string {
	return fmt.Sprintf(`Provide a budget breakdown and practical tips for a %d-day trip to %s (%s).

Known costs:
- Transportation: %.2f
- Accommodation: %.2f
- Activities: %.2f

Return JSON:

{
  "budgetBreakdown": {
    "transportation": %.2f,
    "accommodation": %.2f,
    "food": estimated food cost as a number,
    "activities": %.2f,
    "miscellaneous": other costs as a number,
    "total": number,
    "currency": "%s"
  },
  "tips": ["tip 1", "tip 2", "tip 3"]
}`, req.Duration, req.CityName, budgetLine(req),
		known.transportation, known.accommodation, known.activities,
		known.transportation, known.accommodation, known.activities,
		req.Currency)
}

func guidePrompt(req GuideRequest) string {
	return fmt.Sprintf(`Write a detailed guide to %s for digital nomads.

Return JSON:

{
  "overview": "overall assessment for remote workers: work environment, cost of living, community (200-300 words)",
  "visaInfo": {
    "type": "visa type, e.g. tourist, digital nomad, visa on arrival",
    "duration": validity in days as a number,
    "requirements": "documents and conditions",
    "cost": fee in USD as a number,
    "process": "application steps"
  },
  "bestAreas": [
    {
      "name": "area name",
      "description": "100-150 words",
      "entertainmentScore": 1-5,
      "entertainmentDescription": "bars, restaurants, nightlife",
      "tourismScore": 1-5,
      "tourismDescription": "nearby sights and landmarks",
      "economyScore": 1-5 where 1 is cheapest,
      "economyDescription": "housing, food and daily costs",
      "cultureScore": 1-5,
      "cultureDescription": "local culture, arts and history"
    }
  ],
  "workspaceRecommendations": ["coworking space with address, price range and features", "cafe suitable for work"],
  "tips": ["five concrete tips about living, working and socializing"],
  "essentialInfo": {
    "SIM card": "advice",
    "Banking": "advice",
    "Transport": "advice",
    "Healthcare": "advice",
    "Internet": "quality and providers",
    "Language": "local language and English use",
    "Safety": "advice",
    "Community": "nomad groups and events"
  }
}

Requirements:
1. bestAreas must contain exactly 3 areas, each scored on all four dimensions
2. All scores are numbers from 1 to 5, never strings
3. Be specific: places, prices and websites`, req.CityName)
}

func budgetLine(req Request) string {
	if req.CustomBudget != "" {
		return fmt.Sprintf("%s (custom: %s %s)", BudgetDescription(req.Budget), req.CustomBudget, req.Currency)
	}
	return BudgetDescription(req.Budget)
}

func unvisited(wanted, seen []string) []string {
	var out []string
	for _, w := range wanted {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		visited := false
		for _, s := range seen {
			if strings.EqualFold(s, w) {
				visited = true
				break
			}
		}
		if !visited {
			out = append(out, w)
		}
	}
	return out
}
