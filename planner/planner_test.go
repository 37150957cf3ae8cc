package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinfoilsh/confidential-planner/pipeline"
)

// MockGenerator answers by matching prompt prefixes
type MockGenerator struct {
	mu        sync.Mutex
	Responses map[string]func(prompt string) (string, error)
	Prompts   []string
	MaxTokens []int64
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.MaxTokens = append(m.MaxTokens, maxTokens)
	m.mu.Unlock()

	for prefix, respond := range m.Responses {
		if strings.HasPrefix(prompt, prefix) {
			return respond(prompt)
		}
	}
	return "", fmt.Errorf("no scripted response for prompt %q", prompt[:min(len(prompt), 40)])
}

func fixed(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

func failing(err error) func(string) (string, error) {
	return func(string) (string, error) { return "", err }
}

const (
	basicsPrefix     = "Plan transportation and accommodation"
	dayPrefix        = "Plan day "
	highlightsPrefix = "Recommend "
	budgetPrefix     = "Provide a budget breakdown"
	guidePrefix      = "Write a detailed guide"
)

const basicsJSON = "```json\n" + `{
  "transportation": {
    "arrivalMethod": "flight",
    "arrivalDetails": "Land at LIS",
    "estimatedCost": 300,
    "localTransport": ["metro", "tram", ""],
    "localTransportDetails": "Get a Viva Viagem card",
    "dailyTransportCost": 10
  },
  "accommodation": {
    "type": "hotel",
    "recommendation": "Boutique hotel",
    "area": "Chiado",
    "pricePerNight": 120,
    "amenities": ["wifi", "breakfast"],
    "bookingTips": "Book early"
  }
}` + "\n```"

func dayJSON(prompt string) (string, error) {
	var day int
	fmt.Sscanf(prompt, "Plan day %d", &day)
	return fmt.Sprintf(`Here you go: {"day": %d, "theme": "Theme %d", "activities": [
		{"time": "09:00", "name": "Visit", "description": "d", "location": "Place %d", "estimatedCost": 20, "duration": 90},
		{"time": "14:00", "name": "Lunch", "description": "d", "location": "Cafe %d", "estimatedCost": "15", "duration": 60}
	], "notes": "n"}`, day, day, day, day), nil
}

const highlightsJSON = `{"attractions": [{"name": "Belem Tower", "rating": 4.7, "entryFee": 6}], "restaurants": [{"name": "Time Out Market", "priceRange": "$$"}, "bogus"]}`

const budgetJSON = `{"budgetBreakdown": {"transportation": 1, "accommodation": 1, "food": 150, "activities": 1, "miscellaneous": 50, "total": 9999, "currency": "EUR"}, "tips": ["Walk", " ", "Carry cash"]}`

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestPlanner(gen pipeline.Generator) *Planner {
	p := New(pipeline.NewRunner(gen, pipeline.WithSleep(noSleep)))
	p.newID = func() string { return "plan-1" }
	return p
}

func happyGenerator() *MockGenerator {
	return &MockGenerator{Responses: map[string]func(string) (string, error){
		basicsPrefix:     fixed(basicsJSON),
		dayPrefix:        dayJSON,
		highlightsPrefix: fixed(highlightsJSON),
		budgetPrefix:     fixed(budgetJSON),
	}}
}

// mustContain fails when s lacks any of subs
func mustContain(t *testing.T, s string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			t.Errorf("expected %q in:\n%s", sub, s)
		}
	}
}

func TestPlanAssemblesAllStages(t *testing.T) {
	gen := happyGenerator()
	p := newTestPlanner(gen)

	plan, err := p.Plan(context.Background(), Request{CityID: "lis", CityName: "Lisbon", Duration: 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.ID != "plan-1" {
		t.Errorf("expected plan-1, got %s", plan.ID)
	}
	if plan.Budget != "medium" || plan.TravelStyle != "culture" {
		t.Errorf("expected request defaults, got budget %q style %q", plan.Budget, plan.TravelStyle)
	}
	if plan.Transportation.LocalTransport != "metro, tram" {
		t.Errorf("unexpected local transport %q", plan.Transportation.LocalTransport)
	}
	if !reflect.DeepEqual(plan.Accommodation.Amenities, []string{"wifi", "breakfast"}) {
		t.Errorf("unexpected amenities %v", plan.Accommodation.Amenities)
	}

	if len(plan.DailyItineraries) != 3 {
		t.Fatalf("expected 3 days, got %d", len(plan.DailyItineraries))
	}
	for i, it := range plan.DailyItineraries {
		if it.Day != i+1 {
			t.Errorf("itinerary %d: expected day %d, got %d", i, i+1, it.Day)
		}
		if len(it.Activities) != 2 {
			t.Fatalf("day %d: expected 2 activities, got %d", it.Day, len(it.Activities))
		}
		if it.Activities[1].EstimatedCost != 0 {
			t.Errorf("day %d: string costs should read as zero, got %v", it.Day, it.Activities[1].EstimatedCost)
		}
	}

	if len(plan.Attractions) != 1 {
		t.Errorf("expected 1 attraction, got %d", len(plan.Attractions))
	}
	if len(plan.Restaurants) != 1 {
		t.Errorf("non-object entries should be skipped, got %d restaurants", len(plan.Restaurants))
	}
	if !reflect.DeepEqual(plan.Tips, []string{"Walk", "Carry cash"}) {
		t.Errorf("unexpected tips %v", plan.Tips)
	}

	if want := []int64{1500, 1000, 1000, 1000, 3000, 1200}; !reflect.DeepEqual(gen.MaxTokens, want) {
		t.Errorf("expected token limits %v, got %v", want, gen.MaxTokens)
	}
}

func TestPlanRecomputesBudget(t *testing.T) {
	p := newTestPlanner(happyGenerator())

	plan, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bb := plan.BudgetBreakdown
	want := BudgetBreakdown{
		Transportation: 300 + 10*3,
		Accommodation:  120 * 3,
		Food:           150,
		Activities:     20 * 3,
		Miscellaneous:  50,
		Currency:       "EUR",
	}
	want.Total = want.Transportation + want.Accommodation + want.Food + want.Activities + want.Miscellaneous
	if bb != want {
		t.Errorf("expected %+v, got %+v", want, bb)
	}
}

func TestBudgetPromptCarriesKnownCosts(t *testing.T) {
	gen := happyGenerator()
	p := newTestPlanner(gen)

	if _, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 2}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var budget string
	for _, prompt := range gen.Prompts {
		if strings.HasPrefix(prompt, budgetPrefix) {
			budget = prompt
		}
	}
	mustContain(t, budget,
		"- Transportation: 320.00",
		"- Accommodation: 240.00",
		"- Activities: 40.00",
	)
}

func TestDayPromptsExcludeSeenLocations(t *testing.T) {
	gen := happyGenerator()
	p := newTestPlanner(gen)

	_, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 3, SelectedAttractions: []string{"Place 1", "Alfama"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var days []string
	for _, prompt := range gen.Prompts {
		if strings.HasPrefix(prompt, dayPrefix) {
			days = append(days, prompt)
		}
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 day prompts, got %d", len(days))
	}

	mustContain(t, days[0], "Day 1: the traveler has just arrived", "The traveler wants to visit: Place 1, Alfama")
	if strings.Contains(days[0], "already visited") {
		t.Error("first day should not list visited places")
	}
	mustContain(t, days[1], "- Place 1\n- Cafe 1", "The traveler wants to visit: Alfama")
	mustContain(t, days[2], "Final day", "- Place 2\n- Cafe 2")
}

func TestPlanBasicsFailureAborts(t *testing.T) {
	gen := happyGenerator()
	gen.Responses[basicsPrefix] = fixed("I cannot help with that.")
	p := newTestPlanner(gen)

	_, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 2}, nil)

	var pipelineErr *pipeline.PipelineError
	if !errors.As(err, &pipelineErr) {
		t.Fatalf("expected PipelineError, got %T: %v", err, err)
	}
	if pipelineErr.Stage != StageBasics {
		t.Errorf("expected stage %s, got %s", StageBasics, pipelineErr.Stage)
	}
	if len(gen.Prompts) != 1 {
		t.Errorf("no stage may run after basics fails, got %d prompts", len(gen.Prompts))
	}
}

func TestPlanDayFailureSubstitutesEmptyDay(t *testing.T) {
	gen := happyGenerator()
	gen.Responses[dayPrefix] = func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Plan day 2") {
			return `{"day": 2, "activities": [{"name": "cut off`, nil
		}
		return dayJSON(prompt)
	}
	p := newTestPlanner(gen)

	plan, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.DailyItineraries) != 3 {
		t.Fatalf("expected 3 days, got %d", len(plan.DailyItineraries))
	}
	day2 := plan.DailyItineraries[1]
	if day2.Day != 2 {
		t.Errorf("expected substituted day numbered 2, got %d", day2.Day)
	}
	if day2.Activities == nil || len(day2.Activities) != 0 {
		t.Errorf("expected empty non-nil activities, got %#v", day2.Activities)
	}
	if n := len(plan.DailyItineraries[2].Activities); n != 2 {
		t.Errorf("expected day 3 to keep its activities, got %d", n)
	}
	if plan.BudgetBreakdown.Activities != 40 {
		t.Errorf("expected activities budget 40, got %v", plan.BudgetBreakdown.Activities)
	}
}

func TestPlanLateStageFailuresUseDefaults(t *testing.T) {
	gen := happyGenerator()
	gen.Responses[highlightsPrefix] = failing(errors.New("backend down"))
	gen.Responses[budgetPrefix] = fixed("[]")
	p := newTestPlanner(gen)

	plan, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 1, Currency: "JPY"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Attractions == nil || len(plan.Attractions) != 0 {
		t.Errorf("expected empty non-nil attractions, got %#v", plan.Attractions)
	}
	if len(plan.Tips) != 0 {
		t.Errorf("expected no tips, got %v", plan.Tips)
	}

	bb := plan.BudgetBreakdown
	if bb.Food != 0 {
		t.Errorf("expected zero food, got %v", bb.Food)
	}
	if bb.Currency != "JPY" {
		t.Errorf("expected request currency JPY, got %s", bb.Currency)
	}
	if bb.Total != bb.Transportation+bb.Accommodation+bb.Activities {
		t.Errorf("total %v does not match computed parts", bb.Total)
	}
}

func TestPlanProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var progress []int
	reporter := pipeline.ReporterFunc(func(ctx context.Context, ev pipeline.Event) error {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, ev.Payload.Progress)
		return nil
	})

	p := newTestPlanner(happyGenerator())
	if _, err := p.Plan(context.Background(), Request{CityName: "Lisbon", Duration: 3}, reporter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{15, 25, 30, 40, 40, 50, 50, 60, 65, 75, 80, 85}
	if !reflect.DeepEqual(progress, want) {
		t.Errorf("expected progress %v, got %v", want, progress)
	}
}

func TestGuide(t *testing.T) {
	gen := &MockGenerator{Responses: map[string]func(string) (string, error){
		guidePrefix: fixed(`{"overview": "Great for nomads", "visaInfo": {"type": "D8", "duration": 365, "cost": 90},
			"bestAreas": [{"name": "Alfama", "entertainmentScore": 4, "economyScore": "cheap"}],
			"workspaceRecommendations": ["Second Home"], "tips": ["Learn some Portuguese"],
			"essentialInfo": {"Internet": "Fast fiber", "Banking": 3}}`),
	}}
	p := newTestPlanner(gen)

	guide, err := p.Guide(context.Background(), GuideRequest{CityID: "lis", CityName: "Lisbon"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if guide.CityID != "lis" || guide.CityName != "Lisbon" {
		t.Errorf("expected request city echoed, got %s/%s", guide.CityID, guide.CityName)
	}
	if guide.VisaInfo.Duration != 365 {
		t.Errorf("expected visa duration 365, got %d", guide.VisaInfo.Duration)
	}
	if len(guide.BestAreas) != 1 {
		t.Fatalf("expected 1 area, got %d", len(guide.BestAreas))
	}
	if guide.BestAreas[0].EntertainmentScore != 4 || guide.BestAreas[0].EconomyScore != 0 {
		t.Errorf("unexpected scores %+v", guide.BestAreas[0])
	}
	if !reflect.DeepEqual(guide.EssentialInfo, map[string]string{"Internet": "Fast fiber"}) {
		t.Errorf("unexpected essential info %v", guide.EssentialInfo)
	}
	if !reflect.DeepEqual(gen.MaxTokens, []int64{2000}) {
		t.Errorf("expected one 2000-token call, got %v", gen.MaxTokens)
	}
}

func TestGuideFailureAborts(t *testing.T) {
	gen := &MockGenerator{Responses: map[string]func(string) (string, error){
		guidePrefix: fixed(`{"overview": "unterminated`),
	}}
	p := newTestPlanner(gen)

	_, err := p.Guide(context.Background(), GuideRequest{CityName: "Lisbon"}, nil)

	var malformed *pipeline.MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedOutputError, got %T: %v", err, err)
	}
}

func TestRequestDefaults(t *testing.T) {
	req := Request{CityName: "Oslo"}.WithDefaults()

	if req.Duration != 7 || req.Budget != "medium" || req.TravelStyle != "culture" || req.Currency != "USD" {
		t.Errorf("unexpected defaults %+v", req)
	}
	if req.Interests == nil {
		t.Error("expected non-nil interests")
	}

	if n := len(TravelPlanStages(Request{CityName: "Oslo"})); n != 1+7+2 {
		t.Errorf("expected %d stages, got %d", 1+7+2, n)
	}
}

func TestRecomputeBudgetIgnoresReportedTotal(t *testing.T) {
	plan := &TravelPlan{
		Duration:       2,
		Transportation: Transportation{EstimatedCost: 100, DailyTransportCost: 5},
		Accommodation:  Accommodation{PricePerNight: 50},
		DailyItineraries: []DailyItinerary{
			{Activities: []Activity{{EstimatedCost: 10}, {EstimatedCost: 5}}},
			{Activities: []Activity{{EstimatedCost: 25}}},
		},
	}

	bb := RecomputeBudget(plan, 80, 20, "USD")
	want := BudgetBreakdown{
		Transportation: 110,
		Accommodation:  100,
		Food:           80,
		Activities:     40,
		Miscellaneous:  20,
		Total:          350,
		Currency:       "USD",
	}
	if bb != want {
		t.Errorf("expected %+v, got %+v", want, bb)
	}
}

func TestDateAcceptsBothLayouts(t *testing.T) {
	var req Request
	if err := json.Unmarshal([]byte(`{"cityName": "Rome", "departureDate": "2025-05-01"}`), &req); err != nil {
		t.Fatalf("date-only layout: %v", err)
	}
	if req.DepartureDate == nil || req.DepartureDate.Year() != 2025 {
		t.Fatalf("unexpected departure date %v", req.DepartureDate)
	}

	if err := json.Unmarshal([]byte(`{"departureDate": "2025-05-01T10:00:00Z"}`), &req); err != nil {
		t.Fatalf("RFC 3339 layout: %v", err)
	}
	if req.DepartureDate.Hour() != 10 {
		t.Errorf("expected hour 10, got %d", req.DepartureDate.Hour())
	}

	if err := json.Unmarshal([]byte(`{"departureDate": "next week"}`), &req); err == nil {
		t.Error("expected error for free-form date")
	}

	out, err := json.Marshal(Date{Time: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2025-05-01"` {
		t.Errorf("expected date-only output, got %s", out)
	}
}

func TestBasicsPromptIncludesDeparture(t *testing.T) {
	req := Request{
		CityName:          "Rome",
		DepartureLocation: "Berlin",
		DepartureDate:     &Date{Time: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		CustomBudget:      "1500",
	}.WithDefaults()

	mustContain(t, basicsPrompt(req),
		"Departing from: Berlin",
		"Departure date: 2025-05-01",
		"custom: 1500 USD",
	)
}
