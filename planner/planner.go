package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tinfoilsh/confidential-planner/pipeline"
)

// Planner runs the planner pipelines and assembles their documents
type Planner struct {
	runner *pipeline.Runner
	now    func() time.Time
	newID  func() string
}

func New(runner *pipeline.Runner) *Planner {
	return &Planner{
		runner: runner,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Plan generates a travel plan. It fails only when the basics stage fails
// or ctx is cancelled; other stages fall back to empty defaults.
func (p *Planner) Plan(ctx context.Context, req Request, reporter pipeline.Reporter) (*TravelPlan, error) {
	req = req.WithDefaults()

	logger := log.WithFields(log.Fields{
		"city":     req.CityName,
		"duration": req.Duration,
	})
	logger.Info("Generating travel plan")
	started := p.now()

	run, err := p.runner.Run(ctx, TravelPlanStages(req), reporter)
	if err != nil {
		return nil, err
	}

	plan := p.assemble(req, run)
	logger.WithField("plan", plan.ID).Infof("Travel plan generated in %v (%d/%d stages succeeded)",
		p.now().Sub(started).Round(time.Millisecond), succeeded(run), len(run.Results))
	return plan, nil
}

// Guide generates a travel guide for one city
func (p *Planner) Guide(ctx context.Context, req GuideRequest, reporter pipeline.Reporter) (*TravelGuide, error) {
	log.WithField("city", req.CityName).Info("Generating travel guide")

	run, err := p.runner.Run(ctx, GuideStages(req), reporter)
	if err != nil {
		return nil, err
	}

	guide, ok := run.Value(StageGuide).(TravelGuide)
	if !ok {
		return nil, fmt.Errorf("guide stage produced %T", run.Value(StageGuide))
	}
	guide.CityID = req.CityID
	guide.CityName = req.CityName
	return &guide, nil
}

func (p *Planner) assemble(req Request, run *pipeline.Run) *TravelPlan {
	b, _ := run.Value(StageBasics).(basics)
	h, _ := run.Value(StageHighlights).(highlights)
	bt, _ := run.Value(StageBudget).(budgetAndTips)

	days := make([]DailyItinerary, 0, req.Duration)
	for n := 1; n <= req.Duration; n++ {
		it, ok := run.Value(DayStage(n)).(DailyItinerary)
		if !ok {
			it = DailyItinerary{Day: n, Activities: []Activity{}}
		}
		days = append(days, it)
	}

	plan := &TravelPlan{
		ID:               p.newID(),
		CityID:           req.CityID,
		CityName:         req.CityName,
		CityImage:        req.CityImage,
		CreatedAt:        p.now().UTC(),
		Duration:         req.Duration,
		Budget:           req.Budget,
		TravelStyle:      req.TravelStyle,
		Interests:        req.Interests,
		Transportation:   b.Transportation,
		Accommodation:    b.Accommodation,
		DailyItineraries: days,
		Attractions:      nonNil(h.Attractions),
		Restaurants:      nonNil(h.Restaurants),
		Tips:             nonNil(bt.Tips),
	}
	if plan.Accommodation.Amenities == nil {
		plan.Accommodation.Amenities = []string{}
	}

	currency := bt.Currency
	if currency == "" {
		currency = req.Currency
	}
	plan.BudgetBreakdown = RecomputeBudget(plan, bt.Food, bt.Miscellaneous, currency)
	return plan
}

// costs are the line items derivable from other stages
type costs struct {
	transportation float64
	accommodation  float64
	activities     float64
}

func knownCosts(req Request, acc pipeline.Accumulator) costs {
	var c costs
	if v, ok := acc.Value(StageBasics); ok {
		if b, ok := v.(basics); ok {
			c.transportation = b.Transportation.EstimatedCost + b.Transportation.DailyTransportCost*float64(req.Duration)
			c.accommodation = b.Accommodation.PricePerNight * float64(req.Duration)
		}
	}
	for n := 1; n <= req.Duration; n++ {
		v, ok := acc.Value(DayStage(n))
		if !ok {
			continue
		}
		if it, ok := v.(DailyItinerary); ok {
			c.activities += activityCost(it)
		}
	}
	return c
}

// RecomputeBudget derives transportation, accommodation and activities from
// the plan and sets Total to the sum of all five line items. Model-reported
// totals are never used.
func RecomputeBudget(plan *TravelPlan, food, misc float64, currency string) BudgetBreakdown {
	days := float64(plan.Duration)
	bb := BudgetBreakdown{
		Transportation: plan.Transportation.EstimatedCost + plan.Transportation.DailyTransportCost*days,
		Accommodation:  plan.Accommodation.PricePerNight * days,
		Food:           food,
		Miscellaneous:  misc,
		Currency:       currency,
	}
	for _, it := range plan.DailyItineraries {
		bb.Activities += activityCost(it)
	}
	bb.Total = bb.Transportation + bb.Accommodation + bb.Food + bb.Activities + bb.Miscellaneous
	return bb
}

func activityCost(it DailyItinerary) float64 {
	var sum float64
	for _, a := range it.Activities {
		sum += a.EstimatedCost
	}
	return sum
}

func succeeded(run *pipeline.Run) int {
	n := 0
	for _, r := range run.Results {
		if r.Succeeded {
			n++
		}
	}
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
