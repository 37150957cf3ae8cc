package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinfoilsh/confidential-planner/config"
	"github.com/tinfoilsh/confidential-planner/pipeline"
	"github.com/tinfoilsh/confidential-planner/planner"
)

func newPlanCmd() *cobra.Command {
	var req planner.Request

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate one travel plan and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cliPlanner()
			if err != nil {
				return err
			}
			plan, err := p.Plan(cmd.Context(), req, progressLogger())
			if err != nil {
				return err
			}
			return printJSON(plan)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.CityName, "city", "", "destination city")
	f.StringVar(&req.CityID, "city-id", "", "destination city id")
	f.IntVar(&req.Duration, "days", planner.DefaultDuration, "trip length in days")
	f.StringVar(&req.Budget, "budget", planner.DefaultBudget, "budget level: low, medium or high")
	f.StringVar(&req.CustomBudget, "custom-budget", "", "total budget amount")
	f.StringVar(&req.Currency, "currency", planner.DefaultCurrency, "budget currency")
	f.StringVar(&req.TravelStyle, "style", planner.DefaultTravelStyle, "travel style")
	f.StringSliceVar(&req.Interests, "interests", nil, "comma separated interests")
	f.StringSliceVar(&req.SelectedAttractions, "attractions", nil, "attractions that must be visited")
	f.StringVar(&req.DepartureLocation, "from", "", "departure location")
	cmd.MarkFlagRequired("city")
	return cmd
}

func newGuideCmd() *cobra.Command {
	var req planner.GuideRequest

	cmd := &cobra.Command{
		Use:   "guide",
		Short: "Generate a digital nomad guide for one city",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cliPlanner()
			if err != nil {
				return err
			}
			guide, err := p.Guide(cmd.Context(), req, progressLogger())
			if err != nil {
				return err
			}
			return printJSON(guide)
		},
	}

	cmd.Flags().StringVar(&req.CityName, "city", "", "city to describe")
	cmd.Flags().StringVar(&req.CityID, "city-id", "", "city id")
	cmd.MarkFlagRequired("city")
	return cmd
}

func cliPlanner() (*planner.Planner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	p, backend, err := newPlanner(cfg, nil)
	if err != nil {
		return nil, err
	}
	log.Infof("Using model %s via %s", cfg.Model, backend)
	return p, nil
}

func progressLogger() pipeline.Reporter {
	return pipeline.ReporterFunc(func(ctx context.Context, ev pipeline.Event) error {
		log.WithField("stage", ev.Payload.Stage).Infof("[%3d%%] %s", ev.Payload.Progress, ev.Payload.Message)
		return nil
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
