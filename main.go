package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planner",
		Short:         "Multi-stage travel plan generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(os.Getenv("LOG_FORMAT"))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newServeCmd(), newPlanCmd(), newGuideCmd())
	return root
}

func setupLogging(format string) {
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
