package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/service"
	"github.com/arcazj/openbexi-earth-orbit/internal/timeline"
	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

// runOptions are the inputs shared by classify and timeline.
type runOptions struct {
	tleFile string
	decayed string
	now     string
	decay   decay.Options
}

func (r *runOptions) bind(cmd *cobra.Command) {
	d := decay.DefaultOptions()
	f := cmd.Flags()
	f.StringVar(&r.tleFile, "tle", "", "TLE file to classify (required)")
	f.StringVar(&r.decayed, "decayed", registry.DefaultFeed, "Confirmed-decay feed, file or URL (empty disables)")
	f.StringVar(&r.now, "now", "", "Clock override, RFC 3339 (default current time)")
	f.Float64Var(&r.decay.ReentryAltitudeKm, "reentry-altitude-km", d.ReentryAltitudeKm, "Re-entry altitude threshold in km")
	f.Float64Var(&r.decay.CoarseAltitudeKm, "coarse-altitude-km", d.CoarseAltitudeKm, "Skip forward search above this altitude in km")
	f.Float64Var(&r.decay.BacktrackDays, "backtrack-days", d.BacktrackDays, "Backward search range in days")
	f.Float64Var(&r.decay.PredictionHorizonDays, "horizon-days", d.PredictionHorizonDays, "Forward search range in days")
	f.Float64Var(&r.decay.StepMinutes, "step-minutes", d.StepMinutes, "Forward search cadence in minutes")
	f.Float64Var(&r.decay.BacktrackStepMinutes, "backtrack-step-minutes", d.BacktrackStepMinutes, "Backward search cadence in minutes")
	f.IntVar(&r.decay.Workers, "workers", 1, "Satellites classified in parallel")
	cmd.MarkFlagRequired("tle")
}

// run loads the inputs and classifies every element set.
func (r *runOptions) run(cmd *cobra.Command, root *rootOptions) (*service.Snapshot, error) {
	logger := root.logger(cmd)

	now := time.Now().UTC()
	if r.now != "" {
		t, err := time.Parse(time.RFC3339, r.now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now: %w", err)
		}
		now = t
	}

	ds, err := tle.LoadFile(r.tleFile, logger)
	if err != nil {
		return nil, err
	}
	store := tle.NewStore()
	store.Set(ds)

	var reg *registry.Cache
	if r.decayed != "" {
		reg = registry.NewCache(registry.NewSource(r.decayed), logger)
	}

	svc := service.New(service.Config{Options: r.decay}, store, reg, logger)
	return svc.Classify(cmd.Context(), now)
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var (
		run    runOptions
		status string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify every element set in a TLE file",
		Long: `Classify every element set in a TLE file and print one JSON object per
satellite with its decay_status, decay_reason, decay_date and
predicted_decay_window.

Examples:
  decayctl classify --tle active.txt
  decayctl classify --tle active.txt --now 2024-04-10T12:00:00Z --status PREDICTED`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := run.run(cmd, root)
			if err != nil {
				return err
			}

			results := snap.Results
			if status != "" {
				results = snap.WithStatus(decay.Status(strings.ToUpper(status)))
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
	run.bind(cmd)
	cmd.Flags().StringVar(&status, "status", "", "Only print CONFIRMED, PREDICTED or UNKNOWN results")
	return cmd
}

func newTimelineCmd(root *rootOptions) *cobra.Command {
	var (
		run  runOptions
		kind string
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print confirmed and predicted re-entries in time order",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := timeline.ParseKind(kind)
			if !ok {
				return fmt.Errorf("invalid --kind %q: want ALL, CONFIRMED or PREDICTED", kind)
			}

			snap, err := run.run(cmd, root)
			if err != nil {
				return err
			}

			events := timeline.Filter(snap.Timeline(), k)
			out := struct {
				Summary timeline.Summary `json:"summary"`
				Bounds  *timeline.Range  `json:"bounds"`
				Events  []timeline.Event `json:"events"`
			}{Summary: timeline.Summarize(events), Events: events}
			if b, ok := timeline.Bounds(events); ok {
				out.Bounds = &b
			}
			if out.Events == nil {
				out.Events = []timeline.Event{}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	run.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", "ALL", "Event kind (ALL, CONFIRMED, PREDICTED)")
	return cmd
}
