package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fitwalk/internal/report"
	"fitwalk/pkg/fitwalk"
)

func newIngestCmd() *cobra.Command {
	bindings := map[string]string{
		"ingest.screened":   "screened",
		"ingest.fitted":     "fitted",
		"ingest.sheet":      "sheet",
		"ingest.precedence": "precedence",
		"ingest.batch-size": "batch-size",
	}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load screened and fitted variant tables into the store",
		Long: `Load variant tables (.xlsx or .csv) into the landscape store.

Screened tables carry "Variants" and "Fitness" columns, fitted tables carry
"Variants" and "Imputed fitness". When both tables list a sequence, the
precedence policy decides which value is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, bindings)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			summary, err := s.client.Ingest(cmd.Context(), fitwalk.IngestRequest{
				Screened:   s.cfg.Ingest.Screened,
				Fitted:     s.cfg.Ingest.Fitted,
				Sheet:      s.cfg.Ingest.Sheet,
				Precedence: s.cfg.Ingest.Precedence,
				BatchSize:  s.cfg.Ingest.BatchSize,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested screened=%s fitted=%s stored=%s store=%s\n",
				humanize.Comma(int64(summary.Screened)),
				humanize.Comma(int64(summary.Fitted)),
				humanize.Comma(int64(summary.Stored)),
				s.cfg.Store.Kind,
			)
			return nil
		},
	}
	cmd.Flags().String("screened", "", "screened variants table")
	cmd.Flags().String("fitted", "", "fitted variants table")
	cmd.Flags().String("sheet", "", "worksheet name, defaults to the first sheet")
	cmd.Flags().String("precedence", "", "fitted-wins|screened-wins")
	cmd.Flags().Int("batch-size", 0, "variants per store write")
	return cmd
}

func newWalkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "walk START...",
		Short: "Run an adaptive walk from each starting sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			out := cmd.OutOrStdout()
			for _, start := range args {
				result, err := s.client.Walk(cmd.Context(), start)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "start=%s fitness=%g\n", result.Start, result.StartFitness)
				for _, round := range result.Rounds {
					fmt.Fprintf(out, "  round=%d position=%d sequence=%s fitness=%g\n",
						round.Round, round.Position, round.Sequence, round.Fitness)
				}
				fmt.Fprintf(out, "final=%s fitness=%g reached_max=%t\n", result.Final, result.FinalFitness, result.ReachedMax)
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	bindings := map[string]string{
		"walk.workers":        "workers",
		"walk.progress-every": "progress-every",
		"walk.keep-rounds":    "keep-rounds",
	}
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Walk from every variant in the landscape",
		Long: `Walk from every variant in the landscape and classify each walk by whether it
reached the global maximum. The ledger is saved to the store as it stands when
the sweep ends; an interrupted sweep can be continued with --resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, bindings)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			resume, _ := cmd.Flags().GetString("resume")
			peakLimit, _ := cmd.Flags().GetInt("peaks")
			summary, err := s.client.Sweep(ctx, fitwalk.SweepRequest{
				Workers:       s.cfg.Walk.Workers,
				ProgressEvery: s.cfg.Walk.ProgressEvery,
				KeepRounds:    s.cfg.Walk.KeepRounds,
				ResumeRunID:   resume,
			})
			out := cmd.OutOrStdout()
			if err != nil {
				if summary.RunID != "" {
					fmt.Fprintf(out, "sweep interrupted run_id=%s recorded=%s\n", summary.RunID, humanize.Comma(int64(summary.Stats.Total)))
				}
				return err
			}
			fmt.Fprintf(out, "sweep run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
			return report.WriteSweepSummary(out, summary.Stats, summary.Peaks, peakLimit)
		},
	}
	cmd.Flags().Int("workers", 0, "concurrent walks")
	cmd.Flags().Int("progress-every", 0, "log progress every N walks")
	cmd.Flags().Bool("keep-rounds", true, "keep per-round traces in the ledger")
	cmd.Flags().String("resume", "", "continue the stored sweep with this run id")
	cmd.Flags().Int("peaks", 10, "peaks to print, 0 prints all")
	return cmd
}

func newPeaksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peaks",
		Short: "List the local peaks of a stored sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			limit, _ := cmd.Flags().GetInt("limit")
			if runID == "" {
				latest = true
			}
			peaks, err := s.client.Peaks(cmd.Context(), fitwalk.PeaksRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}
			return report.WritePeaks(cmd.OutOrStdout(), peaks, 0)
		},
	}
	cmd.Flags().String("run-id", "", "sweep run id")
	cmd.Flags().Bool("latest", false, "use the newest sweep")
	cmd.Flags().Int("limit", 0, "peaks to print, 0 prints all")
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs and stored sweeps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := s.client.Runs(cmd.Context(), fitwalk.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := report.WriteRunIndex(out, entries); err != nil {
				return err
			}

			sweeps, err := s.client.Sweeps(cmd.Context())
			if err != nil {
				return err
			}
			for _, sweep := range sweeps {
				fmt.Fprintf(out, "sweep run_id=%s created=%s walks=%s complete=%t\n",
					sweep.RunID, sweep.CreatedAtUTC, humanize.Comma(int64(len(sweep.Results))), sweep.Complete)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "runs to list")
	cmd.AddCommand(newRunsShowCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print the recorded settings and summaries of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			run, err := s.client.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.WriteRun(cmd.OutOrStdout(), run)
		},
	}
}

func newRecombineCmd() *cobra.Command {
	bindings := map[string]string{
		"recombine.sample-size":     "sample-size",
		"recombine.top-k":           "top-k",
		"experiment.times":          "times",
		"experiment.seed":           "seed",
		"experiment.progress-every": "progress-every",
		"report.chart":              "chart",
	}
	cmd := &cobra.Command{
		Use:   "recombine",
		Short: "Repeat sample-and-recombine searches",
		Long: `Sample variants without replacement, recombine the top-k fittest position by
position and report the fittest observed member of the library. The search is
repeated --times times with per-iteration seeds derived from --seed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, bindings)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			summary, err := s.client.Recombine(cmd.Context(), fitwalk.RecombineRequest{
				SampleSize:    s.cfg.Recombine.SampleSize,
				TopK:          s.cfg.Recombine.TopK,
				Times:         s.cfg.Experiment.Times,
				Seed:          s.cfg.Experiment.Seed,
				ProgressEvery: s.cfg.Experiment.ProgressEvery,
				Chart:         s.cfg.Report.Chart,
			})
			if err != nil {
				return err
			}
			return printRepeat(cmd, "recombine", summary)
		},
	}
	cmd.Flags().Int("sample-size", 0, "variants sampled per search")
	cmd.Flags().Int("top-k", 0, "fittest samples recombined")
	addRepeatFlags(cmd)
	return cmd
}

func newSurrogateCmd() *cobra.Command {
	bindings := map[string]string{
		"surrogate.training":        "training",
		"surrogate.testing":         "testing",
		"surrogate.randomize-codes": "randomize-codes",
		"experiment.times":          "times",
		"experiment.seed":           "seed",
		"experiment.progress-every": "progress-every",
		"report.chart":              "chart",
	}
	cmd := &cobra.Command{
		Use:   "surrogate",
		Short: "Repeat linear surrogate model searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, bindings)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			summary, err := s.client.Surrogate(cmd.Context(), fitwalk.SurrogateRequest{
				TrainingSize:   s.cfg.Surrogate.TrainingSize,
				TestingSize:    s.cfg.Surrogate.TestingSize,
				RandomizeCodes: s.cfg.Surrogate.RandomizeCodes,
				Times:          s.cfg.Experiment.Times,
				Seed:           s.cfg.Experiment.Seed,
				ProgressEvery:  s.cfg.Experiment.ProgressEvery,
				Chart:          s.cfg.Report.Chart,
			})
			if err != nil {
				return err
			}
			if err := printRepeat(cmd, "surrogate", summary); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mean pearson=%.4f\n", summary.MeanPearson)
			return nil
		},
	}
	cmd.Flags().Int("training", 0, "variants measured to train the model")
	cmd.Flags().Int("testing", 0, "top predicted variants measured")
	cmd.Flags().Bool("randomize-codes", false, "draw a random symbol coding per search")
	addRepeatFlags(cmd)
	return cmd
}

func newCurveCmd() *cobra.Command {
	bindings := map[string]string{
		"recombine.top-k":   "top-k",
		"surrogate.testing": "testing",
		"experiment.times":  "times",
		"experiment.seed":   "seed",
		"report.chart":      "chart",
	}
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Mean peak fitness against sample size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openSession(cmd, bindings)
			if err != nil {
				return err
			}
			defer closeInto(s, &err)

			strategy, _ := cmd.Flags().GetString("strategy")
			sizes, _ := cmd.Flags().GetIntSlice("sizes")
			summary, err := s.client.Curve(cmd.Context(), fitwalk.CurveRequest{
				Strategy:    strings.ToLower(strategy),
				Sizes:       sizes,
				Times:       s.cfg.Experiment.Times,
				Seed:        s.cfg.Experiment.Seed,
				TopK:        s.cfg.Recombine.TopK,
				TestingSize: s.cfg.Surrogate.TestingSize,
				Chart:       s.cfg.Report.Chart,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "curve run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
			if summary.ChartPath != "" {
				fmt.Fprintf(out, "chart=%s\n", summary.ChartPath)
			}
			return report.WriteCurve(out, summary.Points)
		},
	}
	cmd.Flags().String("strategy", fitwalk.StrategyRecombine, "recombine|surrogate")
	cmd.Flags().IntSlice("sizes", []int{10, 20, 50, 100}, "sample sizes")
	cmd.Flags().Int("top-k", 0, "fittest samples recombined")
	cmd.Flags().Int("testing", 0, "top predicted variants measured")
	cmd.Flags().Int("times", 0, "repetitions per sample size")
	cmd.Flags().Int64("seed", 0, "base seed")
	cmd.Flags().Bool("chart", true, "write a PNG chart")
	return cmd
}

func addRepeatFlags(cmd *cobra.Command) {
	cmd.Flags().Int("times", 0, "repetitions")
	cmd.Flags().Int64("seed", 0, "base seed")
	cmd.Flags().Int("progress-every", 0, "log progress every N repetitions")
	cmd.Flags().Bool("chart", true, "write a PNG chart")
}

func printRepeat(cmd *cobra.Command, label string, summary fitwalk.RepeatRunSummary) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s run_id=%s artifacts=%s\n", label, summary.RunID, summary.ArtifactsDir)
	if summary.ChartPath != "" {
		fmt.Fprintf(out, "chart=%s\n", summary.ChartPath)
	}
	return report.WriteRepeatSummary(out, label, summary.Summary)
}
