package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"fitwalk/internal/experiment"
	"fitwalk/internal/model"
)

func WriteSweepSummary(w io.Writer, stats experiment.SweepSummary, peaks []model.Peak, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "walks\t%s\n", humanize.Comma(int64(stats.Total)))
	fmt.Fprintf(tw, "reached max\t%s (%.2f%%)\n", humanize.Comma(int64(stats.ReachedMax)), 100*stats.ReachedMaxRate)
	fmt.Fprintf(tw, "did not reach max\t%s\n", humanize.Comma(int64(stats.NotMax)))
	fmt.Fprintf(tw, "max fitness\t%g\n", stats.MaxFitness)
	fmt.Fprintf(tw, "unique peaks\t%s\n", humanize.Comma(int64(stats.UniquePeaks)))
	fmt.Fprintf(tw, "mean start\t%.4f\n", stats.MeanStart)
	fmt.Fprintf(tw, "mean final\t%.4f\n", stats.MeanFinal)
	fmt.Fprintf(tw, "mean improvement\t%.4f\n", stats.MeanImprovement)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(peaks) == 0 {
		return nil
	}
	return WritePeaks(w, peaks, limit)
}

// WritePeaks prints up to limit peaks; limit <= 0 prints all.
func WritePeaks(w io.Writer, peaks []model.Peak, limit int) error {
	if limit <= 0 || limit > len(peaks) {
		limit = len(peaks)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "peak\tfitness\tbasin")
	for _, peak := range peaks[:limit] {
		fmt.Fprintf(tw, "%s\t%g\t%s\n", peak.Sequence, peak.Fitness, humanize.Comma(int64(peak.Basin)))
	}
	return tw.Flush()
}

func WriteRepeatSummary(w io.Writer, label string, summary experiment.RepeatSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\truns=%d\tseed=%d\n", label, summary.Times, summary.Seed)
	fmt.Fprintf(tw, "mean\t%.4f\tstd=%.4f\n", summary.Mean, summary.Std)
	fmt.Fprintf(tw, "min\t%.4f\tmax=%.4f\n", summary.Min, summary.Max)
	return tw.Flush()
}

func WriteCurve(w io.Writer, points []experiment.CurvePoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "sample size\tmean peak\tstd")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", humanize.Comma(int64(p.SampleSize)), p.Mean, p.Std)
	}
	return tw.Flush()
}

func WriteRunIndex(w io.Writer, entries []RunIndexEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "run id\tkind\tstore\tseed\theadline\tcreated")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%s\n", e.RunID, e.Kind, e.StoreKind, e.Seed, e.Headline, e.CreatedAtUTC)
	}
	return tw.Flush()
}

// WriteRun prints a stored run: its settings, then whichever summaries it
// recorded.
func WriteRun(w io.Writer, run StoredRun) error {
	cfg := run.Config
	fmt.Fprintf(w, "run run_id=%s kind=%s store=%s alphabet=%s length=%d seed=%d\n",
		cfg.RunID, cfg.Kind, cfg.StoreKind, cfg.Alphabet, cfg.Length, cfg.Seed)
	if run.Sweep != nil {
		if err := WriteSweepSummary(w, *run.Sweep, run.Peaks, 0); err != nil {
			return err
		}
	}
	if run.Repeat != nil {
		if err := WriteRepeatSummary(w, cfg.Kind, *run.Repeat); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "iteration\tpeak fitness")
		for i, v := range run.Series {
			fmt.Fprintf(tw, "%d\t%g\n", i+1, v)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(run.Curve) > 0 {
		return WriteCurve(w, run.Curve)
	}
	return nil
}
