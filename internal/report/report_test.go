package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitwalk/internal/experiment"
	"fitwalk/internal/model"
)

func TestRecordRunWritesArtifactsAndIndex(t *testing.T) {
	baseDir := t.TempDir()
	runID := NewRunID()
	artifacts := RunArtifacts{
		Config: RunConfig{RunID: runID, Kind: KindSweep, StoreKind: "memory", Alphabet: model.AminoAcids, Length: 4},
		Sweep:  &experiment.SweepSummary{Total: 4, ReachedMax: 3, NotMax: 1, ReachedMaxRate: 0.75, UniquePeaks: 2},
		Peaks:  []model.Peak{{Sequence: "WWLA", Fitness: 8.7, Basin: 3}},
	}

	runDir, err := RecordRun(baseDir, artifacts)
	require.NoError(t, err)
	for _, file := range []string{"config.json", "sweep_summary.json", "peaks.json"} {
		_, err := os.Stat(filepath.Join(runDir, file))
		assert.NoError(t, err, file)
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config, cfg)

	summary, ok, err := ReadSweepSummary(baseDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *artifacts.Sweep, summary)

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runID, entries[0].RunID)
	assert.Equal(t, 0.75, entries[0].Headline)

	_, ok, err = ReadRunConfig(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepeatArtifactsIncludeSeries(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{RunID: "run-1", Kind: KindRecombine, Seed: 5, Times: 3},
		Repeat: &experiment.RepeatSummary{Times: 3, Seed: 5, Runs: []float64{1.5, 2, 0.25}, Mean: 1.25},
	}
	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)

	runs, err := ReadSeriesCSV(filepath.Join(runDir, "runs.csv"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, 0.25}, runs)

	summary, ok, err := ReadRepeatSummary(baseDir, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.25, summary.Mean)
	assert.Equal(t, 1.25, artifacts.Headline())
}

func TestReadRunLoadsEveryArtifact(t *testing.T) {
	baseDir := t.TempDir()
	sweep := RunArtifacts{
		Config: RunConfig{RunID: "sweep-1", Kind: KindSweep, StoreKind: "badger", Alphabet: "AR", Length: 2},
		Sweep:  &experiment.SweepSummary{Total: 4, ReachedMax: 4, ReachedMaxRate: 1, UniquePeaks: 1, MaxFitness: 4},
		Peaks:  []model.Peak{{Sequence: "RR", Fitness: 4, Basin: 4}},
	}
	repeat := RunArtifacts{
		Config: RunConfig{RunID: "repeat-1", Kind: KindSurrogate, Seed: 3, Times: 2},
		Repeat: &experiment.RepeatSummary{Times: 2, Seed: 3, Runs: []float64{3, 4}, Mean: 3.5, Min: 3, Max: 4},
	}
	curve := RunArtifacts{
		Config: RunConfig{RunID: "curve-1", Kind: KindCurve, SampleSizes: []int{1, 4}},
		Curve:  []experiment.CurvePoint{{SampleSize: 1, Mean: 2}, {SampleSize: 4, Mean: 4}},
	}
	for _, artifacts := range []RunArtifacts{sweep, repeat, curve} {
		_, err := RecordRun(baseDir, artifacts)
		require.NoError(t, err)
	}

	run, ok, err := ReadRun(baseDir, "sweep-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sweep.Config, run.Config)
	require.NotNil(t, run.Sweep)
	assert.Equal(t, *sweep.Sweep, *run.Sweep)
	assert.Equal(t, sweep.Peaks, run.Peaks)
	assert.Nil(t, run.Repeat)
	assert.Empty(t, run.Curve)

	run, ok, err = ReadRun(baseDir, "repeat-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, run.Repeat)
	assert.Equal(t, 3.5, run.Repeat.Mean)
	assert.Equal(t, []float64{3, 4}, run.Series)
	assert.Nil(t, run.Sweep)

	run, ok, err = ReadRun(baseDir, "curve-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, curve.Curve, run.Curve)

	_, ok, err = ReadRun(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRunPrintsRecordedSummaries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, StoredRun{
		RunArtifacts: RunArtifacts{
			Config: RunConfig{RunID: "repeat-1", Kind: KindRecombine, StoreKind: "sqlite", Seed: 9},
			Repeat: &experiment.RepeatSummary{Times: 2, Seed: 9, Runs: []float64{1.5, 2}},
		},
		Series: []float64{1.5, 2},
	}))
	out := buf.String()
	assert.Contains(t, out, "run_id=repeat-1 kind=recombine store=sqlite")
	assert.Contains(t, out, "runs=2")
	assert.Contains(t, out, "peak fitness")
	assert.Contains(t, out, "1.5")

	buf.Reset()
	require.NoError(t, WriteRun(&buf, StoredRun{RunArtifacts: RunArtifacts{
		Config: RunConfig{RunID: "curve-1", Kind: KindCurve},
		Curve:  []experiment.CurvePoint{{SampleSize: 1000, Mean: 2}},
	}}))
	assert.Contains(t, buf.String(), "1,000")
}

func TestRunIndexOrdering(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2024-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2024-02-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "c", CreatedAtUTC: "2024-02-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", Kind: KindCurve, CreatedAtUTC: "2024-01-01T00:00:00Z"}))

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{entries[0].RunID, entries[1].RunID, entries[2].RunID})
	assert.Equal(t, KindCurve, entries[2].Kind)

	assert.Error(t, AppendRunIndex(baseDir, RunIndexEntry{}))
	_, err = WriteRunArtifacts(baseDir, RunArtifacts{})
	assert.Error(t, err)
}

func TestRunsChartTracksRunningBest(t *testing.T) {
	chart := RunsChart("recombination", []float64{2, 1, 3, 2.5})
	require.Len(t, chart.Series, 2)
	best := chart.Series[1].Points
	assert.Equal(t, []Point{{1, 2}, {2, 2}, {3, 3}, {4, 3}}, best)
}

func TestWriteLineChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "curve.png")
	chart := CurveChart("mean fitness vs sample size", []experiment.CurvePoint{
		{SampleSize: 10, Mean: 1.2},
		{SampleSize: 20, Mean: 2.4},
		{SampleSize: 40, Mean: 3.1},
	})
	require.NoError(t, WriteLineChart(path, chart))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, WriteLineChart(path, Chart{}))
}

func TestTextSummaries(t *testing.T) {
	var buf bytes.Buffer
	stats := experiment.SweepSummary{Total: 1200, ReachedMax: 600, NotMax: 600, ReachedMaxRate: 0.5, UniquePeaks: 7, MaxFitness: 8.76}
	peaks := []model.Peak{
		{Sequence: "WWLA", Fitness: 8.76, Basin: 600},
		{Sequence: "FWAA", Fitness: 5.1, Basin: 300},
	}
	require.NoError(t, WriteSweepSummary(&buf, stats, peaks, 1))
	out := buf.String()
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "WWLA")
	assert.False(t, strings.Contains(out, "FWAA"))

	buf.Reset()
	require.NoError(t, WriteCurve(&buf, []experiment.CurvePoint{{SampleSize: 1000, Mean: 2}}))
	assert.Contains(t, buf.String(), "1,000")

	buf.Reset()
	require.NoError(t, WriteRepeatSummary(&buf, "surrogate", experiment.RepeatSummary{Times: 3, Seed: 9}))
	assert.Contains(t, buf.String(), "runs=3")
}
