package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitwalk/internal/experiment"
	"fitwalk/internal/model"
)

const runIndexFile = "run_index.json"

const (
	KindSweep     = "sweep"
	KindRecombine = "recombine"
	KindSurrogate = "surrogate"
	KindCurve     = "curve"
)

type RunConfig struct {
	RunID          string `json:"run_id"`
	Kind           string `json:"kind"`
	StoreKind      string `json:"store_kind"`
	StorePath      string `json:"store_path,omitempty"`
	Alphabet       string `json:"alphabet"`
	Length         int    `json:"length"`
	Seed           int64  `json:"seed"`
	Times          int    `json:"times,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	SampleSize     int    `json:"sample_size,omitempty"`
	TopK           int    `json:"top_k,omitempty"`
	TrainingSize   int    `json:"training_size,omitempty"`
	TestingSize    int    `json:"testing_size,omitempty"`
	RandomizeCodes bool   `json:"randomize_codes,omitempty"`
	SampleSizes    []int  `json:"sample_sizes,omitempty"`
}

type RunArtifacts struct {
	Config RunConfig                 `json:"config"`
	Sweep  *experiment.SweepSummary  `json:"sweep,omitempty"`
	Peaks  []model.Peak              `json:"peaks,omitempty"`
	Repeat *experiment.RepeatSummary `json:"repeat,omitempty"`
	Curve  []experiment.CurvePoint   `json:"curve,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Kind         string  `json:"kind"`
	StoreKind    string  `json:"store_kind"`
	Seed         int64   `json:"seed"`
	Headline     float64 `json:"headline"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func NewRunID() string {
	return uuid.NewString()
}

func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Headline is the single number a run is listed by: the reached-max rate of a
// sweep, or the mean peak fitness of repeated strategies.
func (a RunArtifacts) Headline() float64 {
	switch {
	case a.Sweep != nil:
		return a.Sweep.ReachedMaxRate
	case a.Repeat != nil:
		return a.Repeat.Mean
	case len(a.Curve) > 0:
		return a.Curve[len(a.Curve)-1].Mean
	}
	return 0
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if artifacts.Sweep != nil {
		if err := writeJSON(filepath.Join(runDir, "sweep_summary.json"), artifacts.Sweep); err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(runDir, "peaks.json"), artifacts.Peaks); err != nil {
			return "", err
		}
	}
	if artifacts.Repeat != nil {
		if err := writeJSON(filepath.Join(runDir, "repeat_summary.json"), artifacts.Repeat); err != nil {
			return "", err
		}
		if err := writeSeriesCSV(filepath.Join(runDir, "runs.csv"), artifacts.Repeat.Runs); err != nil {
			return "", err
		}
	}
	if len(artifacts.Curve) > 0 {
		if err := writeJSON(filepath.Join(runDir, "curve.json"), artifacts.Curve); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	// The file keeps append order; only listing sorts.
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends first on equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// RecordRun writes the artifacts and indexes them in one step.
func RecordRun(baseDir string, artifacts RunArtifacts) (string, error) {
	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		return "", err
	}
	entry := RunIndexEntry{
		RunID:        artifacts.Config.RunID,
		Kind:         artifacts.Config.Kind,
		StoreKind:    artifacts.Config.StoreKind,
		Seed:         artifacts.Config.Seed,
		Headline:     artifacts.Headline(),
		CreatedAtUTC: NowUTC(),
	}
	if err := AppendRunIndex(baseDir, entry); err != nil {
		return "", err
	}
	return runDir, nil
}

// StoredRun is a run read back from its artifact directory.
type StoredRun struct {
	RunArtifacts
	// Series is the per-iteration peak fitness from runs.csv.
	Series []float64
}

// ReadRun loads every artifact written for runID. A run without a config is
// reported as not found.
func ReadRun(baseDir, runID string) (StoredRun, bool, error) {
	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		return StoredRun{}, false, err
	}
	run := StoredRun{RunArtifacts: RunArtifacts{Config: cfg}}

	sweep, ok, err := ReadSweepSummary(baseDir, runID)
	if err != nil {
		return StoredRun{}, false, err
	}
	if ok {
		run.Sweep = &sweep
		if _, err := readJSON(filepath.Join(baseDir, runID, "peaks.json"), &run.Peaks); err != nil {
			return StoredRun{}, false, err
		}
	}

	repeat, ok, err := ReadRepeatSummary(baseDir, runID)
	if err != nil {
		return StoredRun{}, false, err
	}
	if ok {
		run.Repeat = &repeat
		series, err := ReadSeriesCSV(filepath.Join(baseDir, runID, "runs.csv"))
		if err != nil {
			return StoredRun{}, false, err
		}
		run.Series = series
	}

	if _, err := readJSON(filepath.Join(baseDir, runID, "curve.json"), &run.Curve); err != nil {
		return StoredRun{}, false, err
	}
	return run, true, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadSweepSummary(baseDir, runID string) (experiment.SweepSummary, bool, error) {
	var summary experiment.SweepSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "sweep_summary.json"), &summary)
	return summary, ok, err
}

func ReadRepeatSummary(baseDir, runID string) (experiment.RepeatSummary, bool, error) {
	var summary experiment.RepeatSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "repeat_summary.json"), &summary)
	return summary, ok, err
}

func ReadSeriesCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	values := make([]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) < 2 {
			return nil, fmt.Errorf("series row %d: expected 2 columns", i+1)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("series row %d: %w", i+1, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func writeSeriesCSV(path string, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"iteration", "peak_fitness"}); err != nil {
		return err
	}
	for i, v := range values {
		if err := writer.Write([]string{strconv.Itoa(i + 1), strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
