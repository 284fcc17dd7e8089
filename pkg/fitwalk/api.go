package fitwalk

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"fitwalk/internal/experiment"
	"fitwalk/internal/ingest"
	"fitwalk/internal/landscape"
	"fitwalk/internal/model"
	"fitwalk/internal/recombine"
	"fitwalk/internal/report"
	"fitwalk/internal/storage"
	"fitwalk/internal/surrogate"
	"fitwalk/internal/walk"
)

const (
	defaultDBPath  = "fitwalk.db"
	defaultRunsDir = "runs"
	chartFile      = "chart.png"
)

const (
	StrategyRecombine = "recombine"
	StrategySurrogate = "surrogate"
)

type Options struct {
	StoreKind string
	DBPath    string
	// CacheSize bounds the lookup cache in front of the store; 0 disables it.
	CacheSize int64
	RunsDir   string
	Alphabet  string
	Length    int
	Logger    *zap.Logger
}

type Client struct {
	store     storage.Store
	storeKind string
	dbPath    string
	runsDir   string
	alphabet  model.Alphabet
	length    int
	logger    *zap.Logger

	mu          sync.Mutex
	initialized bool
	land        *landscape.Landscape
}

type IngestRequest struct {
	Screened   string
	Fitted     string
	Sheet      string
	Precedence string
	BatchSize  int
}

type SweepRequest struct {
	Workers       int
	ProgressEvery int
	Progress      func(done, total int)
	KeepRounds    bool
	// ResumeRunID continues a persisted, incomplete sweep.
	ResumeRunID string
	PeakLimit   int
}

type SweepSummary struct {
	RunID        string
	Complete     bool
	Stats        experiment.SweepSummary
	Peaks        []model.Peak
	ArtifactsDir string
}

type PeaksRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type RunsRequest struct {
	Limit int
}

type RecombineRequest struct {
	SampleSize    int
	TopK          int
	Times         int
	Seed          int64
	ProgressEvery int
	Chart         bool
}

type SurrogateRequest struct {
	TrainingSize   int
	TestingSize    int
	RandomizeCodes bool
	Times          int
	Seed           int64
	ProgressEvery  int
	Chart          bool
}

type RepeatRunSummary struct {
	RunID   string
	Summary experiment.RepeatSummary
	// MeanPearson is only set for surrogate runs.
	MeanPearson  float64
	ArtifactsDir string
	ChartPath    string
}

type CurveRequest struct {
	Strategy string
	// Sizes are recombination sample sizes or surrogate training sizes.
	Sizes       []int
	Times       int
	Seed        int64
	TopK        int
	TestingSize int
	Chart       bool
}

type CurveSummary struct {
	RunID        string
	Points       []experiment.CurvePoint
	ArtifactsDir string
	ChartPath    string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	alphabet := model.DefaultAlphabet()
	if opts.Alphabet != "" {
		a, err := model.NewAlphabet(opts.Alphabet)
		if err != nil {
			return nil, err
		}
		alphabet = a
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		cached, err := storage.NewCachedStore(store, opts.CacheSize)
		if err != nil {
			return nil, err
		}
		store = cached
	}

	return &Client{
		store:     store,
		storeKind: storeKind,
		dbPath:    dbPath,
		runsDir:   runsDir,
		alphabet:  alphabet,
		length:    opts.Length,
		logger:    logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureLandscape(ctx)
	return err
}

func (c *Client) Ingest(ctx context.Context, req IngestRequest) (ingest.Summary, error) {
	precedence, err := ingest.ParsePrecedence(req.Precedence)
	if err != nil {
		return ingest.Summary{}, err
	}
	summary, err := ingest.Ingest(ctx, ingest.Options{
		Store:      c.store,
		Alphabet:   c.alphabet,
		Length:     c.length,
		Screened:   ingest.TableSpec{Path: req.Screened, Sheet: req.Sheet},
		Fitted:     ingest.TableSpec{Path: req.Fitted, Sheet: req.Sheet},
		Precedence: precedence,
		BatchSize:  req.BatchSize,
		Logger:     c.logger,
	})

	// The landscape session memoises enumeration, so start a new one.
	c.mu.Lock()
	c.land = nil
	c.mu.Unlock()
	return summary, err
}

func (c *Client) Lookup(ctx context.Context, seq string) (float64, bool, error) {
	land, err := c.ensureLandscape(ctx)
	if err != nil {
		return 0, false, err
	}
	return land.Lookup(ctx, model.Normalize(seq))
}

func (c *Client) MaxFitness(ctx context.Context) (float64, error) {
	land, err := c.ensureLandscape(ctx)
	if err != nil {
		return 0, err
	}
	return land.MaxFitness(ctx)
}

func (c *Client) Walk(ctx context.Context, start string) (model.WalkResult, error) {
	walker, _, err := c.walker(ctx)
	if err != nil {
		return model.WalkResult{}, err
	}
	result, err := walker.Walk(ctx, model.Normalize(start))
	if err != nil {
		return model.WalkResult{}, err
	}
	maxFitness, err := c.MaxFitness(ctx)
	if err != nil {
		return model.WalkResult{}, err
	}
	result.ReachedMax = result.FinalFitness == maxFitness
	return result, nil
}

// Sweep walks from every sequence and persists the ledger to the store, even
// when the sweep is interrupted, so it can be resumed by run id.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	walker, land, err := c.walker(ctx)
	if err != nil {
		return SweepSummary{}, err
	}
	maxFitness, err := land.MaxFitness(ctx)
	if err != nil {
		return SweepSummary{}, err
	}

	runID := req.ResumeRunID
	createdAt := report.NowUTC()
	var ledger *walk.Ledger
	if runID != "" {
		record, ok, err := c.store.GetSweep(ctx, runID)
		if err != nil {
			return SweepSummary{}, err
		}
		if !ok {
			return SweepSummary{}, fmt.Errorf("sweep not found: %s", runID)
		}
		ledger, err = walk.LedgerFromRecord(record)
		if err != nil {
			return SweepSummary{}, err
		}
		createdAt = record.CreatedAtUTC
	} else {
		runID = report.NewRunID()
	}

	ledger, sweepErr := walker.Sweep(ctx, walk.SweepOptions{
		Workers:       req.Workers,
		ProgressEvery: req.ProgressEvery,
		Progress:      req.Progress,
		KeepRounds:    req.KeepRounds,
		Ledger:        ledger,
	})
	complete := sweepErr == nil

	// Persist with a fresh context so a cancelled sweep keeps its progress.
	record := walk.Record(runID, createdAt, maxFitness, complete, ledger)
	if err := c.store.SaveSweep(context.WithoutCancel(ctx), record); err != nil {
		return SweepSummary{}, errors.Join(sweepErr, err)
	}

	summary := SweepSummary{
		RunID:    runID,
		Complete: complete,
		Stats:    experiment.SweepStats(ledger, maxFitness),
		Peaks:    limitPeaks(ledger.Peaks(), req.PeakLimit),
	}
	if sweepErr != nil {
		c.logger.Warn("sweep interrupted",
			zap.String("run_id", runID),
			zap.Int("recorded", ledger.Len()),
			zap.Error(sweepErr),
		)
		return summary, sweepErr
	}

	stats := summary.Stats
	dir, err := report.RecordRun(c.runsDir, report.RunArtifacts{
		Config: c.runConfig(runID, report.KindSweep, func(cfg *report.RunConfig) {
			cfg.Workers = req.Workers
		}),
		Sweep: &stats,
		Peaks: ledger.Peaks(),
	})
	if err != nil {
		return summary, err
	}
	summary.ArtifactsDir = dir
	return summary, nil
}

// Sweeps lists persisted sweeps, newest first.
func (c *Client) Sweeps(ctx context.Context) ([]model.SweepRecord, error) {
	if _, err := c.ensureLandscape(ctx); err != nil {
		return nil, err
	}
	return c.store.ListSweeps(ctx)
}

func (c *Client) Peaks(ctx context.Context, req PeaksRequest) ([]model.Peak, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return nil, errors.New("peaks requires run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	var record model.SweepRecord
	if req.Latest {
		records, err := c.Sweeps(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, errors.New("no sweeps available")
		}
		record = records[0]
	} else {
		if _, err := c.ensureLandscape(ctx); err != nil {
			return nil, err
		}
		found, ok, err := c.store.GetSweep(ctx, req.RunID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("sweep not found: %s", req.RunID)
		}
		record = found
	}

	ledger, err := walk.LedgerFromRecord(record)
	if err != nil {
		return nil, err
	}
	return limitPeaks(ledger.Peaks(), req.Limit), nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]report.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := report.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

// Run reads back the artifacts recorded for runID.
func (c *Client) Run(_ context.Context, runID string) (report.StoredRun, error) {
	if runID == "" || runID == "." || runID == ".." || filepath.Base(runID) != runID {
		return report.StoredRun{}, fmt.Errorf("invalid run id: %q", runID)
	}
	run, ok, err := report.ReadRun(c.runsDir, runID)
	if err != nil {
		return report.StoredRun{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	if !ok {
		return report.StoredRun{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) Recombine(ctx context.Context, req RecombineRequest) (RepeatRunSummary, error) {
	if req.TopK <= 0 {
		req.TopK = recombine.DefaultTopK
	}
	if req.Times <= 0 {
		req.Times = 1
	}
	builder, err := c.builder(ctx)
	if err != nil {
		return RepeatRunSummary{}, err
	}

	summary, err := experiment.Repeat(ctx, recombinationStrategy(builder, req.SampleSize, req.TopK), req.Times, experiment.RepeatOptions{
		Seed:          req.Seed,
		ProgressEvery: req.ProgressEvery,
		Logger:        c.logger,
	})
	if err != nil {
		return RepeatRunSummary{}, err
	}

	out := RepeatRunSummary{RunID: report.NewRunID(), Summary: summary}
	cfg := c.runConfig(out.RunID, report.KindRecombine, func(cfg *report.RunConfig) {
		cfg.Seed = req.Seed
		cfg.Times = req.Times
		cfg.SampleSize = req.SampleSize
		cfg.TopK = req.TopK
	})
	if err := c.recordRepeat(&out, cfg, req.Chart, "recombination peak fitness"); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) Surrogate(ctx context.Context, req SurrogateRequest) (RepeatRunSummary, error) {
	if req.Times <= 0 {
		req.Times = 1
	}
	sampler, err := c.sampler(ctx, req.RandomizeCodes)
	if err != nil {
		return RepeatRunSummary{}, err
	}

	var pearsons []float64
	strategy := func(ctx context.Context, rng *rand.Rand) (float64, error) {
		result, err := sampler.SampleAndPredict(ctx, req.TrainingSize, req.TestingSize, rng)
		if err != nil {
			return 0, err
		}
		pearsons = append(pearsons, result.Pearson)
		return result.BestFitness, nil
	}
	summary, err := experiment.Repeat(ctx, strategy, req.Times, experiment.RepeatOptions{
		Seed:          req.Seed,
		ProgressEvery: req.ProgressEvery,
		Logger:        c.logger,
	})
	if err != nil {
		return RepeatRunSummary{}, err
	}

	out := RepeatRunSummary{RunID: report.NewRunID(), Summary: summary, MeanPearson: stat.Mean(pearsons, nil)}
	cfg := c.runConfig(out.RunID, report.KindSurrogate, func(cfg *report.RunConfig) {
		cfg.Seed = req.Seed
		cfg.Times = req.Times
		cfg.TrainingSize = req.TrainingSize
		cfg.TestingSize = req.TestingSize
		cfg.RandomizeCodes = req.RandomizeCodes
	})
	if err := c.recordRepeat(&out, cfg, req.Chart, "surrogate peak fitness"); err != nil {
		return out, err
	}
	return out, nil
}

// Curve reports mean peak fitness against sample size for one strategy.
func (c *Client) Curve(ctx context.Context, req CurveRequest) (CurveSummary, error) {
	if len(req.Sizes) == 0 {
		return CurveSummary{}, errors.New("curve requires at least one sample size")
	}
	if req.Times <= 0 {
		req.Times = 1
	}
	if req.TopK <= 0 {
		req.TopK = recombine.DefaultTopK
	}

	var factory func(size int) experiment.Strategy
	switch req.Strategy {
	case "", StrategyRecombine:
		req.Strategy = StrategyRecombine
		builder, err := c.builder(ctx)
		if err != nil {
			return CurveSummary{}, err
		}
		factory = func(size int) experiment.Strategy {
			return recombinationStrategy(builder, size, req.TopK)
		}
	case StrategySurrogate:
		sampler, err := c.sampler(ctx, false)
		if err != nil {
			return CurveSummary{}, err
		}
		factory = func(size int) experiment.Strategy {
			return func(ctx context.Context, rng *rand.Rand) (float64, error) {
				result, err := sampler.SampleAndPredict(ctx, size, req.TestingSize, rng)
				if err != nil {
					return 0, err
				}
				return result.BestFitness, nil
			}
		}
	default:
		return CurveSummary{}, fmt.Errorf("unknown strategy: %s", req.Strategy)
	}

	points, err := experiment.SampleCurve(ctx, req.Sizes, req.Times, factory, experiment.RepeatOptions{
		Seed:   req.Seed,
		Logger: c.logger,
	})
	if err != nil {
		return CurveSummary{}, err
	}

	out := CurveSummary{RunID: report.NewRunID(), Points: points}
	cfg := c.runConfig(out.RunID, report.KindCurve, func(cfg *report.RunConfig) {
		cfg.Seed = req.Seed
		cfg.Times = req.Times
		cfg.TopK = req.TopK
		cfg.TestingSize = req.TestingSize
		cfg.SampleSizes = append([]int(nil), req.Sizes...)
	})
	dir, err := report.RecordRun(c.runsDir, report.RunArtifacts{Config: cfg, Curve: points})
	if err != nil {
		return out, err
	}
	out.ArtifactsDir = dir
	if req.Chart {
		path := filepath.Join(dir, chartFile)
		if err := report.WriteLineChart(path, report.CurveChart(req.Strategy+": mean fitness vs sample size", points)); err != nil {
			return out, err
		}
		out.ChartPath = path
	}
	return out, nil
}

func recombinationStrategy(builder *recombine.Builder, sampleSize, topK int) experiment.Strategy {
	return func(ctx context.Context, rng *rand.Rand) (float64, error) {
		result, err := builder.BuildAndEvaluate(ctx, nil, sampleSize, topK, rng)
		if err != nil {
			return 0, err
		}
		return result.Fitness, nil
	}
}

func (c *Client) recordRepeat(out *RepeatRunSummary, cfg report.RunConfig, chart bool, title string) error {
	summary := out.Summary
	dir, err := report.RecordRun(c.runsDir, report.RunArtifacts{Config: cfg, Repeat: &summary})
	if err != nil {
		return err
	}
	out.ArtifactsDir = dir
	if chart {
		path := filepath.Join(dir, chartFile)
		if err := report.WriteLineChart(path, report.RunsChart(title, summary.Runs)); err != nil {
			return err
		}
		out.ChartPath = path
	}
	return nil
}

func (c *Client) runConfig(runID, kind string, apply func(*report.RunConfig)) report.RunConfig {
	cfg := report.RunConfig{
		RunID:     runID,
		Kind:      kind,
		StoreKind: c.storeKind,
		StorePath: c.dbPath,
		Alphabet:  c.alphabet.Symbols(),
		Length:    c.length,
	}
	c.mu.Lock()
	land := c.land
	c.mu.Unlock()
	if land != nil {
		if length, err := land.Length(context.Background()); err == nil {
			cfg.Length = length
		}
	}
	if apply != nil {
		apply(&cfg)
	}
	return cfg
}

func (c *Client) ensureLandscape(ctx context.Context) (*landscape.Landscape, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		if err := c.store.Init(ctx); err != nil {
			return nil, err
		}
		c.initialized = true
	}
	if c.land == nil {
		land, err := landscape.New(landscape.Config{Store: c.store, Alphabet: c.alphabet, Length: c.length})
		if err != nil {
			return nil, err
		}
		c.land = land
	}
	return c.land, nil
}

func (c *Client) walker(ctx context.Context) (*walk.Walker, *landscape.Landscape, error) {
	land, err := c.ensureLandscape(ctx)
	if err != nil {
		return nil, nil, err
	}
	walker, err := walk.NewWalker(walk.Config{Landscape: land, Logger: c.logger})
	if err != nil {
		return nil, nil, err
	}
	return walker, land, nil
}

func (c *Client) builder(ctx context.Context) (*recombine.Builder, error) {
	land, err := c.ensureLandscape(ctx)
	if err != nil {
		return nil, err
	}
	return recombine.NewBuilder(recombine.Config{Landscape: land, Logger: c.logger})
}

func (c *Client) sampler(ctx context.Context, randomizeCodes bool) (*surrogate.Sampler, error) {
	land, err := c.ensureLandscape(ctx)
	if err != nil {
		return nil, err
	}
	return surrogate.NewSampler(surrogate.Config{Landscape: land, Logger: c.logger, RandomizeCodes: randomizeCodes})
}

func limitPeaks(peaks []model.Peak, limit int) []model.Peak {
	if limit > 0 && limit < len(peaks) {
		return peaks[:limit]
	}
	return peaks
}
