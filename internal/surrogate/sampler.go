// Package surrogate ranks unexplored sequences with a linear regression
// trained on a random subset of the landscape, then checks the top-ranked
// candidates against their measured fitness.
package surrogate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"fitwalk/internal/model"
	"fitwalk/internal/sampling"
	"fitwalk/internal/search"
)

var ErrDegenerateSample = errors.New("sampling request leaves no room to test")

type Landscape interface {
	search.Landscape
	Variants(ctx context.Context) ([]model.Variant, error)
}

type Config struct {
	Landscape Landscape
	Logger    *zap.Logger
	// RandomizeCodes draws a fresh symbol coding for every sample.
	RandomizeCodes bool
}

type Sampler struct {
	land      Landscape
	logger    *zap.Logger
	randomize bool
}

type Prediction struct {
	Sequence  string  `json:"sequence"`
	Predicted float64 `json:"predicted"`
	Fitness   float64 `json:"fitness"`
}

type Result struct {
	BestSequence string       `json:"best_sequence"`
	BestFitness  float64      `json:"best_fitness"`
	Selected     []Prediction `json:"selected"`
	TrainingSize int          `json:"training_size"`
	TestingSize  int          `json:"testing_size"`
	// Pearson and RMSE compare predictions with measured fitness over every
	// sequence held out of training.
	Pearson float64 `json:"pearson"`
	RMSE    float64 `json:"rmse"`
	Model   Model   `json:"model"`
}

func NewSampler(cfg Config) (*Sampler, error) {
	if cfg.Landscape == nil {
		return nil, fmt.Errorf("landscape is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{land: cfg.Landscape, logger: logger, randomize: cfg.RandomizeCodes}, nil
}

// SampleAndPredict trains on trainingSize random sequences, predicts the
// rest, and returns the best measured fitness among the testingSize
// sequences with the highest predictions.
func (s *Sampler) SampleAndPredict(ctx context.Context, trainingSize, testingSize int, rng *rand.Rand) (Result, error) {
	if rng == nil {
		return Result{}, fmt.Errorf("random source is required")
	}
	variants, err := s.land.Variants(ctx)
	if err != nil {
		return Result{}, err
	}
	n := len(variants)
	if trainingSize >= n {
		return Result{}, fmt.Errorf("%w: training size %d covers all %d sequences", ErrDegenerateSample, trainingSize, n)
	}
	if testingSize <= 0 {
		return Result{}, fmt.Errorf("testing size must be positive: %d", testingSize)
	}
	if testingSize > n-trainingSize {
		return Result{}, fmt.Errorf("%w: testing size %d exceeds %d unexplored sequences", ErrDegenerateSample, testingSize, n-trainingSize)
	}
	length := len(variants[0].Sequence)
	if trainingSize < length+1 {
		return Result{}, fmt.Errorf("training size %d is below the %d coefficients to fit", trainingSize, length+1)
	}

	codebook := FixedCodebook(s.land.Alphabet())
	if s.randomize {
		codebook = RandomCodebook(s.land.Alphabet(), rng)
	}

	trainIdx, err := sampling.Indices(rng, n, trainingSize)
	if err != nil {
		return Result{}, err
	}
	inTraining := make([]bool, n)
	x := make([][]float64, trainingSize)
	y := make([]float64, trainingSize)
	for i, j := range trainIdx {
		inTraining[j] = true
		if x[i], err = codebook.Encode(variants[j].Sequence); err != nil {
			return Result{}, err
		}
		y[i] = variants[j].Fitness
	}

	fitted, err := Fit(x, y)
	if err != nil {
		return Result{}, err
	}

	unseen := make([]Prediction, 0, n-trainingSize)
	for j, variant := range variants {
		if inTraining[j] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		features, err := codebook.Encode(variant.Sequence)
		if err != nil {
			return Result{}, err
		}
		unseen = append(unseen, Prediction{
			Sequence:  variant.Sequence,
			Predicted: fitted.Predict(features),
			Fitness:   variant.Fitness,
		})
	}
	pearson, rmse := quality(unseen)

	sort.Slice(unseen, func(i, j int) bool {
		if unseen[i].Predicted == unseen[j].Predicted {
			return unseen[i].Sequence < unseen[j].Sequence
		}
		return unseen[i].Predicted > unseen[j].Predicted
	})
	selected := append([]Prediction(nil), unseen[:testingSize]...)

	result := Result{
		TrainingSize: trainingSize,
		TestingSize:  testingSize,
		Pearson:      pearson,
		RMSE:         rmse,
		Model:        fitted,
	}
	var best search.Candidate
	for i := range selected {
		candidate, err := search.Evaluate(ctx, s.land, selected[i].Sequence)
		if err != nil {
			return Result{}, err
		}
		if !candidate.Observed {
			return Result{}, fmt.Errorf("predicted sequence %s vanished from the landscape", candidate.Sequence)
		}
		selected[i].Fitness = candidate.Fitness
		if i == 0 || candidate.Beats(best) {
			best = candidate
		}
	}
	result.Selected = selected
	result.BestSequence = best.Sequence
	result.BestFitness = best.Fitness

	s.logger.Debug("surrogate sample evaluated",
		zap.Int("training", trainingSize),
		zap.Int("testing", testingSize),
		zap.Float64("pearson", pearson),
		zap.Float64("rmse", rmse),
		zap.String("best", result.BestSequence),
		zap.Float64("fitness", result.BestFitness),
	)
	return result, nil
}

func quality(predictions []Prediction) (pearson, rmse float64) {
	predicted := make([]float64, len(predictions))
	measured := make([]float64, len(predictions))
	sq := 0.0
	for i, p := range predictions {
		predicted[i] = p.Predicted
		measured[i] = p.Fitness
		d := p.Predicted - p.Fitness
		sq += d * d
	}
	rmse = math.Sqrt(sq / float64(len(predictions)))
	if len(predictions) < 2 {
		return 0, rmse
	}
	pearson = stat.Correlation(predicted, measured, nil)
	if math.IsNaN(pearson) {
		pearson = 0
	}
	return pearson, rmse
}
