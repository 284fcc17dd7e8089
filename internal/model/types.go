package model

import (
	"errors"
	"fmt"
	"math"
)

var ErrNonFiniteFitness = errors.New("fitness is not finite")

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Variant is one populated landscape entry.
type Variant struct {
	Sequence string  `json:"sequence"`
	Fitness  float64 `json:"fitness"`
}

// CheckFitness rejects NaN and infinite values; neither can be ordered
// against other observations.
func CheckFitness(fitness float64) error {
	if math.IsNaN(fitness) || math.IsInf(fitness, 0) {
		return fmt.Errorf("%w: %v", ErrNonFiniteFitness, fitness)
	}
	return nil
}

// WalkRound records the position fixed in one round of an adaptive walk and
// the working sequence it advanced to.
type WalkRound struct {
	Round    int     `json:"round"`
	Position int     `json:"position"`
	Sequence string  `json:"sequence"`
	Fitness  float64 `json:"fitness"`
}

type WalkResult struct {
	Start        string      `json:"start"`
	Final        string      `json:"final"`
	StartFitness float64     `json:"start_fitness"`
	FinalFitness float64     `json:"final_fitness"`
	Rounds       []WalkRound `json:"rounds,omitempty"`
	ReachedMax   bool        `json:"reached_max"`
}

// Improvement is the fitness gained over the walk.
func (r WalkResult) Improvement() float64 {
	return r.FinalFitness - r.StartFitness
}

// Peak is a distinct walk endpoint. Basin counts the starting sequences that
// converged onto it.
type Peak struct {
	Sequence string  `json:"sequence"`
	Fitness  float64 `json:"fitness"`
	Basin    int     `json:"basin"`
}

type SweepRecord struct {
	VersionedRecord
	RunID        string       `json:"run_id"`
	CreatedAtUTC string       `json:"created_at_utc"`
	MaxFitness   float64      `json:"max_fitness"`
	Complete     bool         `json:"complete"`
	Results      []WalkResult `json:"results"`
}
