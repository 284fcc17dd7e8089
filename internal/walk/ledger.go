package walk

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"fitwalk/internal/model"
)

var ErrDuplicateStart = errors.New("walk already recorded for starting sequence")

// Ledger is the append-only record of walk results, keyed by starting
// sequence. A recorded result is never replaced. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	index   map[string]int
	results []model.WalkResult

	peaks      []model.Peak
	peaksValid bool
}

func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// LedgerFromRecord rebuilds a ledger from a persisted sweep.
func LedgerFromRecord(record model.SweepRecord) (*Ledger, error) {
	ledger := NewLedger()
	for _, result := range record.Results {
		if err := ledger.Record(result); err != nil {
			return nil, fmt.Errorf("sweep %s: %w", record.RunID, err)
		}
	}
	return ledger, nil
}

func (l *Ledger) Record(result model.WalkResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.index[result.Start]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStart, result.Start)
	}
	l.index[result.Start] = len(l.results)
	l.results = append(l.results, result)
	l.peaksValid = false
	return nil
}

func (l *Ledger) Has(start string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.index[start]
	return ok
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.results)
}

// Results returns a copy of the recorded results in recording order.
func (l *Ledger) Results() []model.WalkResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]model.WalkResult(nil), l.results...)
}

// Peaks returns the distinct final sequences, fittest first. The set is
// computed on first use and reused until another result is recorded.
func (l *Ledger) Peaks() []model.Peak {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.peaksValid {
		l.peaks = buildPeaks(l.results)
		l.peaksValid = true
	}
	return append([]model.Peak(nil), l.peaks...)
}

func (l *Ledger) UniquePeaks() int {
	return len(l.Peaks())
}

func buildPeaks(results []model.WalkResult) []model.Peak {
	byFinal := make(map[string]int)
	peaks := make([]model.Peak, 0)
	for _, result := range results {
		i, ok := byFinal[result.Final]
		if !ok {
			byFinal[result.Final] = len(peaks)
			peaks = append(peaks, model.Peak{Sequence: result.Final, Fitness: result.FinalFitness, Basin: 1})
			continue
		}
		peaks[i].Basin++
	}
	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Fitness == peaks[j].Fitness {
			return peaks[i].Sequence < peaks[j].Sequence
		}
		return peaks[i].Fitness > peaks[j].Fitness
	})
	return peaks
}
