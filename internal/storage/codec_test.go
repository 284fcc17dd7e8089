package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitwalk/internal/model"
)

func TestFitnessCodecPreservesBits(t *testing.T) {
	for _, value := range []float64{0, -1, 8.761965, math.SmallestNonzeroFloat64, math.Inf(1)} {
		decoded, err := DecodeFitness(EncodeFitness(value))
		require.NoError(t, err)
		assert.Equal(t, value, decoded)
	}
	_, err := DecodeFitness([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeSweepRejectsVersionMismatch(t *testing.T) {
	payload, err := EncodeSweep(model.SweepRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		RunID:           "r1",
	})
	require.NoError(t, err)
	_, err = DecodeSweep(payload)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}
