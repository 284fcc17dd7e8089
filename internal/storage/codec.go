package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"fitwalk/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSweep(record model.SweepRecord) ([]byte, error) {
	return json.Marshal(record)
}

func DecodeSweep(data []byte) (model.SweepRecord, error) {
	var record model.SweepRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SweepRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.SweepRecord{}, err
	}
	return record, nil
}

// EncodeFitness stores a fitness as big-endian IEEE 754 bits.
func EncodeFitness(fitness float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(fitness))
	return buf
}

func DecodeFitness(data []byte) (float64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("fitness payload has %d bytes, want 8", len(data))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
}

func stampVersion(record *model.SweepRecord) {
	record.SchemaVersion = CurrentSchemaVersion
	record.CodecVersion = CurrentCodecVersion
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
