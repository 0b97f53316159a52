package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"lamarck/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrMalformedRecord = errors.New("malformed record")
)

// CurrentVersion is the version stamp written on every new record.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeGenome(g model.Genome) ([]byte, error) {
	stamp(&g.VersionedRecord)
	return json.Marshal(g)
}

func DecodeGenome(data []byte) (model.Genome, error) {
	var genome model.Genome
	if err := json.Unmarshal(data, &genome); err != nil {
		return model.Genome{}, fmt.Errorf("%w: genome: %v", ErrMalformedRecord, err)
	}
	if err := checkVersion(genome.VersionedRecord); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

func EncodeEngineState(s model.EngineState) ([]byte, error) {
	stamp(&s.VersionedRecord)
	return json.Marshal(s)
}

func DecodeEngineState(data []byte) (model.EngineState, error) {
	var state model.EngineState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.EngineState{}, fmt.Errorf("%w: engine state: %v", ErrMalformedRecord, err)
	}
	if err := checkVersion(state.VersionedRecord); err != nil {
		return model.EngineState{}, err
	}
	return state, nil
}

func EncodeLearnerState(s model.LearnerState) ([]byte, error) {
	stamp(&s.VersionedRecord)
	return json.Marshal(s)
}

func DecodeLearnerState(data []byte) (model.LearnerState, error) {
	var state model.LearnerState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.LearnerState{}, fmt.Errorf("%w: learner state: %v", ErrMalformedRecord, err)
	}
	if err := checkVersion(state.VersionedRecord); err != nil {
		return model.LearnerState{}, err
	}
	return state, nil
}

func EncodeParams(params []float64) ([]byte, error) {
	return json.Marshal(params)
}

func DecodeParams(data []byte) ([]float64, error) {
	var params []float64
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("%w: params: %v", ErrMalformedRecord, err)
	}
	return params, nil
}

func EncodeParentIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		ids = []int64{}
	}
	return json.Marshal(ids)
}

func DecodeParentIDs(data []byte) ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: parent ids: %v", ErrMalformedRecord, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// IsIncompatible reports whether err means a persisted record cannot be
// understood by this build.
func IsIncompatible(err error) bool {
	return errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrMalformedRecord)
}

func stamp(v *model.VersionedRecord) {
	if v.SchemaVersion == 0 && v.CodecVersion == 0 {
		*v = CurrentVersion()
	}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
