package storage

import (
	"errors"
	"testing"

	"lamarck/internal/model"
)

func TestEncodeStampsCurrentVersion(t *testing.T) {
	data, err := EncodeEngineState(model.EngineState{ExperimentID: "opt", RNGState: []byte{1, 2}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	state, err := DecodeEngineState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.VersionedRecord != CurrentVersion() {
		t.Fatalf("unexpected version: %+v", state.VersionedRecord)
	}
	if string(state.RNGState) != string([]byte{1, 2}) {
		t.Fatalf("rng state lost: %v", state.RNGState)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	_, err := DecodeGenome([]byte(`{"schema_version":1,"codec_version":2}`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	_, err = DecodeLearnerState([]byte(`{}`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch for unversioned record, got %v", err)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := DecodeEngineState([]byte(`not json`))
	if !errors.Is(err, ErrMalformedRecord) || !IsIncompatible(err) {
		t.Fatalf("expected malformed record, got %v", err)
	}
}

func TestParentIDsRoundTrip(t *testing.T) {
	data, err := EncodeParentIDs(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ids, err := DecodeParentIDs(data)
	if err != nil || ids != nil {
		t.Fatalf("expected nil ids, got %v err=%v", ids, err)
	}
}
