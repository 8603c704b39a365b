package storage

import (
	"encoding/json"
	"errors"

	"golang.org/x/exp/slices"

	"siphotonet/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp new records are written with.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeNetworkSpec(spec model.NetworkSpec) ([]byte, error) {
	return json.Marshal(spec)
}

func DecodeNetworkSpec(data []byte) (model.NetworkSpec, error) {
	var spec model.NetworkSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return model.NetworkSpec{}, err
	}
	if err := checkVersion(spec.VersionedRecord); err != nil {
		return model.NetworkSpec{}, err
	}
	return spec, nil
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeTrace(trace []model.StepRecord) ([]byte, error) {
	return json.Marshal(trace)
}

func DecodeTrace(data []byte) ([]model.StepRecord, error) {
	var trace []model.StepRecord
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, err
	}
	return trace, nil
}

// sortRuns orders runs newest first, breaking ties by id.
func sortRuns(runs []model.RunRecord) {
	slices.SortFunc(runs, func(a, b model.RunRecord) int {
		if a.CreatedAtUTC != b.CreatedAtUTC {
			if a.CreatedAtUTC > b.CreatedAtUTC {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}

func cloneTrace(trace []model.StepRecord) []model.StepRecord {
	copied := make([]model.StepRecord, len(trace))
	for i, step := range trace {
		step.Powers = slices.Clone(step.Powers)
		step.Transmissions = slices.Clone(step.Transmissions)
		step.Currents = slices.Clone(step.Currents)
		copied[i] = step
	}
	return copied
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
