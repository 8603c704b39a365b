package storage

import (
	"context"

	"siphotonet/internal/model"
)

// Store defines persistence operations for network specs, runs and step traces.
type Store interface {
	Init(ctx context.Context) error
	SaveNetworkSpec(ctx context.Context, spec model.NetworkSpec) error
	GetNetworkSpec(ctx context.Context, id string) (model.NetworkSpec, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveTrace(ctx context.Context, runID string, trace []model.StepRecord) error
	GetTrace(ctx context.Context, runID string) ([]model.StepRecord, bool, error)
}
