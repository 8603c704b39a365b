package storage

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/exp/slices"

	"siphotonet/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	specs       map[string]model.NetworkSpec
	runs        map[string]model.RunRecord
	traces      map[string][]model.StepRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.specs = make(map[string]model.NetworkSpec)
	s.runs = make(map[string]model.RunRecord)
	s.traces = make(map[string][]model.StepRecord)
	return nil
}

func (s *MemoryStore) SaveNetworkSpec(_ context.Context, spec model.NetworkSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.specs[spec.ID] = cloneSpec(spec)
	return nil
}

func (s *MemoryStore) GetNetworkSpec(_ context.Context, id string) (model.NetworkSpec, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[id]
	if !ok {
		return model.NetworkSpec{}, false, nil
	}
	return cloneSpec(spec), true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveTrace(_ context.Context, runID string, trace []model.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.traces[runID] = cloneTrace(trace)
	return nil
}

func (s *MemoryStore) GetTrace(_ context.Context, runID string) ([]model.StepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, ok := s.traces[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneTrace(trace), true, nil
}

func cloneSpec(spec model.NetworkSpec) model.NetworkSpec {
	weights := make([][]float64, len(spec.Weights))
	for i, row := range spec.Weights {
		weights[i] = slices.Clone(row)
	}
	spec.Weights = weights
	spec.ExternalWeights = slices.Clone(spec.ExternalWeights)
	spec.Wavelengths = slices.Clone(spec.Wavelengths)
	spec.Powers = slices.Clone(spec.Powers)
	spec.ExternalInputs = slices.Clone(spec.ExternalInputs)
	return spec
}

func cloneRun(run model.RunRecord) model.RunRecord {
	run.Wavelengths = slices.Clone(run.Wavelengths)
	run.FinalPowers = slices.Clone(run.FinalPowers)
	return run
}
