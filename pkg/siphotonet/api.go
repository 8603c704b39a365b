package siphotonet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"siphotonet/internal/model"
	"siphotonet/internal/nn"
	"siphotonet/internal/photonics"
	"siphotonet/internal/stats"
	"siphotonet/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "siphotonet.db"
	defaultRunsLimit  = 20

	defaultSweepPoints    = 101
	defaultSweepMaxAmp    = 5e-3
	defaultSpectrumPoints = 1001
	defaultSpectrumFrom   = 1545e-9
	defaultSpectrumTo     = 1555e-9
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrSpecNotFound = errors.New("network spec not found")
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
}

type Client struct {
	store storage.Store

	mu          sync.Mutex
	initialized bool

	runsDir    string
	exportsDir string
	now        func() time.Time
}

type SimulateRequest struct {
	// Spec describes the network. When Spec has no weights, SpecID names a
	// previously stored spec to run again. Setting both is an error.
	Spec      model.NetworkSpec
	SpecID    string
	Steps     int
	Workers   int
	OnWarning func(photonics.DomainWarning)
}

type SimulateSummary struct {
	RunID        string
	SpecID       string
	ArtifactsDir string
	Steps        int
	Done         bool
	Wavelengths  []float64
	FinalPowers  []float64
	Warnings     []photonics.DomainWarning
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	SpecID       string
	CreatedAtUTC string
	Neurons      int
	Channels     int
	Steps        int
	Done         bool
	WarningCount int
}

type TraceRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type SpectrumRequest struct {
	Weights    []float64
	RingPreset string
	Ring       photonics.RingParams
	From       float64
	To         float64
	Points     int
}

type ModulatorSweepRequest struct {
	Modulator  photonics.Modulator
	RingPreset string
	Wavelength float64
	From       float64
	To         float64
	Points     int
}

// ModulatorSpectrumRequest drives the modulator with the photocurrent of a
// photodiode reading Through and Drop, or with Current when both are empty.
type ModulatorSpectrumRequest struct {
	Modulator  photonics.Modulator
	RingPreset string
	Photodiode photonics.Photodiode
	Through    []float64
	Drop       []float64
	Current    float64
	From       float64
	To         float64
	Points     int
}

type ModulatorSpectrum struct {
	Current float64
	Points  []photonics.SweepPoint
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		now:        time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Simulate builds a network, steps it, and persists the spec, run record,
// trace and file artifacts.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (SimulateSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return SimulateSummary{}, err
	}

	spec := req.Spec
	if len(spec.Weights) > 0 && req.SpecID != "" {
		return SimulateSummary{}, fmt.Errorf("%w: use either weights or a stored spec id", nn.ErrConfiguration)
	}
	if len(spec.Weights) == 0 {
		if req.SpecID == "" {
			return SimulateSummary{}, fmt.Errorf("%w: simulate requires weights or a stored spec id", nn.ErrConfiguration)
		}
		stored, ok, err := c.store.GetNetworkSpec(ctx, req.SpecID)
		if err != nil {
			return SimulateSummary{}, err
		}
		if !ok {
			return SimulateSummary{}, fmt.Errorf("%w: %s", ErrSpecNotFound, req.SpecID)
		}
		spec = stored
	}

	ring, err := resolveRing(spec.RingPreset, spec.Ring)
	if err != nil {
		return SimulateSummary{}, fmt.Errorf("%w: %v", nn.ErrConfiguration, err)
	}
	spec.Ring = ring
	spec.VersionedRecord = storage.CurrentVersion()
	if spec.ID == "" {
		spec.ID = "spec-" + uuid.NewString()
	}

	var warnings []photonics.DomainWarning
	net, err := nn.NewNetwork(nn.Config{
		Weights:            spec.Weights,
		ExternalWeights:    spec.ExternalWeights,
		Wavelengths:        spec.Wavelengths,
		BaseWavelength:     spec.BaseWavelength,
		Spacing:            spec.Spacing,
		Powers:             spec.Powers,
		ExternalWavelength: spec.ExternalWavelength,
		ExternalInputs:     spec.ExternalInputs,
		Ring:               ring,
		Modulator:          spec.Modulator,
		Photodiode:         spec.Photodiode,
		Workers:            req.Workers,
		OnWarning: func(w photonics.DomainWarning) {
			warnings = append(warnings, w)
			if req.OnWarning != nil {
				req.OnWarning(w)
			}
		},
	})
	if err != nil {
		return SimulateSummary{}, err
	}

	results, err := net.Run(ctx, req.Steps)
	if err != nil {
		return SimulateSummary{}, err
	}

	trace := make([]model.StepRecord, len(results))
	for i, result := range results {
		trace[i] = model.StepRecord{
			Step:          result.Step,
			Powers:        result.Waveguide.Powers(),
			Transmissions: result.Transmissions,
			Currents:      result.Currents,
			Warnings:      len(result.Warnings),
		}
	}

	runID := "run-" + uuid.NewString()
	createdAt := stats.FormatCreatedAt(c.now())
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		SpecID:          spec.ID,
		Steps:           net.Steps(),
		Done:            net.State() == nn.StateDone,
		Wavelengths:     net.Wavelengths(),
		FinalPowers:     net.Powers(),
		WarningCount:    len(warnings),
		CreatedAtUTC:    createdAt,
	}

	if err := c.store.SaveNetworkSpec(ctx, spec); err != nil {
		return SimulateSummary{}, err
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return SimulateSummary{}, err
	}
	if err := c.store.SaveTrace(ctx, runID, trace); err != nil {
		return SimulateSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			SpecID:         spec.ID,
			Neurons:        net.NeuronCount(),
			Channels:       net.ChannelCount(),
			External:       net.HasExternal(),
			StepsRequested: req.Steps,
			Workers:        req.Workers,
			Spec:           spec,
		},
		Wavelengths: run.Wavelengths,
		Trace:       trace,
		Warnings:    warnings,
	})
	if err != nil {
		return SimulateSummary{}, err
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		SpecID:       spec.ID,
		Neurons:      net.NeuronCount(),
		Channels:     net.ChannelCount(),
		Steps:        run.Steps,
		Done:         run.Done,
		WarningCount: run.WarningCount,
		CreatedAtUTC: createdAt,
	}); err != nil {
		return SimulateSummary{}, err
	}

	return SimulateSummary{
		RunID:        runID,
		SpecID:       spec.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Steps:        run.Steps,
		Done:         run.Done,
		Wavelengths:  slices.Clone(run.Wavelengths),
		FinalPowers:  slices.Clone(run.FinalPowers),
		Warnings:     warnings,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			SpecID:       e.SpecID,
			CreatedAtUTC: e.CreatedAtUTC,
			Neurons:      e.Neurons,
			Channels:     e.Channels,
			Steps:        e.Steps,
			Done:         e.Done,
			WarningCount: e.WarningCount,
		})
	}
	return out, nil
}

// Trace returns the committed steps of a run. Runs missing from the store,
// such as those written by another process with a memory store, are read
// back from their artifacts.
func (c *Client) Trace(ctx context.Context, req TraceRequest) ([]model.StepRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	trace, ok, err := c.store.GetTrace(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		trace, ok, err = stats.ReadTrace(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
	}
	if req.Limit > 0 && len(trace) > req.Limit {
		trace = trace[:req.Limit]
	}
	return trace, nil
}

// Summary returns per-channel power statistics of a run.
func (c *Client) Summary(ctx context.Context, req TraceRequest) ([]stats.ChannelSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	summary, ok, err := stats.ReadSummary(c.runsDir, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return summary, nil
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	trace, _, err := c.store.GetTrace(ctx, runID)
	if err != nil {
		return nil, err
	}
	return stats.SummarizeTrace(run.Wavelengths, trace), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// WeightBankSpectrum sweeps every ring of a weight bank over a wavelength
// grid. Row j holds the response of the ring carrying Weights[j].
func (c *Client) WeightBankSpectrum(_ context.Context, req SpectrumRequest) ([][]photonics.Response, error) {
	ring, err := resolveRing(req.RingPreset, req.Ring)
	if err != nil {
		return nil, err
	}
	wavelengths, err := spectrumGrid(req.From, req.To, req.Points)
	if err != nil {
		return nil, err
	}
	neuron, err := nn.NewNeuron(0, req.Weights, wavelengths[0], 1, ring, photonics.Modulator{Ring: ring}, photonics.Photodiode{})
	if err != nil {
		return nil, err
	}
	return neuron.WeightBankSpectrum(wavelengths), nil
}

// ModulatorSweep evaluates modulator transmission over a photocurrent range
// at one wavelength.
func (c *Client) ModulatorSweep(_ context.Context, req ModulatorSweepRequest) ([]photonics.SweepPoint, error) {
	mod, err := resolveModulator(req.RingPreset, req.Modulator)
	if err != nil {
		return nil, err
	}
	if req.Wavelength == 0 {
		req.Wavelength = nn.DefaultBaseWavelength
	}
	if !(req.Wavelength > 0) {
		return nil, fmt.Errorf("%w: wavelength must be > 0", photonics.ErrInvalidRange)
	}
	if req.From == 0 && req.To == 0 {
		req.To = defaultSweepMaxAmp
	}
	if req.Points == 0 {
		req.Points = defaultSweepPoints
	}
	return mod.Sweep(req.Wavelength, req.From, req.To, req.Points)
}

// ModulatorSpectrum evaluates modulator transmission over wavelength for the
// photocurrent produced by explicit through and drop power vectors.
func (c *Client) ModulatorSpectrum(_ context.Context, req ModulatorSpectrumRequest) (ModulatorSpectrum, error) {
	mod, err := resolveModulator(req.RingPreset, req.Modulator)
	if err != nil {
		return ModulatorSpectrum{}, err
	}
	wavelengths, err := spectrumGrid(req.From, req.To, req.Points)
	if err != nil {
		return ModulatorSpectrum{}, err
	}

	current := req.Current
	if len(req.Through) > 0 || len(req.Drop) > 0 {
		detector := req.Photodiode.WithDefaults()
		if err := detector.Validate(); err != nil {
			return ModulatorSpectrum{}, err
		}
		current = detector.Current(req.Through, req.Drop)
	}
	return ModulatorSpectrum{Current: current, Points: mod.Spectrum(current, wavelengths)}, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func resolveRing(preset string, params photonics.RingParams) (photonics.RingParams, error) {
	if params != (photonics.RingParams{}) {
		params = params.WithDefaults()
		if err := params.Validate(); err != nil {
			return photonics.RingParams{}, err
		}
		return params, nil
	}
	return photonics.GetPreset(preset)
}

func resolveModulator(preset string, mod photonics.Modulator) (photonics.Modulator, error) {
	if mod.Ring == (photonics.RingParams{}) {
		ring, err := photonics.GetPreset(preset)
		if err != nil {
			return photonics.Modulator{}, err
		}
		mod.Ring = ring
	}
	mod = mod.WithDefaults()
	if err := mod.Validate(); err != nil {
		return photonics.Modulator{}, err
	}
	return mod, nil
}

func spectrumGrid(from, to float64, points int) ([]float64, error) {
	if from == 0 && to == 0 {
		from, to = defaultSpectrumFrom, defaultSpectrumTo
	}
	if points == 0 {
		points = defaultSpectrumPoints
	}
	if !(from > 0) || !(to >= from) {
		return nil, fmt.Errorf("%w: wavelength range [%g,%g]", photonics.ErrInvalidRange, from, to)
	}
	return photonics.Linspace(from, to, points)
}
