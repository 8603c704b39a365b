package siphotonet

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"siphotonet/internal/model"
	"siphotonet/internal/nn"
	"siphotonet/internal/photonics"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func TestClientSimulateRunsTraceAndExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Simulate(ctx, SimulateRequest{
		Spec: model.NetworkSpec{
			Weights:         [][]float64{{5, -1}, {-1, 5}},
			ExternalWeights: []float64{2, 2},
			ExternalInputs:  []float64{0.1, 0.2, 0.3},
			Powers:          []float64{1},
		},
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if summary.RunID == "" || summary.SpecID == "" {
		t.Fatalf("expected run and spec ids: %+v", summary)
	}
	if summary.Steps != 3 || !summary.Done {
		t.Fatalf("expected run to end with the external input: %+v", summary)
	}
	if len(summary.FinalPowers) != 3 || summary.FinalPowers[2] != 0.3 {
		t.Fatalf("unexpected final powers: %v", summary.FinalPowers)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "trace.json")); err != nil {
		t.Fatalf("expected trace artifact: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Channels != 3 || !runs[0].Done {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	trace, err := client.Trace(ctx, TraceRequest{Latest: true})
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(trace) != 3 || trace[0].Powers[2] != 0.1 || trace[2].Step != 3 {
		t.Fatalf("unexpected trace: %+v", trace)
	}
	limited, err := client.Trace(ctx, TraceRequest{RunID: summary.RunID, Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited trace: err=%v len=%d", err, len(limited))
	}

	channels, err := client.Summary(ctx, TraceRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(channels) != 3 || math.Abs(channels[2].Mean-0.2) > 1e-12 || channels[2].Final != 0.3 {
		t.Fatalf("unexpected summary: %+v", channels)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("unexpected exported run: %+v", exported)
	}
	if filepath.Dir(exported.Directory) != filepath.Join(base, "exports") {
		t.Fatalf("unexpected export directory: %s", exported.Directory)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "waveguide_series.csv")); err != nil {
		t.Fatalf("expected exported series: %v", err)
	}
}

func TestClientSimulateMatchesNetwork(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	cfg := nn.Config{
		Weights: [][]float64{{5, -1}, {-1, 5}},
		Powers:  []float64{0.5, 0.8},
	}
	net, err := nn.NewNetwork(cfg)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	if _, err := net.Run(ctx, 4); err != nil {
		t.Fatalf("run network: %v", err)
	}

	summary, err := client.Simulate(ctx, SimulateRequest{
		Spec:    model.NetworkSpec{Weights: cfg.Weights, Powers: cfg.Powers},
		Steps:   4,
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if summary.Done || summary.Steps != 4 {
		t.Fatalf("network without external input must not finish: %+v", summary)
	}
	for i, want := range net.Powers() {
		if summary.FinalPowers[i] != want {
			t.Fatalf("channel %d: got=%g want=%g", i, summary.FinalPowers[i], want)
		}
	}
}

func TestClientSimulateStoredSpecAgain(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.Simulate(ctx, SimulateRequest{
		Spec:  model.NetworkSpec{ID: "spec-fixed", Weights: [][]float64{{1, 2}, {3, 4}}, RingPreset: photonics.PresetLossy},
		Steps: 2,
	})
	if err != nil {
		t.Fatalf("first simulate: %v", err)
	}
	if first.SpecID != "spec-fixed" {
		t.Fatalf("expected caller spec id, got=%s", first.SpecID)
	}

	second, err := client.Simulate(ctx, SimulateRequest{SpecID: "spec-fixed", Steps: 2})
	if err != nil {
		t.Fatalf("second simulate: %v", err)
	}
	if second.RunID == first.RunID {
		t.Fatal("expected a fresh run id")
	}
	for i := range first.FinalPowers {
		if first.FinalPowers[i] != second.FinalPowers[i] {
			t.Fatalf("replay diverged at %d: %g vs %g", i, first.FinalPowers[i], second.FinalPowers[i])
		}
	}

	if _, err := client.Simulate(ctx, SimulateRequest{SpecID: "missing", Steps: 1}); !errors.Is(err, ErrSpecNotFound) {
		t.Fatalf("expected missing spec error, got: %v", err)
	}
}

func TestClientRunsNewestFirst(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	clock := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	client.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	var ids []string
	for i := 0; i < 3; i++ {
		summary, err := client.Simulate(ctx, SimulateRequest{Spec: model.NetworkSpec{Weights: [][]float64{{1}}}, Steps: 1})
		if err != nil {
			t.Fatalf("simulate %d: %v", i, err)
		}
		ids = append(ids, summary.RunID)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 2})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != ids[2] || runs[1].RunID != ids[1] {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}

func TestClientSimulateErrors(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Simulate(ctx, SimulateRequest{}); !errors.Is(err, nn.ErrConfiguration) {
		t.Fatalf("expected configuration error, got: %v", err)
	}
	if _, err := client.Simulate(ctx, SimulateRequest{Spec: model.NetworkSpec{Weights: [][]float64{{1, 2}}}}); !errors.Is(err, nn.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing external input, got: %v", err)
	}
	if _, err := client.Simulate(ctx, SimulateRequest{Spec: model.NetworkSpec{Weights: [][]float64{{1}}}}); !errors.Is(err, nn.ErrUnboundedRun) {
		t.Fatalf("expected unbounded run error, got: %v", err)
	}
	if _, err := client.Simulate(ctx, SimulateRequest{Spec: model.NetworkSpec{Weights: [][]float64{{1}}, RingPreset: "missing"}, Steps: 1}); !errors.Is(err, nn.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown preset, got: %v", err)
	}
	both := SimulateRequest{Spec: model.NetworkSpec{Weights: [][]float64{{1}}}, SpecID: "spec-other", Steps: 1}
	if _, err := client.Simulate(ctx, both); !errors.Is(err, nn.ErrConfiguration) {
		t.Fatalf("expected configuration error for weights with spec id, got: %v", err)
	}
	if runs, err := client.Runs(ctx, RunsRequest{}); err != nil || len(runs) != 0 {
		t.Fatalf("rejected simulate must not record a run: runs=%v err=%v", runs, err)
	}
	if _, err := client.Trace(ctx, TraceRequest{RunID: "missing"}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected run not found, got: %v", err)
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export selector error")
	}
	if _, err := client.Trace(ctx, TraceRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected selector conflict error")
	}
}

func TestClientSimulateReportsWarnings(t *testing.T) {
	client, _ := newTestClient(t)

	var seen int
	summary, err := client.Simulate(context.Background(), SimulateRequest{
		Spec: model.NetworkSpec{
			Weights: [][]float64{{0}},
			Powers:  []float64{1},
			Ring:    photonics.RingParams{A: 1, R1: 0.9, R2: 0.9},
		},
		Steps:     2,
		OnWarning: func(photonics.DomainWarning) { seen++ },
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if seen != len(summary.Warnings) {
		t.Fatalf("callback saw %d warnings, summary has %d", seen, len(summary.Warnings))
	}
}

func TestClientWeightBankSpectrum(t *testing.T) {
	client, _ := newTestClient(t)

	spectrum, err := client.WeightBankSpectrum(context.Background(), SpectrumRequest{
		Weights: []float64{0, 4},
		From:    1549e-9,
		To:      1551e-9,
		Points:  21,
	})
	if err != nil {
		t.Fatalf("spectrum: %v", err)
	}
	if len(spectrum) != 2 || len(spectrum[0]) != 21 {
		t.Fatalf("unexpected spectrum shape: %d", len(spectrum))
	}
	ring := photonics.DefaultRingParams()
	want := ring.Transmission(4, 1550e-9)
	got := spectrum[1][10]
	if math.Abs(got.Through-want.Through) > 1e-9 || math.Abs(got.Drop-want.Drop) > 1e-9 {
		t.Fatalf("unexpected mid-grid response: got=%+v want=%+v", got, want)
	}

	if _, err := client.WeightBankSpectrum(context.Background(), SpectrumRequest{Weights: []float64{1}, From: 1551e-9, To: 1550e-9}); !errors.Is(err, photonics.ErrInvalidRange) {
		t.Fatalf("expected range error, got: %v", err)
	}
}

func TestClientModulatorSweep(t *testing.T) {
	client, _ := newTestClient(t)

	points, err := client.ModulatorSweep(context.Background(), ModulatorSweepRequest{})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(points) != defaultSweepPoints {
		t.Fatalf("unexpected sweep length: %d", len(points))
	}
	if points[0].Current != 0 || points[len(points)-1].Current != defaultSweepMaxAmp {
		t.Fatalf("unexpected sweep range: %g..%g", points[0].Current, points[len(points)-1].Current)
	}
	mod := photonics.DefaultModulator()
	if want := mod.Transmission(0, nn.DefaultBaseWavelength); points[0].Transmission != want {
		t.Fatalf("unexpected zero-current transmission: got=%g want=%g", points[0].Transmission, want)
	}
}

func TestClientModulatorSpectrumFromPhotodiode(t *testing.T) {
	client, _ := newTestClient(t)

	through := []float64{0.1, 0.2}
	drop := []float64{0.4, 0.3}
	spec, err := client.ModulatorSpectrum(context.Background(), ModulatorSpectrumRequest{
		Modulator: photonics.Modulator{Bias: 1e-3, Heater: 2},
		Through:   through,
		Drop:      drop,
		From:      1549e-9,
		To:        1551e-9,
		Points:    5,
	})
	if err != nil {
		t.Fatalf("modulator spectrum: %v", err)
	}
	wantCurrent := photonics.DefaultPhotodiode().Current(through, drop)
	if spec.Current != wantCurrent || !(spec.Current > 0) {
		t.Fatalf("unexpected current: got=%g want=%g", spec.Current, wantCurrent)
	}
	if len(spec.Points) != 5 {
		t.Fatalf("unexpected point count: %d", len(spec.Points))
	}
	for _, p := range spec.Points {
		if p.Transmission < 0 || p.Transmission > 1+photonics.Tolerance {
			t.Fatalf("transmission out of range: %+v", p)
		}
	}
}
