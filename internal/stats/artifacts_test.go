package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"siphotonet/internal/model"
	"siphotonet/internal/photonics"
)

func testArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			SpecID:         "spec-1",
			Neurons:        2,
			Channels:       3,
			External:       true,
			StepsRequested: 2,
			Workers:        1,
		},
		Wavelengths: []float64{1550e-9, 1551e-9, 1552e-9},
		Trace: []model.StepRecord{
			{Step: 1, Powers: []float64{0.5, 0.6, 0.1}, Transmissions: []float64{0.5, 0.6}, Currents: []float64{0.01, -0.02}},
			{Step: 2, Powers: []float64{0.7, 0.4, 0.3}, Transmissions: []float64{0.7, 0.4}, Currents: []float64{0.03, 0.04}},
		},
		Warnings: []photonics.DomainWarning{{Source: "neuron 0", Quantity: "drop", Wavelength: 1550e-9, Value: 1.01}},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{"config.json", "trace.json", "summary.json", "warnings.json", "waveguide_series.csv", "modulator_series.csv"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.SpecID != "spec-1" || cfg.Channels != 3 || !cfg.External {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	trace, ok, err := ReadTrace(baseDir, "run-123")
	if err != nil || !ok || len(trace) != 2 || trace[1].Powers[2] != 0.3 {
		t.Fatalf("read trace: ok=%t err=%v trace=%+v", ok, err, trace)
	}
}

func TestWriteRunArtifactsWithoutWarnings(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := testArtifacts("run-quiet")
	artifacts.Warnings = nil

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "warnings.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no warnings file, got err=%v", err)
	}
	if _, err := ExportRunArtifacts(baseDir, "run-quiet", t.TempDir()); err != nil {
		t.Fatalf("export without warnings: %v", err)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "", t.TempDir()); err == nil {
		t.Fatal("expected export run id error")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestReadPowerSeries(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, testArtifacts("run-series")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	series, ok, err := ReadPowerSeries(baseDir, "run-series")
	if err != nil {
		t.Fatalf("read power series: %v", err)
	}
	if !ok {
		t.Fatal("expected power series")
	}
	if len(series) != 6 {
		t.Fatalf("expected one row per step and channel, got=%d", len(series))
	}
	last := series[5]
	if last.Step != 2 || last.Channel != 2 || last.Power != 0.3 || last.Wavelength != 1552e-9 {
		t.Fatalf("unexpected last sample: %+v", last)
	}

	if _, ok, err := ReadPowerSeries(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing series, got ok=%t err=%v", ok, err)
	}
}

func TestReadPowerSeriesRejectsBadHeader(t *testing.T) {
	baseDir := t.TempDir()
	runDir := filepath.Join(baseDir, "run-bad")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "waveguide_series.csv"), []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := ReadPowerSeries(baseDir, "run-bad"); err == nil {
		t.Fatal("expected header error")
	}
}

func TestModulatorSeriesContent(t *testing.T) {
	baseDir := t.TempDir()
	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-mod"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(runDir, "modulator_series.csv"))
	if err != nil {
		t.Fatalf("read modulator series: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 || lines[0] != "step,neuron,transmission,current" {
		t.Fatalf("unexpected modulator series:\n%s", data)
	}
	if lines[2] != "1,1,0.6,-0.02" {
		t.Fatalf("unexpected row: %q", lines[2])
	}
}

func TestRunIndexAppendAndList(t *testing.T) {
	baseDir := t.TempDir()

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list empty index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v", entries)
	}

	for _, entry := range []RunIndexEntry{
		{RunID: "run-a", Steps: 1, CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "run-b", Steps: 2, CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "run-c", Steps: 3, CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "run-a", Steps: 9, CreatedAtUTC: "2026-01-01T00:00:00Z"},
	} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	got := make([]string, len(entries))
	for i, entry := range entries {
		got[i] = entry.RunID
	}
	want := []string{"run-b", "run-c", "run-a"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected index order: got=%v want=%v", got, want)
	}
	if entries[2].Steps != 9 {
		t.Fatalf("expected replaced entry, got=%+v", entries[2])
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestRunIndexEqualTimestampsListLatestAppendFirst(t *testing.T) {
	baseDir := t.TempDir()
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: "2026-03-01T00:00:00.000000000Z"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	got := make([]string, len(entries))
	for i, entry := range entries {
		got[i] = entry.RunID
	}
	want := []string{"run-3", "run-2", "run-1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected index order: got=%v want=%v", got, want)
	}

	raw, err := readRunIndex(baseDir)
	if err != nil {
		t.Fatalf("read raw index: %v", err)
	}
	if raw[0].RunID != "run-1" || raw[2].RunID != "run-3" {
		t.Fatalf("expected append order on disk, got=%+v", raw)
	}
}
