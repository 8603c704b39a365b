package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"siphotonet/internal/nn"
	"siphotonet/internal/photonics"
	"siphotonet/internal/storage"
	sipapi "siphotonet/pkg/siphotonet"
)

const (
	runsDir       = "runs"
	exportsDir    = "exports"
	defaultDBPath = "siphotonet.db"
)

var warnLog = log.New(os.Stderr, "siphotonetctl: ", 0)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "trace":
		return runTrace(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "spectrum":
		return runSpectrum(ctx, args[1:])
	case "modulator":
		return runModulator(ctx, args[1:])
	case "presets":
		return runPresets(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, dbPath string) (*sipapi.Client, error) {
	return sipapi.New(sipapi.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional JSON simulation config")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	format := fs.String("format", "auto", "output format: auto|text|json")
	specID := fs.String("spec-id", "", "stored network spec to run again")
	steps := fs.Int("steps", 0, "steps to run; 0 runs until the external input is exhausted")
	workers := fs.Int("workers", 1, "neurons evaluated in parallel per step")
	preset := fs.String("preset", photonics.PresetDefault, "ring parameter preset")
	heater := fs.Float64("heater", 0, "modulator heater weight")
	weights := &matrixValue{}
	externalWeights := &floatList{}
	wavelengths := &floatList{unit: "m"}
	powers := &floatList{unit: "W"}
	inputs := &floatList{unit: "W"}
	baseWavelength := &siValue{unit: "m", value: nn.DefaultBaseWavelength}
	spacing := &siValue{unit: "m", value: nn.DefaultSpacing}
	externalWavelength := &siValue{unit: "m"}
	bias := &siValue{unit: "A"}
	fs.Var(weights, "weights", "weight matrix, rows separated by ';' and columns by ','")
	fs.Var(externalWeights, "external-weights", "per-neuron weights of the external channel")
	fs.Var(wavelengths, "wavelengths", "channel wavelengths, e.g. 1550nm,1551nm")
	fs.Var(powers, "powers", "initial channel powers; a single value broadcasts")
	fs.Var(inputs, "inputs", "external input power sequence")
	fs.Var(baseWavelength, "base-wavelength", "first wavelength of the generated grid")
	fs.Var(spacing, "spacing", "spacing of the generated wavelength grid")
	fs.Var(externalWavelength, "external-wavelength", "wavelength of the external channel")
	fs.Var(bias, "bias", "modulator bias current")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	var req sipapi.SimulateRequest
	if *configPath != "" {
		req, err = loadSimulateRequestFromConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = true
		})
		overrideFromFlags(&req, set, map[string]any{
			"spec-id":             *specID,
			"steps":               *steps,
			"workers":             *workers,
			"weights":             *weights,
			"external-weights":    *externalWeights,
			"wavelengths":         *wavelengths,
			"powers":              *powers,
			"inputs":              *inputs,
			"base-wavelength":     *baseWavelength,
			"spacing":             *spacing,
			"external-wavelength": *externalWavelength,
			"preset":              *preset,
			"bias":                *bias,
			"heater":              *heater,
		})
	} else {
		req = sipapi.SimulateRequest{
			SpecID:  *specID,
			Steps:   *steps,
			Workers: *workers,
		}
		req.Spec.Weights = weights.rows
		req.Spec.ExternalWeights = externalWeights.values
		req.Spec.Wavelengths = wavelengths.values
		req.Spec.Powers = powers.values
		req.Spec.ExternalInputs = inputs.values
		req.Spec.BaseWavelength = baseWavelength.value
		req.Spec.Spacing = spacing.value
		req.Spec.ExternalWavelength = externalWavelength.value
		req.Spec.RingPreset = *preset
		req.Spec.Modulator.Bias = bias.value
		req.Spec.Modulator.Heater = *heater
	}
	req.OnWarning = func(w photonics.DomainWarning) {
		warnLog.Printf("warning: %v", w)
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Simulate(ctx, req)
	if err != nil {
		return err
	}

	if out == "json" {
		type channel struct {
			Index      int     `json:"index"`
			Wavelength float64 `json:"wavelength"`
			Power      float64 `json:"power"`
		}
		payload := struct {
			RunID        string    `json:"run_id"`
			SpecID       string    `json:"spec_id"`
			ArtifactsDir string    `json:"artifacts_dir"`
			Steps        int       `json:"steps"`
			Done         bool      `json:"done"`
			WarningCount int       `json:"warning_count"`
			Channels     []channel `json:"channels"`
		}{
			RunID:        summary.RunID,
			SpecID:       summary.SpecID,
			ArtifactsDir: summary.ArtifactsDir,
			Steps:        summary.Steps,
			Done:         summary.Done,
			WarningCount: len(summary.Warnings),
		}
		for i, p := range summary.FinalPowers {
			payload.Channels = append(payload.Channels, channel{Index: i, Wavelength: summary.Wavelengths[i], Power: p})
		}
		return writeJSON(payload)
	}

	fmt.Printf("run_id=%s spec_id=%s steps=%d done=%t warnings=%d artifacts=%s\n",
		summary.RunID, summary.SpecID, summary.Steps, summary.Done, len(summary.Warnings), summary.ArtifactsDir)
	for i, p := range summary.FinalPowers {
		fmt.Printf("channel=%d wavelength=%s power=%s\n", i, formatQuantity(summary.Wavelengths[i], "m"), formatQuantity(p, "W"))
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	format := fs.String("format", "auto", "output format: auto|text|json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, sipapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if out == "json" {
		type runsItem struct {
			RunID        string `json:"run_id"`
			SpecID       string `json:"spec_id"`
			CreatedAtUTC string `json:"created_at_utc"`
			Neurons      int    `json:"neurons"`
			Channels     int    `json:"channels"`
			Steps        int    `json:"steps"`
			Done         bool   `json:"done"`
			WarningCount int    `json:"warning_count"`
		}
		payload := make([]runsItem, 0, len(items))
		for _, item := range items {
			payload = append(payload, runsItem(item))
		}
		return writeJSON(payload)
	}

	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s neurons=%d channels=%d steps=%d done=%t warnings=%d\n",
			item.RunID, item.CreatedAtUTC, item.Neurons, item.Channels, item.Steps, item.Done, item.WarningCount)
	}
	return nil
}

func runTrace(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	limit := fs.Int("limit", 0, "max steps to show; 0 shows all")
	summaryOnly := fs.Bool("summary", false, "show per-channel power statistics instead of steps")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	format := fs.String("format", "auto", "output format: auto|text|json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := sipapi.TraceRequest{RunID: *runID, Latest: *latest, Limit: *limit}
	if *summaryOnly {
		channels, err := client.Summary(ctx, req)
		if err != nil {
			return err
		}
		if out == "json" {
			return writeJSON(channels)
		}
		for _, ch := range channels {
			fmt.Printf("channel=%d wavelength=%s mean=%s std=%s min=%s max=%s final=%s\n",
				ch.Channel, formatQuantity(ch.Wavelength, "m"),
				formatQuantity(ch.Mean, "W"), formatQuantity(ch.Std, "W"),
				formatQuantity(ch.Min, "W"), formatQuantity(ch.Max, "W"), formatQuantity(ch.Final, "W"))
		}
		return nil
	}

	trace, err := client.Trace(ctx, req)
	if err != nil {
		return err
	}
	if out == "json" {
		return writeJSON(trace)
	}
	for _, step := range trace {
		powers := make([]string, len(step.Powers))
		for i, p := range step.Powers {
			powers[i] = formatQuantity(p, "W")
		}
		currents := make([]string, len(step.Currents))
		for i, c := range step.Currents {
			currents[i] = formatQuantity(c, "A")
		}
		fmt.Printf("step=%d powers=[%s] currents=[%s]\n", step.Step, strings.Join(powers, " "), strings.Join(currents, " "))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, sipapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runSpectrum(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("spectrum", flag.ContinueOnError)
	preset := fs.String("preset", photonics.PresetDefault, "ring parameter preset")
	points := fs.Int("points", 201, "wavelength samples")
	format := fs.String("format", "auto", "output format: auto|text|json")
	weights := &floatList{}
	from := &siValue{unit: "m", value: 1549e-9}
	to := &siValue{unit: "m", value: 1553e-9}
	fs.Var(weights, "weights", "weights of the rings in the bank")
	fs.Var(from, "from", "first wavelength")
	fs.Var(to, "to", "last wavelength")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	spectrum, err := client.WeightBankSpectrum(ctx, sipapi.SpectrumRequest{
		Weights:    weights.values,
		RingPreset: *preset,
		From:       from.value,
		To:         to.value,
		Points:     *points,
	})
	if err != nil {
		return err
	}
	if out == "json" {
		return writeJSON(spectrum)
	}
	for j, row := range spectrum {
		for _, r := range row {
			fmt.Printf("ring=%d weight=%g wavelength=%s through=%.6f drop=%.6f\n", j, weights.values[j], formatQuantity(r.Wavelength, "m"), r.Through, r.Drop)
		}
	}
	return nil
}

func runModulator(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("modulator requires a subcommand: sweep|spectrum")
	}
	switch args[0] {
	case "sweep":
		return runModulatorSweep(ctx, args[1:])
	case "spectrum":
		return runModulatorSpectrum(ctx, args[1:])
	default:
		return fmt.Errorf("unsupported modulator subcommand: %s", args[0])
	}
}

func runModulatorSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("modulator sweep", flag.ContinueOnError)
	preset := fs.String("preset", photonics.PresetDefault, "ring parameter preset")
	points := fs.Int("points", 101, "current samples")
	heater := fs.Float64("heater", 0, "modulator heater weight")
	format := fs.String("format", "auto", "output format: auto|text|json")
	wavelength := &siValue{unit: "m", value: nn.DefaultBaseWavelength}
	from := &siValue{unit: "A"}
	to := &siValue{unit: "A", value: 5e-3}
	bias := &siValue{unit: "A"}
	fs.Var(wavelength, "wavelength", "probe wavelength")
	fs.Var(from, "from", "first photocurrent")
	fs.Var(to, "to", "last photocurrent")
	fs.Var(bias, "bias", "modulator bias current")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sweep, err := client.ModulatorSweep(ctx, sipapi.ModulatorSweepRequest{
		Modulator:  photonics.Modulator{Bias: bias.value, Heater: *heater},
		RingPreset: *preset,
		Wavelength: wavelength.value,
		From:       from.value,
		To:         to.value,
		Points:     *points,
	})
	if err != nil {
		return err
	}
	if out == "json" {
		return writeJSON(sweep)
	}
	for _, p := range sweep {
		fmt.Printf("current=%s transmission=%.6f\n", formatQuantity(p.Current, "A"), p.Transmission)
	}
	return nil
}

func runModulatorSpectrum(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("modulator spectrum", flag.ContinueOnError)
	preset := fs.String("preset", photonics.PresetDefault, "ring parameter preset")
	points := fs.Int("points", 1001, "wavelength samples")
	heater := fs.Float64("heater", 0, "modulator heater weight")
	format := fs.String("format", "auto", "output format: auto|text|json")
	through := &floatList{unit: "W"}
	drop := &floatList{unit: "W"}
	current := &siValue{unit: "A"}
	bias := &siValue{unit: "A"}
	from := &siValue{unit: "m", value: 1545e-9}
	to := &siValue{unit: "m", value: 1555e-9}
	fs.Var(through, "through", "through-port powers seen by the photodiode")
	fs.Var(drop, "drop", "drop-port powers seen by the photodiode")
	fs.Var(current, "current", "photocurrent, used when no port powers are given")
	fs.Var(bias, "bias", "modulator bias current")
	fs.Var(from, "from", "first wavelength")
	fs.Var(to, "to", "last wavelength")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	spectrum, err := client.ModulatorSpectrum(ctx, sipapi.ModulatorSpectrumRequest{
		Modulator:  photonics.Modulator{Bias: bias.value, Heater: *heater},
		RingPreset: *preset,
		Through:    through.values,
		Drop:       drop.values,
		Current:    current.value,
		From:       from.value,
		To:         to.value,
		Points:     *points,
	})
	if err != nil {
		return err
	}
	if out == "json" {
		return writeJSON(spectrum)
	}
	fmt.Printf("current=%s\n", formatQuantity(spectrum.Current, "A"))
	for _, p := range spectrum.Points {
		fmt.Printf("wavelength=%s transmission=%.6f\n", formatQuantity(p.Wavelength, "m"), p.Transmission)
	}
	return nil
}

func runPresets(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("presets", flag.ContinueOnError)
	format := fs.String("format", "auto", "output format: auto|text|json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := resolveFormat(*format)
	if err != nil {
		return err
	}

	names := photonics.ListPresets()
	presets := make(map[string]photonics.RingParams, len(names))
	for _, name := range names {
		params, err := photonics.GetPreset(name)
		if err != nil {
			return err
		}
		presets[name] = params
	}
	if out == "json" {
		return writeJSON(presets)
	}
	for _, name := range names {
		p := presets[name]
		fmt.Printf("preset=%s radius=%s a=%g r1=%g r2=%g n0=%.4f heater_coeff=%g\n",
			name, formatQuantity(p.Radius, "m"), p.A, p.R1, p.R2, p.N0, p.HeaterCoeff)
	}
	return nil
}

// resolveFormat maps auto to text on a terminal and to json otherwise.
func resolveFormat(format string) (string, error) {
	switch format {
	case "text", "json":
		return format, nil
	case "", "auto":
		fd := os.Stdout.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return "text", nil
		}
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: siphotonetctl <init|simulate|runs|trace|export|spectrum|modulator|presets> [flags]", msg)
}
