package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"siphotonet/internal/model"
	"siphotonet/internal/photonics"
)

const runIndexFile = "run_index.json"

const (
	configFile          = "config.json"
	traceFile           = "trace.json"
	summaryFile         = "summary.json"
	warningsFile        = "warnings.json"
	waveguideSeriesFile = "waveguide_series.csv"
	modulatorSeriesFile = "modulator_series.csv"
)

type RunConfig struct {
	RunID          string            `json:"run_id"`
	SpecID         string            `json:"spec_id"`
	Neurons        int               `json:"neurons"`
	Channels       int               `json:"channels"`
	External       bool              `json:"external"`
	StepsRequested int               `json:"steps_requested"`
	Workers        int               `json:"workers"`
	Spec           model.NetworkSpec `json:"spec"`
}

type RunArtifacts struct {
	Config      RunConfig                 `json:"config"`
	Wavelengths []float64                 `json:"wavelengths"`
	Trace       []model.StepRecord        `json:"trace"`
	Warnings    []photonics.DomainWarning `json:"warnings,omitempty"`
}

type RunIndexEntry struct {
	RunID        string `json:"run_id"`
	SpecID       string `json:"spec_id"`
	Neurons      int    `json:"neurons"`
	Channels     int    `json:"channels"`
	Steps        int    `json:"steps"`
	Done         bool   `json:"done"`
	WarningCount int    `json:"warning_count"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// PowerSample is one row of the waveguide power series.
type PowerSample struct {
	Step       int     `json:"step"`
	Channel    int     `json:"channel"`
	Wavelength float64 `json:"wavelength"`
	Power      float64 `json:"power"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	trace := artifacts.Trace
	if trace == nil {
		trace = []model.StepRecord{}
	}
	if err := writeJSON(filepath.Join(runDir, traceFile), trace); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), SummarizeTrace(artifacts.Wavelengths, artifacts.Trace)); err != nil {
		return "", err
	}
	if len(artifacts.Warnings) > 0 {
		if err := writeJSON(filepath.Join(runDir, warningsFile), artifacts.Warnings); err != nil {
			return "", err
		}
	}
	if err := writeWaveguideSeries(filepath.Join(runDir, waveguideSeriesFile), artifacts.Wavelengths, artifacts.Trace); err != nil {
		return "", err
	}
	if err := writeModulatorSeries(filepath.Join(runDir, modulatorSeriesFile), artifacts.Trace); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// readRunIndex returns the index in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRunIndex returns the index newest first. Entries with equal timestamps
// are ordered by most recent append.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{configFile, traceFile, summaryFile, waveguideSeriesFile, modulatorSeriesFile}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	warningsPath := filepath.Join(src, warningsFile)
	if _, err := os.Stat(warningsPath); err == nil {
		if err := copyFile(warningsPath, filepath.Join(dst, warningsFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func ReadTrace(baseDir, runID string) ([]model.StepRecord, bool, error) {
	var trace []model.StepRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, traceFile), &trace)
	if err != nil || !ok {
		return nil, ok, err
	}
	return trace, true, nil
}

func ReadSummary(baseDir, runID string) ([]ChannelSummary, bool, error) {
	var summary []ChannelSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	if err != nil || !ok {
		return nil, ok, err
	}
	return summary, true, nil
}

func writeWaveguideSeries(path string, wavelengths []float64, trace []model.StepRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "channel", "wavelength", "power"}); err != nil {
		return err
	}
	for _, step := range trace {
		for ch, power := range step.Powers {
			wavelength := 0.0
			if ch < len(wavelengths) {
				wavelength = wavelengths[ch]
			}
			if err := writer.Write([]string{
				strconv.Itoa(step.Step),
				strconv.Itoa(ch),
				strconv.FormatFloat(wavelength, 'g', -1, 64),
				strconv.FormatFloat(power, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeModulatorSeries(path string, trace []model.StepRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"step", "neuron", "transmission", "current"}); err != nil {
		return err
	}
	for _, step := range trace {
		for i, transmission := range step.Transmissions {
			current := 0.0
			if i < len(step.Currents) {
				current = step.Currents[i]
			}
			if err := writer.Write([]string{
				strconv.Itoa(step.Step),
				strconv.Itoa(i),
				strconv.FormatFloat(transmission, 'f', -1, 64),
				strconv.FormatFloat(current, 'g', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadPowerSeries(baseDir, runID string) ([]PowerSample, bool, error) {
	path := filepath.Join(baseDir, runID, waveguideSeriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []PowerSample{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 4 || strings.TrimSpace(header[3]) != "power" {
		return nil, false, fmt.Errorf("waveguide series header must be step,channel,wavelength,power")
	}

	series := make([]PowerSample, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		sample, err := parsePowerSample(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, sample)
	}
	return series, true, nil
}

func parsePowerSample(record []string) (PowerSample, error) {
	if len(record) < 4 {
		return PowerSample{}, fmt.Errorf("waveguide series row must have 4 columns")
	}
	step, err := strconv.Atoi(record[0])
	if err != nil {
		return PowerSample{}, err
	}
	channel, err := strconv.Atoi(record[1])
	if err != nil {
		return PowerSample{}, err
	}
	wavelength, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return PowerSample{}, err
	}
	power, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return PowerSample{}, err
	}
	return PowerSample{Step: step, Channel: channel, Wavelength: wavelength, Power: power}, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
