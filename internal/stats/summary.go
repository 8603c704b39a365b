package stats

import (
	"math"

	"siphotonet/internal/model"
)

// ChannelSummary aggregates one waveguide channel's power over a run.
type ChannelSummary struct {
	Channel    int     `json:"channel"`
	Wavelength float64 `json:"wavelength"`
	Samples    int     `json:"samples"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Final      float64 `json:"final"`
}

// SummarizeTrace computes per-channel power statistics. Channels are taken
// from wavelengths when given, otherwise from the widest step.
func SummarizeTrace(wavelengths []float64, trace []model.StepRecord) []ChannelSummary {
	channels := len(wavelengths)
	for _, step := range trace {
		if len(step.Powers) > channels {
			channels = len(step.Powers)
		}
	}

	summaries := make([]ChannelSummary, channels)
	for ch := range summaries {
		values := make([]float64, 0, len(trace))
		for _, step := range trace {
			if ch < len(step.Powers) {
				values = append(values, step.Powers[ch])
			}
		}
		mean, std, max, min := seriesStats(values)
		summaries[ch] = ChannelSummary{
			Channel: ch,
			Samples: len(values),
			Mean:    mean,
			Std:     std,
			Min:     min,
			Max:     max,
		}
		if ch < len(wavelengths) {
			summaries[ch].Wavelength = wavelengths[ch]
		}
		if len(values) > 0 {
			summaries[ch].Final = values[len(values)-1]
		}
	}
	return summaries
}

func seriesStats(values []float64) (mean, std, max, min float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	min = values[0]
	max = values[0]
	total := 0.0
	for _, value := range values {
		total += value
		if value > max {
			max = value
		}
		if value < min {
			min = value
		}
	}
	mean = total / float64(len(values))
	sumSq := 0.0
	for _, value := range values {
		diff := mean - value
		sumSq += diff * diff
	}
	std = math.Sqrt(sumSq / float64(len(values)))
	return mean, std, max, min
}
