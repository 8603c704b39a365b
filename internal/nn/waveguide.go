package nn

import "golang.org/x/exp/slices"

// Channel is one wavelength slot on the shared bus.
type Channel struct {
	Wavelength float64 `json:"wavelength"`
	Power      float64 `json:"power"`
}

// WaveguideState is the ordered set of channels carried by the bus. Values
// handed out by Network are copies; mutating them does not affect the network.
type WaveguideState struct {
	Channels []Channel `json:"channels"`
}

func (s WaveguideState) Len() int {
	return len(s.Channels)
}

func (s WaveguideState) Clone() WaveguideState {
	return WaveguideState{Channels: slices.Clone(s.Channels)}
}

func (s WaveguideState) Wavelengths() []float64 {
	out := make([]float64, len(s.Channels))
	for i, ch := range s.Channels {
		out[i] = ch.Wavelength
	}
	return out
}

func (s WaveguideState) Powers() []float64 {
	out := make([]float64, len(s.Channels))
	for i, ch := range s.Channels {
		out[i] = ch.Power
	}
	return out
}

// split models the passive equal-power tap of the bus into each of n neurons.
func (s WaveguideState) split(n int) WaveguideState {
	out := s.Clone()
	for i := range out.Channels {
		out.Channels[i].Power /= float64(n)
	}
	return out
}
