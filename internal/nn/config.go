package nn

import (
	"fmt"
	"math"

	"siphotonet/internal/photonics"
)

const (
	DefaultBaseWavelength = 1550e-9
	DefaultSpacing        = 1e-9
	DefaultPower          = 1.0
)

// Config describes a network at construction time.
//
// Weights has one row per neuron. A row covers every bus channel: N entries,
// or N+1 when an external channel is present. The external column may instead
// be supplied through ExternalWeights, which is appended to each row.
//
// Wavelengths is the canonical per-channel list (N, or N+1 with an external
// channel). When empty, neuron channels are generated from BaseWavelength at
// Spacing intervals and the external channel uses ExternalWavelength, or the
// next grid slot when that is zero.
//
// Powers holds initial bus powers: one value broadcast to every neuron
// channel, N values, or N+1 values including the external channel. Each
// neuron's initial power is also its nominal output scale. The external
// channel starts dark unless given.
type Config struct {
	Weights            [][]float64
	ExternalWeights    []float64
	Wavelengths        []float64
	BaseWavelength     float64
	Spacing            float64
	Powers             []float64
	ExternalWavelength float64
	ExternalInputs     []float64

	Ring       photonics.RingParams
	Modulator  photonics.Modulator
	Photodiode photonics.Photodiode

	// Workers > 1 evaluates the neurons of a step concurrently.
	Workers int
	// OnWarning receives every DomainWarning raised while stepping.
	OnWarning func(photonics.DomainWarning)
}

type layout struct {
	neurons     int
	external    bool
	rows        [][]float64
	wavelengths []float64
	powers      []float64
}

func (c Config) hasExternal() bool {
	return len(c.ExternalInputs) > 0 || c.ExternalWeights != nil
}

// resolve checks every length invariant and produces the concrete channel
// layout. It runs before any neuron is created.
func (c Config) resolve() (layout, error) {
	n := len(c.Weights)
	if n == 0 {
		return layout{}, fmt.Errorf("%w: weight matrix has no rows", ErrConfiguration)
	}
	external := c.hasExternal()
	if external && len(c.ExternalInputs) == 0 {
		return layout{}, fmt.Errorf("%w: external channel requires a non-empty input sequence", ErrConfiguration)
	}
	channels := n
	if external {
		channels++
	}

	if c.ExternalWeights != nil && len(c.ExternalWeights) != n {
		return layout{}, fmt.Errorf("%w: external weights length %d, want %d", ErrConfiguration, len(c.ExternalWeights), n)
	}
	rows := make([][]float64, n)
	for i, row := range c.Weights {
		full := append([]float64(nil), row...)
		if c.ExternalWeights != nil {
			full = append(full, c.ExternalWeights[i])
		}
		if len(full) != channels {
			return layout{}, fmt.Errorf("%w: weight row %d length %d, want %d", ErrConfiguration, i, len(full), channels)
		}
		rows[i] = full
	}

	wavelengths, err := c.resolveWavelengths(n, external)
	if err != nil {
		return layout{}, err
	}
	powers, err := c.resolvePowers(n, external)
	if err != nil {
		return layout{}, err
	}
	for i, p := range c.ExternalInputs {
		if !validPower(p) {
			return layout{}, fmt.Errorf("%w: external input %d must be a finite power >= 0, got=%g", ErrConfiguration, i, p)
		}
	}

	return layout{neurons: n, external: external, rows: rows, wavelengths: wavelengths, powers: powers}, nil
}

func (c Config) resolveWavelengths(n int, external bool) ([]float64, error) {
	channels := n
	if external {
		channels++
	}

	var out []float64
	switch {
	case len(c.Wavelengths) == channels:
		out = append([]float64(nil), c.Wavelengths...)
	case external && len(c.Wavelengths) == n:
		if c.ExternalWavelength == 0 {
			return nil, fmt.Errorf("%w: external wavelength is required with %d explicit wavelengths", ErrConfiguration, n)
		}
		out = append(append([]float64(nil), c.Wavelengths...), c.ExternalWavelength)
	case len(c.Wavelengths) == 0:
		base, spacing := c.BaseWavelength, c.Spacing
		if base == 0 {
			base = DefaultBaseWavelength
		}
		if spacing == 0 {
			spacing = DefaultSpacing
		}
		out = make([]float64, 0, channels)
		for i := 0; i < n; i++ {
			out = append(out, base+float64(i)*spacing)
		}
		if external {
			ext := c.ExternalWavelength
			if ext == 0 {
				ext = base + float64(n)*spacing
			}
			out = append(out, ext)
		}
	default:
		return nil, fmt.Errorf("%w: wavelength list length %d, want %d", ErrConfiguration, len(c.Wavelengths), channels)
	}

	for i, w := range out {
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: wavelength %d must be > 0, got=%g", ErrConfiguration, i, w)
		}
	}
	return out, nil
}

func (c Config) resolvePowers(n int, external bool) ([]float64, error) {
	channels := n
	if external {
		channels++
	}

	out := make([]float64, channels)
	switch {
	case len(c.Powers) == 0:
		for i := 0; i < n; i++ {
			out[i] = DefaultPower
		}
	case len(c.Powers) == 1:
		for i := 0; i < n; i++ {
			out[i] = c.Powers[0]
		}
	case len(c.Powers) == n || len(c.Powers) == channels:
		copy(out, c.Powers)
	default:
		return nil, fmt.Errorf("%w: power list length %d, want 1, %d or %d", ErrConfiguration, len(c.Powers), n, channels)
	}

	for i, p := range out {
		if !validPower(p) {
			return nil, fmt.Errorf("%w: power %d must be a finite value >= 0, got=%g", ErrConfiguration, i, p)
		}
	}
	return out, nil
}

func validPower(p float64) bool {
	return p >= 0 && !math.IsInf(p, 0)
}
