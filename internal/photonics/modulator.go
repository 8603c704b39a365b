package photonics

import (
	"errors"
	"fmt"
)

// Modulator is a single-bus ring whose index is driven by the photocurrent.
// Bias is a constant current added to the photocurrent and Heater a static
// thermal weight on the same quadratic law as the weight-bank rings.
type Modulator struct {
	Ring     RingParams `json:"ring"`
	ModCoeff float64    `json:"mod_coeff"`
	Bias     float64    `json:"bias"`
	Heater   float64    `json:"heater"`
}

// SweepPoint is one sample of a modulator sweep.
type SweepPoint struct {
	Current      float64 `json:"current"`
	Wavelength   float64 `json:"wavelength"`
	Transmission float64 `json:"transmission"`
}

func DefaultModulator() Modulator {
	return Modulator{Ring: DefaultRingParams(), ModCoeff: DefaultModCoeff}
}

func (m Modulator) WithDefaults() Modulator {
	m.Ring = m.Ring.WithDefaults()
	if m.ModCoeff == 0 {
		m.ModCoeff = DefaultModCoeff
	}
	return m
}

func (m Modulator) Validate() error {
	if err := m.Ring.Validate(); err != nil {
		return fmt.Errorf("modulator: %w", err)
	}
	return nil
}

// Transmission returns the through-port fraction at wavelength for a photocurrent.
func (m Modulator) Transmission(current, wavelength float64) float64 {
	shift := m.ModCoeff*(current+m.Bias) + m.Ring.HeaterShift(m.Heater)
	return m.Ring.ThroughAtPhase(m.Ring.Phase(shift, wavelength))
}

// Check wraps Transmission with the boundedness check.
func (m Modulator) Check(source string, current, wavelength float64) (float64, *DomainWarning) {
	t := m.Transmission(current, wavelength)
	if outOfUnit(t) {
		return t, &DomainWarning{Source: source, Quantity: "modulator", Wavelength: wavelength, Value: t}
	}
	return t, nil
}

// Sweep evaluates the modulator at a fixed wavelength over count currents
// spaced linearly over [from, to].
func (m Modulator) Sweep(wavelength, from, to float64, count int) ([]SweepPoint, error) {
	currents, err := Linspace(from, to, count)
	if err != nil {
		return nil, err
	}
	out := make([]SweepPoint, len(currents))
	for i, current := range currents {
		out[i] = SweepPoint{Current: current, Wavelength: wavelength, Transmission: m.Transmission(current, wavelength)}
	}
	return out, nil
}

// Spectrum evaluates the modulator at a fixed current over wavelengths.
func (m Modulator) Spectrum(current float64, wavelengths []float64) []SweepPoint {
	out := make([]SweepPoint, len(wavelengths))
	for i, wavelength := range wavelengths {
		out[i] = SweepPoint{Current: current, Wavelength: wavelength, Transmission: m.Transmission(current, wavelength)}
	}
	return out
}

var ErrInvalidRange = errors.New("invalid sample range")

// Linspace returns count evenly spaced samples over [from, to], endpoints included.
func Linspace(from, to float64, count int) ([]float64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be > 0, got=%d", ErrInvalidRange, count)
	}
	if count == 1 {
		return []float64{from}, nil
	}
	out := make([]float64, count)
	step := (to - from) / float64(count-1)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	out[count-1] = to
	return out, nil
}
