package photonics

import (
	"errors"
	"fmt"
	"math"
)

const (
	// SiliconIndex is the effective-index baseline n0 used when RingParams.N0 is unset.
	SiliconIndex = 3.4641016151377544 // sqrt(12)

	DefaultRingRadius  = 3e-5
	DefaultHeaterCoeff = 1e-4
	DefaultModCoeff    = 1e-2

	// Tolerance bounds rounding error on transmission values before a DomainWarning is raised.
	Tolerance = 1e-9
)

var ErrInvalidRing = errors.New("invalid ring parameters")

// RingParams describes an add-drop micro-ring: radius, round-trip loss a and
// the self-coupling coefficients r1 (input bus) and r2 (drop bus).
type RingParams struct {
	Radius      float64 `json:"radius"`
	A           float64 `json:"a"`
	R1          float64 `json:"r1"`
	R2          float64 `json:"r2"`
	N0          float64 `json:"n0"`
	HeaterCoeff float64 `json:"heater_coeff"`
}

// Response is the power transmission of a ring at one wavelength.
type Response struct {
	Wavelength float64 `json:"wavelength"`
	Through    float64 `json:"through"`
	Drop       float64 `json:"drop"`
}

func DefaultRingParams() RingParams {
	return RingParams{
		Radius:      DefaultRingRadius,
		A:           0.99,
		R1:          0.9,
		R2:          0.9,
		N0:          SiliconIndex,
		HeaterCoeff: DefaultHeaterCoeff,
	}
}

// WithDefaults fills zero-valued fields from DefaultRingParams.
func (p RingParams) WithDefaults() RingParams {
	def := DefaultRingParams()
	if p.Radius == 0 {
		p.Radius = def.Radius
	}
	if p.A == 0 {
		p.A = def.A
	}
	if p.R1 == 0 {
		p.R1 = def.R1
	}
	if p.R2 == 0 {
		p.R2 = def.R2
	}
	if p.N0 == 0 {
		p.N0 = def.N0
	}
	if p.HeaterCoeff == 0 {
		p.HeaterCoeff = def.HeaterCoeff
	}
	return p
}

func (p RingParams) Validate() error {
	if !(p.Radius > 0) {
		return fmt.Errorf("%w: radius must be > 0, got=%g", ErrInvalidRing, p.Radius)
	}
	if !(p.N0 > 0) {
		return fmt.Errorf("%w: n0 must be > 0, got=%g", ErrInvalidRing, p.N0)
	}
	for _, c := range []struct {
		name  string
		value float64
	}{{"a", p.A}, {"r1", p.R1}, {"r2", p.R2}} {
		if !(c.value > 0 && c.value <= 1) {
			return fmt.Errorf("%w: %s must be in (0,1], got=%g", ErrInvalidRing, c.name, c.value)
		}
	}
	return nil
}

// Phase returns the round-trip phase for a ring whose effective index is
// shifted by indexShift from n0.
func (p RingParams) Phase(indexShift, wavelength float64) float64 {
	return 2 * math.Pi * p.Radius / wavelength * (p.N0 + indexShift)
}

// HeaterShift is the effective-index shift produced by a thermal weight.
// Only the magnitude of the weight matters.
func (p RingParams) HeaterShift(weight float64) float64 {
	return p.HeaterCoeff * weight * weight
}

// Transmission evaluates the through and drop ports for a weight at one wavelength.
func (p RingParams) Transmission(weight, wavelength float64) Response {
	through, drop := p.ports(p.Phase(p.HeaterShift(weight), wavelength))
	return Response{Wavelength: wavelength, Through: through, Drop: drop}
}

// TransmissionSpectrum evaluates one weight against every wavelength.
func (p RingParams) TransmissionSpectrum(weight float64, wavelengths []float64) []Response {
	out := make([]Response, len(wavelengths))
	shift := p.HeaterShift(weight)
	for i, wavelength := range wavelengths {
		through, drop := p.ports(p.Phase(shift, wavelength))
		out[i] = Response{Wavelength: wavelength, Through: through, Drop: drop}
	}
	return out
}

// ThroughAtPhase is the through-port transmission for an explicit phase.
func (p RingParams) ThroughAtPhase(phi float64) float64 {
	through, _ := p.ports(phi)
	return through
}

func (p RingParams) ports(phi float64) (through, drop float64) {
	coupling := 2 * p.R1 * p.R2 * p.A * math.Cos(phi)
	denominator := 1 + (p.A*p.R1*p.R2)*(p.A*p.R1*p.R2) - coupling
	through = ((p.R2*p.A)*(p.R2*p.A) + p.R1*p.R1 - coupling) / denominator
	drop = (1 - p.R1*p.R1) * (1 - p.R2*p.R2) * p.A / denominator
	return through, drop
}

// Check reports a DomainWarning when a response leaves the passive-device bounds.
func (r Response) Check(source string) (DomainWarning, bool) {
	switch {
	case outOfUnit(r.Through):
		return DomainWarning{Source: source, Quantity: "through", Wavelength: r.Wavelength, Value: r.Through}, true
	case outOfUnit(r.Drop):
		return DomainWarning{Source: source, Quantity: "drop", Wavelength: r.Wavelength, Value: r.Drop}, true
	case r.Through+r.Drop > 1+Tolerance:
		return DomainWarning{Source: source, Quantity: "through+drop", Wavelength: r.Wavelength, Value: r.Through + r.Drop}, true
	}
	return DomainWarning{}, false
}

func outOfUnit(v float64) bool {
	return math.IsNaN(v) || v < -Tolerance || v > 1+Tolerance
}
