package photonics

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidDetector = errors.New("invalid photodiode parameters")

const (
	PlanckConstant    = 6.62607015e-34
	SpeedOfLight      = 2.99792458e8
	ElementaryCharge  = 1.602176634e-19
	DefaultEfficiency = 0.8
	DefaultReference  = 1550e-9
)

// Photodiode is a balanced detector pair: the drop-bus diode adds current,
// the through-bus diode subtracts it.
type Photodiode struct {
	QuantumEfficiency   float64 `json:"quantum_efficiency"`
	ReferenceWavelength float64 `json:"reference_wavelength"`
}

func DefaultPhotodiode() Photodiode {
	return Photodiode{QuantumEfficiency: DefaultEfficiency, ReferenceWavelength: DefaultReference}
}

func (d Photodiode) WithDefaults() Photodiode {
	if d.QuantumEfficiency == 0 {
		d.QuantumEfficiency = DefaultEfficiency
	}
	if d.ReferenceWavelength == 0 {
		d.ReferenceWavelength = DefaultReference
	}
	return d
}

func (d Photodiode) Validate() error {
	if !(d.QuantumEfficiency > 0) || math.IsInf(d.QuantumEfficiency, 0) {
		return fmt.Errorf("%w: quantum efficiency must be > 0, got=%g", ErrInvalidDetector, d.QuantumEfficiency)
	}
	if !(d.ReferenceWavelength > 0) || math.IsInf(d.ReferenceWavelength, 0) {
		return fmt.Errorf("%w: reference wavelength must be > 0, got=%g", ErrInvalidDetector, d.ReferenceWavelength)
	}
	return nil
}

// Responsivity in A/W: η·q / (h·c/λref).
func (d Photodiode) Responsivity() float64 {
	photonEnergy := PlanckConstant * SpeedOfLight / d.ReferenceWavelength
	return d.QuantumEfficiency * ElementaryCharge / photonEnergy
}

// Current converts per-channel through and drop powers into the differential photocurrent.
func (d Photodiode) Current(through, drop []float64) float64 {
	var sumThrough, sumDrop float64
	for _, p := range through {
		sumThrough += p
	}
	for _, p := range drop {
		sumDrop += p
	}
	return d.Responsivity() * (sumDrop - sumThrough)
}
