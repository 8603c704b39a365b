package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"

	"siphotonet/internal/photonics"
)

// Neuron is one MRR weight bank feeding a balanced photodiode that drives an
// output modulator. It holds no per-step state.
type Neuron struct {
	index            int
	weights          []float64
	outputWavelength float64
	outputScale      float64
	ring             photonics.RingParams
	modulator        photonics.Modulator
	detector         photonics.Photodiode
}

// Activation is the result of evaluating a neuron on one bus snapshot.
type Activation struct {
	Responses    []photonics.Response      `json:"responses"`
	Current      float64                   `json:"current"`
	Transmission float64                   `json:"transmission"`
	Power        float64                   `json:"power"`
	Warnings     []photonics.DomainWarning `json:"warnings,omitempty"`
}

func NewNeuron(
	index int,
	weights []float64,
	outputWavelength float64,
	outputScale float64,
	ring photonics.RingParams,
	modulator photonics.Modulator,
	detector photonics.Photodiode,
) (*Neuron, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: neuron %d has no weights", ErrConfiguration, index)
	}
	for j, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: neuron %d weight %d is not finite", ErrConfiguration, index, j)
		}
	}
	if !(outputWavelength > 0) || math.IsInf(outputWavelength, 0) {
		return nil, fmt.Errorf("%w: neuron %d output wavelength must be > 0", ErrConfiguration, index)
	}
	if !(outputScale >= 0) || math.IsInf(outputScale, 0) {
		return nil, fmt.Errorf("%w: neuron %d output scale must be >= 0", ErrConfiguration, index)
	}
	ring = ring.WithDefaults()
	if err := ring.Validate(); err != nil {
		return nil, fmt.Errorf("%w: neuron %d: %w", ErrConfiguration, index, err)
	}
	modulator = modulator.WithDefaults()
	if err := modulator.Validate(); err != nil {
		return nil, fmt.Errorf("%w: neuron %d: %w", ErrConfiguration, index, err)
	}
	detector = detector.WithDefaults()
	if err := detector.Validate(); err != nil {
		return nil, fmt.Errorf("%w: neuron %d: %w", ErrConfiguration, index, err)
	}

	return &Neuron{
		index:            index,
		weights:          slices.Clone(weights),
		outputWavelength: outputWavelength,
		outputScale:      outputScale,
		ring:             ring,
		modulator:        modulator,
		detector:         detector,
	}, nil
}

func (n *Neuron) Index() int {
	return n.index
}

func (n *Neuron) Weights() []float64 {
	return slices.Clone(n.weights)
}

func (n *Neuron) OutputWavelength() float64 {
	return n.outputWavelength
}

func (n *Neuron) OutputScale() float64 {
	return n.outputScale
}

func (n *Neuron) Ring() photonics.RingParams {
	return n.ring
}

func (n *Neuron) Modulator() photonics.Modulator {
	return n.modulator
}

// Act filters every channel of the snapshot through its ring, detects the
// drop-minus-through photocurrent and returns the modulated output power.
func (n *Neuron) Act(snapshot WaveguideState) (Activation, error) {
	if snapshot.Len() != len(n.weights) {
		return Activation{}, fmt.Errorf("neuron %d: snapshot size mismatch: got=%d want=%d", n.index, snapshot.Len(), len(n.weights))
	}

	source := fmt.Sprintf("neuron %d", n.index)
	act := Activation{Responses: make([]photonics.Response, len(n.weights))}
	through := make([]float64, len(n.weights))
	drop := make([]float64, len(n.weights))
	for j, ch := range snapshot.Channels {
		r := n.ring.Transmission(n.weights[j], ch.Wavelength)
		if warning, ok := r.Check(source); ok {
			act.Warnings = append(act.Warnings, warning)
		}
		act.Responses[j] = r
		through[j] = ch.Power * r.Through
		drop[j] = ch.Power * r.Drop
	}

	act.Current = n.detector.Current(through, drop)
	transmission, warning := n.modulator.Check(source, act.Current, n.outputWavelength)
	if warning != nil {
		act.Warnings = append(act.Warnings, *warning)
	}
	act.Transmission = transmission
	act.Power = transmission * n.outputScale
	return act, nil
}

// WeightBankSpectrum sweeps every ring of the bank over wavelengths; row j is
// the ring tuned by weight j.
func (n *Neuron) WeightBankSpectrum(wavelengths []float64) [][]photonics.Response {
	out := make([][]photonics.Response, len(n.weights))
	for j, w := range n.weights {
		out[j] = n.ring.TransmissionSpectrum(w, wavelengths)
	}
	return out
}

// ModulatorTransmission is the output modulator's response to a photocurrent
// at the neuron's own wavelength.
func (n *Neuron) ModulatorTransmission(current float64) float64 {
	return n.modulator.Transmission(current, n.outputWavelength)
}
