package photonics

import (
	"errors"
	"math"
	"testing"
)

func TestTransmissionReferenceScenario(t *testing.T) {
	params := RingParams{Radius: 3e-5, A: 0.99, R1: 0.9, R2: 0.9, N0: math.Sqrt(12), HeaterCoeff: DefaultHeaterCoeff}

	phi := 2 * math.Pi * 3e-5 / 1550e-9 * math.Sqrt(12)
	c := math.Cos(phi)
	a, r1, r2 := 0.99, 0.9, 0.9
	den := 1 + (a*r1*r2)*(a*r1*r2) - 2*r1*r2*a*c
	wantThrough := ((r2*a)*(r2*a) + r1*r1 - 2*r1*r2*a*c) / den
	wantDrop := (1 - r1*r1) * (1 - r2*r2) * a / den

	got := params.Transmission(0, 1550e-9)
	if math.Abs(got.Through-wantThrough) > 1e-6 {
		t.Fatalf("unexpected through: got=%.9f want=%.9f", got.Through, wantThrough)
	}
	if math.Abs(got.Drop-wantDrop) > 1e-6 {
		t.Fatalf("unexpected drop: got=%.9f want=%.9f", got.Drop, wantDrop)
	}
}

func TestTransmissionBoundedAndPassive(t *testing.T) {
	presets := []RingParams{
		DefaultRingParams(),
		{Radius: 3e-5, A: 0.9, R1: 0.85, R2: 0.85, N0: SiliconIndex, HeaterCoeff: DefaultHeaterCoeff},
		{Radius: 1e-5, A: 1, R1: 0.7, R2: 0.95, N0: 2.5, HeaterCoeff: 3e-3},
		{Radius: 5e-5, A: 0.5, R1: 1, R2: 0.2, N0: SiliconIndex, HeaterCoeff: DefaultHeaterCoeff},
	}
	weights := []float64{-10, -5, -1, -0.1, 0, 0.1, 1, 3.3, 5, 10}
	wavelengths := make([]float64, 0, 401)
	for i := 0; i <= 400; i++ {
		wavelengths = append(wavelengths, 1540e-9+float64(i)*0.05e-9)
	}

	for pi, params := range presets {
		for _, w := range weights {
			for _, r := range params.TransmissionSpectrum(w, wavelengths) {
				if r.Through < -Tolerance || r.Through > 1+Tolerance {
					t.Fatalf("preset %d weight %g: through out of range: %g", pi, w, r.Through)
				}
				if r.Drop < -Tolerance || r.Drop > 1+Tolerance {
					t.Fatalf("preset %d weight %g: drop out of range: %g", pi, w, r.Drop)
				}
				if r.Through+r.Drop > 1+Tolerance {
					t.Fatalf("preset %d weight %g: gain detected through+drop=%g", pi, w, r.Through+r.Drop)
				}
				if _, warn := r.Check("test"); warn {
					t.Fatalf("unexpected domain warning for %+v", r)
				}
			}
		}
	}
}

func TestTransmissionZeroWeightDependsOnlyOnBaselineIndex(t *testing.T) {
	params := DefaultRingParams()
	wavelengths := []float64{1549e-9, 1550e-9, 1551e-9, 1552.5e-9}

	for _, r := range params.TransmissionSpectrum(0, wavelengths) {
		phi := 2 * math.Pi * params.Radius / r.Wavelength * params.N0
		if got, want := r.Through, params.ThroughAtPhase(phi); math.Abs(got-want) > 1e-12 {
			t.Fatalf("zero weight through at %g: got=%g want=%g", r.Wavelength, got, want)
		}
	}
	if shift := params.HeaterShift(0); shift != 0 {
		t.Fatalf("expected no index shift at zero weight, got=%g", shift)
	}
}

func TestTransmissionWeightSignSymmetric(t *testing.T) {
	params := DefaultRingParams()
	for _, w := range []float64{0.5, 1, 5, 12} {
		pos := params.Transmission(w, 1550e-9)
		neg := params.Transmission(-w, 1550e-9)
		if pos != neg {
			t.Fatalf("weight %g: expected sign symmetry, got=%+v vs %+v", w, pos, neg)
		}
	}
}

func TestTransmissionSpectrumMatchesScalar(t *testing.T) {
	params := DefaultRingParams()
	wavelengths := []float64{1550e-9, 1551e-9, 1552e-9}
	spectrum := params.TransmissionSpectrum(-1.5, wavelengths)
	if len(spectrum) != len(wavelengths) {
		t.Fatalf("unexpected spectrum length: got=%d want=%d", len(spectrum), len(wavelengths))
	}
	for i, wavelength := range wavelengths {
		if got, want := spectrum[i], params.Transmission(-1.5, wavelength); got != want {
			t.Fatalf("spectrum[%d]: got=%+v want=%+v", i, got, want)
		}
	}
}

func TestLosslessRingConservesPower(t *testing.T) {
	params := RingParams{Radius: 3e-5, A: 1, R1: 0.9, R2: 0.9, N0: SiliconIndex, HeaterCoeff: DefaultHeaterCoeff}
	for _, w := range []float64{0, 1, 2, 7} {
		r := params.Transmission(w, 1550e-9)
		if math.Abs(r.Through+r.Drop-1) > 1e-12 {
			t.Fatalf("weight %g: lossless ring should conserve power, got=%g", w, r.Through+r.Drop)
		}
	}
}

func TestRingParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RingParams)
		hasErr bool
	}{
		{name: "default", mutate: func(*RingParams) {}},
		{name: "lossless", mutate: func(p *RingParams) { p.A = 1 }},
		{name: "zero-radius", mutate: func(p *RingParams) { p.Radius = 0 }, hasErr: true},
		{name: "a-above-one", mutate: func(p *RingParams) { p.A = 1.01 }, hasErr: true},
		{name: "r1-zero", mutate: func(p *RingParams) { p.R1 = 0 }, hasErr: true},
		{name: "r2-negative", mutate: func(p *RingParams) { p.R2 = -0.5 }, hasErr: true},
		{name: "n0-nan", mutate: func(p *RingParams) { p.N0 = math.NaN() }, hasErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultRingParams()
			tc.mutate(&params)
			err := params.Validate()
			if tc.hasErr {
				if !errors.Is(err, ErrInvalidRing) {
					t.Fatalf("expected ErrInvalidRing, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRingParamsWithDefaults(t *testing.T) {
	params := RingParams{A: 0.95}.WithDefaults()
	if params.A != 0.95 {
		t.Fatalf("expected explicit a to survive, got=%g", params.A)
	}
	if params.Radius != DefaultRingRadius || params.N0 != SiliconIndex || params.R1 != 0.9 {
		t.Fatalf("unexpected defaults: %+v", params)
	}
}

func TestResponseCheckFlagsOutOfRange(t *testing.T) {
	warning, ok := Response{Wavelength: 1550e-9, Through: 1.2, Drop: 0}.Check("neuron 0")
	if !ok {
		t.Fatal("expected warning for through > 1")
	}
	if warning.Quantity != "through" || warning.Source != "neuron 0" {
		t.Fatalf("unexpected warning: %+v", warning)
	}
	if _, ok := (Response{Through: 0.6, Drop: 0.6}).Check("x"); !ok {
		t.Fatal("expected warning for through+drop > 1")
	}
	if _, ok := (Response{Through: 0.5, Drop: 0.5}).Check("x"); ok {
		t.Fatal("unexpected warning for through+drop == 1")
	}
}
