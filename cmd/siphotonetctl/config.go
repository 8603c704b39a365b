package main

import (
	"encoding/json"
	"fmt"
	"os"

	"siphotonet/internal/photonics"
	sipapi "siphotonet/pkg/siphotonet"
)

// loadSimulateRequestFromConfig reads a JSON simulation config. Unknown keys
// are ignored; device blocks fill only the fields they name.
func loadSimulateRequestFromConfig(path string) (sipapi.SimulateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sipapi.SimulateRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return sipapi.SimulateRequest{}, err
	}

	var req sipapi.SimulateRequest
	spec := &req.Spec
	if v, ok := asInt(raw["steps"]); ok {
		req.Steps = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok, err := asMatrix(raw["weights"]); err != nil {
		return sipapi.SimulateRequest{}, fmt.Errorf("weights: %w", err)
	} else if ok {
		spec.Weights = v
	}
	// spec_id names the spec when weights are given, otherwise it selects a stored one.
	if v, ok := asString(raw["spec_id"]); ok {
		if len(spec.Weights) > 0 {
			spec.ID = v
		} else {
			req.SpecID = v
		}
	}
	for key, dst := range map[string]*[]float64{
		"external_weights": &spec.ExternalWeights,
		"wavelengths":      &spec.Wavelengths,
		"powers":           &spec.Powers,
		"external_inputs":  &spec.ExternalInputs,
	} {
		v, ok, err := asFloatSlice(raw[key])
		if err != nil {
			return sipapi.SimulateRequest{}, fmt.Errorf("%s: %w", key, err)
		}
		if ok {
			*dst = v
		}
	}
	if v, ok := asFloat64(raw["base_wavelength"]); ok {
		spec.BaseWavelength = v
	}
	if v, ok := asFloat64(raw["spacing"]); ok {
		spec.Spacing = v
	}
	if v, ok := asFloat64(raw["external_wavelength"]); ok {
		spec.ExternalWavelength = v
	}
	if v, ok := asString(raw["ring_preset"]); ok {
		spec.RingPreset = v
	}
	if ring, ok := raw["ring"].(map[string]any); ok {
		spec.Ring = ringFromMap(ring)
	}
	if mod, ok := raw["modulator"].(map[string]any); ok {
		spec.Modulator = modulatorFromMap(mod)
	}
	if pd, ok := raw["photodiode"].(map[string]any); ok {
		spec.Photodiode = photodiodeFromMap(pd)
	}
	return req, nil
}

func ringFromMap(raw map[string]any) photonics.RingParams {
	var ring photonics.RingParams
	if v, ok := asFloat64(raw["radius"]); ok {
		ring.Radius = v
	}
	if v, ok := asFloat64(raw["a"]); ok {
		ring.A = v
	}
	if v, ok := asFloat64(raw["r1"]); ok {
		ring.R1 = v
	}
	if v, ok := asFloat64(raw["r2"]); ok {
		ring.R2 = v
	}
	if v, ok := asFloat64(raw["n0"]); ok {
		ring.N0 = v
	}
	if v, ok := asFloat64(raw["heater_coeff"]); ok {
		ring.HeaterCoeff = v
	}
	return ring
}

func modulatorFromMap(raw map[string]any) photonics.Modulator {
	var mod photonics.Modulator
	if ring, ok := raw["ring"].(map[string]any); ok {
		mod.Ring = ringFromMap(ring)
	}
	if v, ok := asFloat64(raw["mod_coeff"]); ok {
		mod.ModCoeff = v
	}
	if v, ok := asFloat64(raw["bias"]); ok {
		mod.Bias = v
	}
	if v, ok := asFloat64(raw["heater"]); ok {
		mod.Heater = v
	}
	return mod
}

func photodiodeFromMap(raw map[string]any) photonics.Photodiode {
	var pd photonics.Photodiode
	if v, ok := asFloat64(raw["quantum_efficiency"]); ok {
		pd.QuantumEfficiency = v
	}
	if v, ok := asFloat64(raw["reference_wavelength"]); ok {
		pd.ReferenceWavelength = v
	}
	return pd
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asFloatSlice(v any) ([]float64, bool, error) {
	if v == nil {
		return nil, false, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false, fmt.Errorf("expected a list of numbers")
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := asFloat64(item)
		if !ok {
			return nil, false, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = f
	}
	return out, true, nil
}

func asMatrix(v any) ([][]float64, bool, error) {
	if v == nil {
		return nil, false, nil
	}
	rows, ok := v.([]any)
	if !ok {
		return nil, false, fmt.Errorf("expected a list of rows")
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		values, _, err := asFloatSlice(row)
		if err != nil {
			return nil, false, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = values
	}
	return out, true, nil
}

// overrideFromFlags applies explicitly set flags on top of a config-file request.
func overrideFromFlags(req *sipapi.SimulateRequest, set map[string]bool, flagValue map[string]any) {
	spec := &req.Spec
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "spec-id":
			req.SpecID = v.(string)
		case "steps":
			req.Steps = v.(int)
		case "workers":
			req.Workers = v.(int)
		case "weights":
			spec.Weights = v.(matrixValue).rows
		case "external-weights":
			spec.ExternalWeights = v.(floatList).values
		case "wavelengths":
			spec.Wavelengths = v.(floatList).values
		case "powers":
			spec.Powers = v.(floatList).values
		case "inputs":
			spec.ExternalInputs = v.(floatList).values
		case "base-wavelength":
			spec.BaseWavelength = v.(siValue).value
		case "spacing":
			spec.Spacing = v.(siValue).value
		case "external-wavelength":
			spec.ExternalWavelength = v.(siValue).value
		case "preset":
			spec.RingPreset = v.(string)
		case "bias":
			spec.Modulator.Bias = v.(siValue).value
		case "heater":
			spec.Modulator.Heater = v.(float64)
		}
	}
}
