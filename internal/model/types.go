package model

import "siphotonet/internal/photonics"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NetworkSpec is the persisted construction input of a network.
type NetworkSpec struct {
	VersionedRecord
	ID                 string               `json:"id"`
	Weights            [][]float64          `json:"weights"`
	ExternalWeights    []float64            `json:"external_weights,omitempty"`
	Wavelengths        []float64            `json:"wavelengths,omitempty"`
	BaseWavelength     float64              `json:"base_wavelength,omitempty"`
	Spacing            float64              `json:"spacing,omitempty"`
	Powers             []float64            `json:"powers,omitempty"`
	ExternalWavelength float64              `json:"external_wavelength,omitempty"`
	ExternalInputs     []float64            `json:"external_inputs,omitempty"`
	RingPreset         string               `json:"ring_preset,omitempty"`
	Ring               photonics.RingParams `json:"ring"`
	Modulator          photonics.Modulator  `json:"modulator"`
	Photodiode         photonics.Photodiode `json:"photodiode"`
}

// StepRecord is one committed simulation step.
type StepRecord struct {
	Step          int       `json:"step"`
	Powers        []float64 `json:"powers"`
	Transmissions []float64 `json:"transmissions"`
	Currents      []float64 `json:"currents"`
	Warnings      int       `json:"warnings,omitempty"`
}

// RunRecord summarizes one simulation run of a stored network spec.
type RunRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	SpecID       string    `json:"spec_id"`
	Steps        int       `json:"steps"`
	Done         bool      `json:"done"`
	Wavelengths  []float64 `json:"wavelengths"`
	FinalPowers  []float64 `json:"final_powers"`
	WarningCount int       `json:"warning_count"`
	CreatedAtUTC string    `json:"created_at_utc"`
}
