package photonics

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

const (
	PresetDefault = "default"
	PresetLossy   = "lossy"
)

var (
	ErrPresetExists   = errors.New("ring preset already registered")
	ErrPresetNotFound = errors.New("ring preset not found")
)

var presetRegistry = struct {
	mu sync.RWMutex
	m  map[string]RingParams
}{
	m: make(map[string]RingParams),
}

func init() {
	initializeBuiltInPresets()
}

func initializeBuiltInPresets() {
	MustRegisterPreset(PresetDefault, DefaultRingParams())
	lossy := DefaultRingParams()
	lossy.A = 0.9
	lossy.R1 = 0.85
	lossy.R2 = 0.85
	MustRegisterPreset(PresetLossy, lossy)
}

func RegisterPreset(name string, params RingParams) error {
	if name == "" {
		return errors.New("preset name is required")
	}
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", name, err)
	}

	presetRegistry.mu.Lock()
	defer presetRegistry.mu.Unlock()

	if _, exists := presetRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrPresetExists, name)
	}
	presetRegistry.m[name] = params
	return nil
}

func MustRegisterPreset(name string, params RingParams) {
	if err := RegisterPreset(name, params); err != nil {
		panic(err)
	}
}

func GetPreset(name string) (RingParams, error) {
	if name == "" {
		name = PresetDefault
	}
	presetRegistry.mu.RLock()
	params, ok := presetRegistry.m[name]
	presetRegistry.mu.RUnlock()
	if !ok {
		return RingParams{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return params, nil
}

func ListPresets() []string {
	presetRegistry.mu.RLock()
	defer presetRegistry.mu.RUnlock()

	names := make([]string, 0, len(presetRegistry.m))
	for name := range presetRegistry.m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func resetPresetRegistryForTests() {
	presetRegistry.mu.Lock()
	presetRegistry.m = make(map[string]RingParams)
	presetRegistry.mu.Unlock()
	initializeBuiltInPresets()
}
