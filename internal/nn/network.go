package nn

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"siphotonet/internal/photonics"
)

type State int

const (
	StateReady State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StepResult is the committed outcome of one simulation step.
type StepResult struct {
	Step          int                       `json:"step"`
	Waveguide     WaveguideState            `json:"waveguide"`
	Transmissions []float64                 `json:"transmissions"`
	Currents      []float64                 `json:"currents"`
	Warnings      []photonics.DomainWarning `json:"warnings,omitempty"`
	Done          bool                      `json:"done"`
}

// Network owns the bus and its neurons. Each step every neuron reads the same
// pre-step snapshot and all new powers are committed together, so evaluation
// order never changes the outcome. A Network is not safe for concurrent use.
type Network struct {
	neurons     []*Neuron
	waveguide   WaveguideState
	hasExternal bool
	external    []float64
	state       State
	step        int
	workers     int
	onWarning   func(photonics.DomainWarning)

	transmissions []float64
	currents      []float64
}

func NewNetwork(cfg Config) (*Network, error) {
	lay, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	ring := cfg.Ring.WithDefaults()
	if err := ring.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	modulator := cfg.Modulator
	if modulator.Ring == (photonics.RingParams{}) {
		modulator.Ring = ring
	}

	neurons := make([]*Neuron, lay.neurons)
	for i := range neurons {
		neuron, err := NewNeuron(i, lay.rows[i], lay.wavelengths[i], lay.powers[i], ring, modulator, cfg.Photodiode)
		if err != nil {
			return nil, err
		}
		neurons[i] = neuron
	}

	channels := make([]Channel, len(lay.wavelengths))
	for i := range channels {
		channels[i] = Channel{Wavelength: lay.wavelengths[i], Power: lay.powers[i]}
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	net := &Network{
		neurons:     neurons,
		waveguide:   WaveguideState{Channels: channels},
		hasExternal: lay.external,
		external:    slices.Clone(cfg.ExternalInputs),
		state:       StateReady,
		workers:     workers,
		onWarning:   cfg.OnWarning,
	}
	if err := net.checkInvariants(); err != nil {
		return nil, err
	}
	return net, nil
}

func (n *Network) checkInvariants() error {
	want := len(n.neurons)
	if n.hasExternal {
		want++
	}
	if n.waveguide.Len() != want {
		return fmt.Errorf("%w: waveguide has %d channels, want %d", ErrConfiguration, n.waveguide.Len(), want)
	}
	for i, neuron := range n.neurons {
		if len(neuron.weights) != want {
			return fmt.Errorf("%w: neuron %d reads %d channels, want %d", ErrConfiguration, i, len(neuron.weights), want)
		}
		if neuron.outputWavelength != n.waveguide.Channels[i].Wavelength {
			return fmt.Errorf("%w: neuron %d wavelength does not match channel %d", ErrConfiguration, i, i)
		}
	}
	return nil
}

func (n *Network) NeuronCount() int {
	return len(n.neurons)
}

func (n *Network) ChannelCount() int {
	return n.waveguide.Len()
}

func (n *Network) HasExternal() bool {
	return n.hasExternal
}

func (n *Network) State() State {
	return n.state
}

// Steps returns the number of committed steps.
func (n *Network) Steps() int {
	return n.step
}

// Remaining returns the number of unconsumed external samples.
func (n *Network) Remaining() int {
	return len(n.external)
}

func (n *Network) Neuron(i int) (*Neuron, error) {
	if i < 0 || i >= len(n.neurons) {
		return nil, fmt.Errorf("%w: neuron %d not in [0,%d)", ErrChannelOutOfRange, i, len(n.neurons))
	}
	return n.neurons[i], nil
}

func (n *Network) Waveguide() WaveguideState {
	return n.waveguide.Clone()
}

func (n *Network) Wavelengths() []float64 {
	return n.waveguide.Wavelengths()
}

func (n *Network) Powers() []float64 {
	return n.waveguide.Powers()
}

// Power returns the power of channel i. Channels are 0-indexed; the external
// channel, when present, is index NeuronCount().
func (n *Network) Power(i int) (float64, error) {
	if i < 0 || i >= n.waveguide.Len() {
		return 0, fmt.Errorf("%w: channel %d not in [0,%d)", ErrChannelOutOfRange, i, n.waveguide.Len())
	}
	return n.waveguide.Channels[i].Power, nil
}

// ModulatorTransmissions returns the per-neuron modulator transmissions of the
// most recent step, or nil before the first step.
func (n *Network) ModulatorTransmissions() []float64 {
	return slices.Clone(n.transmissions)
}

// Photocurrents returns the per-neuron photocurrents of the most recent step.
func (n *Network) Photocurrents() []float64 {
	return slices.Clone(n.currents)
}

// Step advances the network by one step. It returns ErrInputExhausted once
// the external input sequence has been consumed.
func (n *Network) Step(ctx context.Context) (StepResult, error) {
	return n.stepOrdered(ctx, nil)
}

// Next is the iterator form of Step: ok is false only when the external input
// is exhausted, so a network without an external channel never stops on its own.
func (n *Network) Next(ctx context.Context) (StepResult, bool, error) {
	if n.state == StateDone {
		return StepResult{}, false, nil
	}
	result, err := n.Step(ctx)
	if err != nil {
		return StepResult{}, false, err
	}
	return result, true, nil
}

// Run steps until the external input is exhausted or maxSteps steps have run.
// maxSteps <= 0 means no limit, which is only allowed with an external channel.
func (n *Network) Run(ctx context.Context, maxSteps int) ([]StepResult, error) {
	if maxSteps <= 0 && !n.hasExternal {
		return nil, ErrUnboundedRun
	}
	var results []StepResult
	if n.hasExternal {
		results = make([]StepResult, 0, len(n.external))
	}
	for maxSteps <= 0 || len(results) < maxSteps {
		result, ok, err := n.Next(ctx)
		if err != nil {
			return results, err
		}
		if !ok {
			break
		}
		results = append(results, result)
	}
	return results, nil
}

func (n *Network) stepOrdered(ctx context.Context, order []int) (StepResult, error) {
	if n.state == StateDone {
		return StepResult{}, fmt.Errorf("%w: after %d steps", ErrInputExhausted, n.step)
	}
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	snapshot := n.waveguide.split(len(n.neurons))
	activations, err := n.evaluate(ctx, snapshot, order)
	if err != nil {
		return StepResult{}, err
	}

	staged := n.waveguide.Powers()
	result := StepResult{
		Transmissions: make([]float64, len(n.neurons)),
		Currents:      make([]float64, len(n.neurons)),
	}
	for i, act := range activations {
		staged[i] = act.Power
		result.Transmissions[i] = act.Transmission
		result.Currents[i] = act.Current
		result.Warnings = append(result.Warnings, act.Warnings...)
	}
	nextState := StateRunning
	if n.hasExternal {
		staged[len(n.neurons)] = n.external[0]
		n.external = n.external[1:]
		if len(n.external) == 0 {
			nextState = StateDone
		}
	}

	for i := range n.waveguide.Channels {
		n.waveguide.Channels[i].Power = staged[i]
	}
	n.step++
	n.state = nextState
	n.transmissions = result.Transmissions
	n.currents = result.Currents

	result.Step = n.step
	result.Waveguide = n.waveguide.Clone()
	result.Transmissions = slices.Clone(result.Transmissions)
	result.Currents = slices.Clone(result.Currents)
	result.Done = nextState == StateDone
	if n.onWarning != nil {
		for _, w := range result.Warnings {
			n.onWarning(w)
		}
	}
	return result, nil
}

// evaluate runs every neuron against the snapshot. order only changes the
// sequence in which neurons are dispatched; results are indexed by neuron.
func (n *Network) evaluate(ctx context.Context, snapshot WaveguideState, order []int) ([]Activation, error) {
	if order == nil {
		order = make([]int, len(n.neurons))
		for i := range order {
			order[i] = i
		}
	}
	if len(order) != len(n.neurons) {
		return nil, fmt.Errorf("evaluation order covers %d neurons, want %d", len(order), len(n.neurons))
	}

	activations := make([]Activation, len(n.neurons))
	if n.workers <= 1 || len(n.neurons) == 1 {
		for _, idx := range order {
			act, err := n.neurons[idx].Act(snapshot)
			if err != nil {
				return nil, err
			}
			activations[idx] = act
		}
		return activations, nil
	}

	type result struct {
		idx int
		act Activation
		err error
	}

	jobs := make(chan int)
	results := make(chan result, len(n.neurons))

	workerCount := n.workers
	if workerCount > len(n.neurons) {
		workerCount = len(n.neurons)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				act, err := n.neurons[idx].Act(snapshot)
				results <- result{idx: idx, act: act, err: err}
			}
		}()
	}

	for _, idx := range order {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()
	close(results)

	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		activations[res.idx] = res.act
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return activations, nil
}
