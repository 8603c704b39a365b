package nn

import "errors"

// ErrConfiguration marks construction inputs that violate the network
// invariants. No partially built network is returned alongside it.
var ErrConfiguration = errors.New("network configuration error")

// ErrInputExhausted is returned when a network is stepped after its external
// input sequence has been consumed.
var ErrInputExhausted = errors.New("external input exhausted")

var (
	ErrChannelOutOfRange = errors.New("channel index out of range")
	ErrUnboundedRun      = errors.New("run without external input requires a step limit")
)
