package types

import (
	"fmt"
)

// Phase is the state of a conversion session.
//
// The allowed transitions are:
//
//	Idle -> Preparing -> Processing -> Finishing -> Idle
//
// and Cancelled, reachable from Preparing and Processing, which
// transitions directly back to Idle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseProcessing
	PhaseFinishing
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseProcessing:
		return "processing"
	case PhaseFinishing:
		return "finishing"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("<unexpected_phase_%d>", int(p))
	}
}
