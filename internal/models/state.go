package models

import (
	"fmt"
	"strconv"
)

// FlowState is a point in the parts-request conversation. States are densely
// numbered from 1; order matters because pagination re-renders the previous
// state while normal transitions advance to the successor.
type FlowState int

const (
	FlowStarted               FlowState = 1
	BrandModalSent            FlowState = 2
	BrandSelected             FlowState = 3
	ModelModalSent            FlowState = 4
	ModelSelected             FlowState = 5
	IdentificationRequestSent FlowState = 6
	IdentificationProvided    FlowState = 7
	PartDescriptionRequested  FlowState = 8
	PartDescriptionProvided   FlowState = 9
	RequestAccepted           FlowState = 10
	RequestCancelled          FlowState = 11
)

// StateCount is the number of defined flow states.
const StateCount = 11

// UnknownStateError reports a state id outside the flow table. It indicates a
// programming or data error and is not recoverable by the delivery.
type UnknownStateError struct {
	ID int
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown flow state %d (valid range 1..%d)", e.ID, StateCount)
}

// StateFromStatus parses the persisted status column (the ordinal as text)
// back into a FlowState.
func StateFromStatus(status string) (FlowState, error) {
	id, err := strconv.Atoi(status)
	if err != nil {
		return 0, fmt.Errorf("malformed flow state %q: %w", status, err)
	}
	if id < 1 || id > StateCount {
		return 0, &UnknownStateError{ID: id}
	}
	return FlowState(id), nil
}

// Status returns the persisted representation of the state.
func (s FlowState) Status() string {
	return strconv.Itoa(int(s))
}

// Valid reports whether the state is inside the flow table.
func (s FlowState) Valid() bool {
	return s >= 1 && s <= StateCount
}

// Terminal reports whether the conversation ends at this state.
func (s FlowState) Terminal() bool {
	return s == RequestAccepted || s == RequestCancelled
}

func (s FlowState) String() string {
	switch s {
	case FlowStarted:
		return "FlowStarted"
	case BrandModalSent:
		return "BrandModalSent"
	case BrandSelected:
		return "BrandSelected"
	case ModelModalSent:
		return "ModelModalSent"
	case ModelSelected:
		return "ModelSelected"
	case IdentificationRequestSent:
		return "IdentificationRequestSent"
	case IdentificationProvided:
		return "IdentificationProvided"
	case PartDescriptionRequested:
		return "PartDescriptionRequested"
	case PartDescriptionProvided:
		return "PartDescriptionProvided"
	case RequestAccepted:
		return "RequestAccepted"
	case RequestCancelled:
		return "RequestCancelled"
	default:
		return fmt.Sprintf("FlowState(%d)", int(s))
	}
}
