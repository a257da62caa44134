// Package slicer drives heavy conversions through shrinking page slices.
package slicer

import (
	"errors"
	"fmt"

	"github.com/spherical/smartpdf/internal/domain"
)

// DefaultMinSliceSize is the slice floor below which a failure is terminal.
const DefaultMinSliceSize = 5

// ErrNoPendingAttempt is returned when Succeed or Fail is called without a
// preceding Next.
var ErrNoPendingAttempt = errors.New("no pending slice attempt")

// Phase is the planner's lifecycle stage.
type Phase string

const (
	PhaseReady      Phase = "ready"
	PhaseAttempting Phase = "attempting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// State is a snapshot of one document's slice progress.
type State struct {
	TotalPages       int
	CurrentSliceSize int
	Cursor           int
	MinSliceSize     int
	Phase            Phase
	Attempts         int
	Failures         int
}

// Planner is the slice state machine for a single document. It is not safe
// for concurrent use.
type Planner struct {
	state   State
	pending *domain.PageRange
	last    domain.PageRange
}

// NewPlanner starts at cursor 0 with the requested slice size. A minSlice of
// zero selects DefaultMinSliceSize; a requested size below the floor lowers
// the floor to it.
func NewPlanner(totalPages, requested, minSlice int) (*Planner, error) {
	if totalPages < 0 {
		return nil, domain.ValidationError(fmt.Sprintf("negative page count %d", totalPages), nil)
	}
	if requested <= 0 {
		return nil, domain.ValidationError(fmt.Sprintf("slice size must be positive, got %d", requested), nil)
	}
	if minSlice <= 0 {
		minSlice = DefaultMinSliceSize
	}
	if requested < minSlice {
		minSlice = requested
	}

	p := &Planner{state: State{
		TotalPages:       totalPages,
		CurrentSliceSize: requested,
		MinSliceSize:     minSlice,
		Phase:            PhaseReady,
	}}
	if totalPages == 0 {
		p.state.Phase = PhaseDone
	}
	return p, nil
}

// State returns a copy of the current state.
func (p *Planner) State() State {
	return p.state
}

// Terminal reports whether the planner is Done or Failed.
func (p *Planner) Terminal() bool {
	return p.state.Phase == PhaseDone || p.state.Phase == PhaseFailed
}

// LastRange is the most recently attempted range.
func (p *Planner) LastRange() domain.PageRange {
	return p.last
}

// Next returns the range to attempt. Calling Next again before the attempt
// is resolved returns the same range. It returns false once terminal.
func (p *Planner) Next() (domain.PageRange, bool) {
	if p.Terminal() {
		return domain.PageRange{}, false
	}
	if p.pending != nil {
		return *p.pending, true
	}

	end := p.state.Cursor + p.state.CurrentSliceSize - 1
	if end > p.state.TotalPages-1 {
		end = p.state.TotalPages - 1
	}
	r := domain.PageRange{Start: p.state.Cursor, End: end}
	p.pending = &r
	p.last = r
	p.state.Phase = PhaseAttempting
	p.state.Attempts++
	return r, true
}

// Succeed advances the cursor past the pending range. The slice size is
// kept.
func (p *Planner) Succeed() error {
	if p.pending == nil {
		return ErrNoPendingAttempt
	}
	p.state.Cursor = p.pending.End + 1
	p.pending = nil
	if p.state.Cursor >= p.state.TotalPages {
		p.state.Phase = PhaseDone
	} else {
		p.state.Phase = PhaseReady
	}
	return nil
}

// Fail halves the slice size, never below the floor, and reports whether the
// same cursor will be retried. A failure at the floor is terminal.
func (p *Planner) Fail() (bool, error) {
	if p.pending == nil {
		return false, ErrNoPendingAttempt
	}
	p.pending = nil
	p.state.Failures++

	if p.state.CurrentSliceSize <= p.state.MinSliceSize {
		p.state.Phase = PhaseFailed
		return false, nil
	}

	next := p.state.CurrentSliceSize / 2
	if next < p.state.MinSliceSize {
		next = p.state.MinSliceSize
	}
	p.state.CurrentSliceSize = next
	p.state.Phase = PhaseReady
	return true, nil
}

// MaxAttempts bounds the number of attempts a planner can make before it is
// terminal: one per page-advancing success plus one per halving, plus the
// final failure.
func MaxAttempts(totalPages, requested, minSlice int) int {
	if minSlice <= 0 {
		minSlice = DefaultMinSliceSize
	}
	if requested < minSlice {
		minSlice = requested
	}
	halvings := 0
	for s := requested; s > minSlice; {
		s /= 2
		if s < minSlice {
			s = minSlice
		}
		halvings++
	}
	successes := (totalPages + minSlice - 1) / minSlice
	return successes + halvings + 1
}
