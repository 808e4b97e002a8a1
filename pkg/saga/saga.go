// Package saga runs a sequence of steps and undoes the completed ones when a
// later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultCompensationTimeout bounds the undo phase when none is configured.
const DefaultCompensationTimeout = 30 * time.Second

// Step is one unit of work. Compensate is optional and only runs for steps
// whose Execute succeeded.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Error reports which step failed and whether undoing the earlier steps
// worked. It unwraps to the step's error.
type Error struct {
	Saga            string
	Step            string
	Err             error
	CompensationErr error
}

func (e *Error) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed (%v), compensation also failed: %v", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Saga struct {
	name        string
	steps       []Step
	compTimeout time.Duration
}

func New(name string) *Saga {
	return &Saga{name: name, compTimeout: DefaultCompensationTimeout}
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// WithCompensationTimeout sets how long the undo phase may take.
func (s *Saga) WithCompensationTimeout(d time.Duration) *Saga {
	s.compTimeout = d
	return s
}

// Execute runs the steps in order. When one fails, the completed steps are
// compensated in reverse order and a *Error is returned. Compensation runs on
// a context detached from ctx's cancellation, because a caller that gave up
// must not leave half-done work behind.
func (s *Saga) Execute(ctx context.Context) error {
	completed := make([]int, 0, len(s.steps))

	for i, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compTimeout)
			compErr := s.compensate(compCtx, completed)
			cancel()
			return &Error{Saga: s.name, Step: step.Name, Err: err, CompensationErr: compErr}
		}
		completed = append(completed, i)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completedIndexes []int) error {
	var errs []error
	for i := len(completedIndexes) - 1; i >= 0; i-- {
		step := s.steps[completedIndexes[i]]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
