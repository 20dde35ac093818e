package service

import (
	"context"
	"errors"
	"fmt"
)

// projectionFailure is returned by writeThenProject when the projection step failed.
// compensateErr is nil when the durable write was undone.
type projectionFailure struct {
	projectErr    error
	compensateErr error
}

func (f *projectionFailure) Error() string {
	if f.compensateErr != nil {
		return fmt.Sprintf("projection failed: %v; compensation failed: %v", f.projectErr, f.compensateErr)
	}
	return fmt.Sprintf("projection failed: %v", f.projectErr)
}

func (f *projectionFailure) Unwrap() []error {
	if f.compensateErr == nil {
		return []error{f.projectErr}
	}
	return []error{f.projectErr, f.compensateErr}
}

var errNothingCompensated = errors.New("compensating delete removed no rows")

// writeThenProject persists a value in the system of record, then projects it into a derived
// store. If the projection fails the write is undone with compensate.
//
// compensate runs on a context detached from ctx: a caller that hangs up after the projection
// failed must not leave the write in place.
//
// Errors from persist are returned unchanged. A projection failure is returned as
// *projectionFailure, together with the persisted value so the caller can report on it.
func writeThenProject[T any](
	ctx context.Context,
	persist func(context.Context) (T, error),
	project func(context.Context, T) error,
	compensate func(context.Context, T) error,
) (T, error) {
	v, err := persist(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	projectErr := project(ctx, v)
	if projectErr == nil {
		return v, nil
	}

	return v, &projectionFailure{
		projectErr:    projectErr,
		compensateErr: compensate(context.WithoutCancel(ctx), v),
	}
}
