package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenProject(t *testing.T) {
	errPersist := errors.New("persist failed")
	errProject := errors.New("project failed")
	errCompensate := errors.New("compensate failed")

	tests := []struct {
		name            string
		persistErr      error
		projectErr      error
		compensateErr   error
		wantErr         error
		wantCompensated bool
		wantFailure     bool
	}{
		{name: "all good"},
		{name: "persist fails, nothing else runs", persistErr: errPersist, wantErr: errPersist},
		{name: "project fails, write undone", projectErr: errProject, wantErr: errProject, wantCompensated: true, wantFailure: true},
		{name: "project and undo fail", projectErr: errProject, compensateErr: errCompensate, wantErr: errCompensate, wantCompensated: true, wantFailure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var projected, compensated bool

			got, err := writeThenProject(context.Background(),
				func(context.Context) (string, error) { return "v1", tt.persistErr },
				func(_ context.Context, v string) error { projected = true; return tt.projectErr },
				func(_ context.Context, v string) error {
					compensated = true
					assert.Equal(t, "v1", v)
					return tt.compensateErr
				},
			)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "v1", got)
				assert.True(t, projected)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCompensated, compensated)

			var pf *projectionFailure
			assert.Equal(t, tt.wantFailure, errors.As(err, &pf))
		})
	}
}

func TestWriteThenProject_CompensatesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var compensateCtxErr error
	_, err := writeThenProject(ctx,
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context, int) error {
			cancel()
			return errors.New("index timed out")
		},
		func(c context.Context, _ int) error {
			compensateCtxErr = c.Err()
			return nil
		},
	)

	require.Error(t, err)
	assert.NoError(t, compensateCtxErr, "compensation must not inherit the caller's cancellation")
}
