package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStep struct {
	name       string
	execErr    error
	compErr    error
	log        *[]string
	executed   bool
	rolledBack bool
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Execute(context.Context) error {
	*s.log = append(*s.log, "exec:"+s.name)
	if s.execErr != nil {
		return s.execErr
	}
	s.executed = true
	return nil
}

func (s *recordingStep) Compensate(context.Context) error {
	*s.log = append(*s.log, "comp:"+s.name)
	s.rolledBack = true
	return s.compErr
}

func TestRunSaga_AllStepsSucceed(t *testing.T) {
	var log []string
	steps := []step{
		&recordingStep{name: "a", log: &log},
		&recordingStep{name: "b", log: &log},
	}

	err := runSaga(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec:a", "exec:b"}, log)
}

func TestRunSaga_CompensatesInReverseOrder(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	steps := []step{
		&recordingStep{name: "a", log: &log},
		&recordingStep{name: "b", log: &log},
		&recordingStep{name: "c", log: &log, execErr: boom},
	}

	err := runSaga(context.Background(), steps)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"}, log)
}

func TestRunSaga_FailedStepIsNotCompensated(t *testing.T) {
	var log []string
	failed := &recordingStep{name: "b", log: &log, execErr: errors.New("boom")}
	steps := []step{
		&recordingStep{name: "a", log: &log},
		failed,
	}

	_ = runSaga(context.Background(), steps)
	assert.False(t, failed.rolledBack)
}

func TestRunSaga_CompensationErrorsDoNotMaskCause(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	steps := []step{
		&recordingStep{name: "a", log: &log, compErr: errors.New("rollback failed")},
		&recordingStep{name: "b", log: &log, execErr: boom},
	}

	err := runSaga(context.Background(), steps)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, log, "comp:a")
}
