package pipelineerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ExplicitMarkers(t *testing.T) {
	transient := Classify(Transient(errors.New("db connection reset")))
	assert.Equal(t, ClassTransient, transient.Class)
	assert.Equal(t, "explicit_transient", transient.Reason)

	terminal := Classify(Terminal(errors.New("invalid params")))
	assert.Equal(t, ClassTerminal, terminal.Class)
	assert.Equal(t, "explicit_terminal", terminal.Reason)
}

func TestClassify_RepresentativeRuntimeErrors(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		expectedClass Class
	}{
		{
			name:          "context deadline transient",
			err:           context.DeadlineExceeded,
			expectedClass: ClassTransient,
		},
		{
			name:          "context canceled terminal",
			err:           context.Canceled,
			expectedClass: ClassTerminal,
		},
		{
			name:          "rate limited transient",
			err:           errors.New("remote explorer: too many requests"),
			expectedClass: ClassTransient,
		},
		{
			name:          "duplicate key terminal",
			err:           errors.New("pq: duplicate key value violates unique constraint"),
			expectedClass: ClassTerminal,
		},
		{
			name:          "unknown defaults terminal",
			err:           errors.New("unexpected failure"),
			expectedClass: ClassTerminal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, got.Class)
		})
	}
}

func TestClassify_NilError(t *testing.T) {
	d := Classify(nil)
	assert.Equal(t, ClassTerminal, d.Class)
	assert.Equal(t, "nil_error", d.Reason)
}

func TestDecision_IsTransient(t *testing.T) {
	assert.True(t, Decision{Class: ClassTransient}.IsTransient())
	assert.False(t, Decision{Class: ClassTerminal}.IsTransient())
}
