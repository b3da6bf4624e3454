package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeExtraction(t *testing.T) {
	err := New(ErrCodeConflict, "flow is stale")
	assert.Equal(t, ErrCodeConflict, Code(err))
	assert.True(t, IsCode(err, ErrCodeConflict))
	assert.False(t, IsCode(err, ErrCodeValidation))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(ErrCodeUnauthorized, "role mismatch")
	outer := fmt.Errorf("advance failed: %w", inner)
	assert.Equal(t, ErrCodeUnauthorized, Code(outer))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(cause, ErrCodeInternal, "failed to save request")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to save request")

	assert.NoError(t, Wrap(nil, ErrCodeInternal, "ignored"))
}

func TestUnknownErrorDefaultsToInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, Code(stderrors.New("plain")))
}

func TestHelpers(t *testing.T) {
	nf := NotFound("request", "PR-42")
	assert.Equal(t, ErrCodeNotFound, Code(nf))
	assert.Contains(t, nf.Error(), `request "PR-42" not found`)

	inv := InvalidInput("quantity", "must be at least 1")
	assert.Equal(t, ErrCodeValidation, Code(inv))
	assert.Contains(t, inv.Error(), "quantity: must be at least 1")
}
